// wsclient 调试用的机器人客户端，连接 hub 并在终端交互
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"crystelf-core/internal/core/safe"
	"crystelf-core/internal/hub"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	serverURL string
	clientID  string
	secret    string
)

var rootCmd = &cobra.Command{
	Use:   "wsclient",
	Short: "Interactive bot client for crystelf-core",
	Long: `wsclient connects to the hub, authenticates and answers heartbeats
and correlated requests. Type 'help' at the prompt for commands.

The shared secret is read from --secret, then WS_SECRET, then an
interactive prompt.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "url", "u", "ws://127.0.0.1:6868/ws", "Hub WebSocket URL")
	rootCmd.Flags().StringVarP(&clientID, "client-id", "i", "wsclient", "Client id sent on auth")
	rootCmd.Flags().StringVar(&secret, "secret", "", "Shared secret (default $WS_SECRET)")
}

var (
	inbound  = color.New(color.FgCyan).SprintFunc()
	outbound = color.New(color.FgGreen).SprintFunc()
	warn     = color.New(color.FgYellow).SprintFunc()
)

type client struct {
	ws  *websocket.Conn
	out io.Writer
	mu  sync.Mutex
}

func (c *client) send(msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// readLoop 打印收到的消息，自动回复 ping 和带 requestId 的请求
func (c *client) readLoop(done chan<- error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			done <- err
			return
		}
		fmt.Fprintf(c.out, "%s %s\n", inbound("<<"), data)

		msg, err := hub.ParseMessage(data)
		if err != nil {
			continue
		}
		switch {
		case msg.Type == hub.TypePing:
			_ = c.send(&hub.Message{Type: hub.TypePong})
		case msg.RequestID != "":
			reply := &hub.Message{Type: msg.Type, RequestID: msg.RequestID, Data: msg.Data}
			if err := c.send(reply); err == nil {
				fmt.Fprintf(c.out, "%s echoed request %s\n", outbound(">>"), msg.RequestID)
			}
		}
	}
}

func resolveSecret() (string, error) {
	if secret != "" {
		return secret, nil
	}
	if v := os.Getenv("WS_SECRET"); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no secret given and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Secret: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func run(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	sec, err := resolveSecret()
	if err != nil {
		return err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", serverURL, err)
	}
	defer ws.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mcrystelf>\033[0m ",
		HistoryLimit:    200,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	c := &client{ws: ws, out: rl.Stdout()}
	if err := c.send(map[string]string{"type": hub.TypeAuth, "secret": sec, "clientId": clientID}); err != nil {
		return err
	}
	done := make(chan error, 1)
	safe.Go("ws-read", func() { c.readLoop(done) })

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if err != nil {
				return
			}
			lines <- line
		}
	}()

	for {
		select {
		case err := <-done:
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				fmt.Fprintf(c.out, "%s closed by hub: %d %s\n", warn("!!"), ce.Code, ce.Text)
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.execute(strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(c.out, "%s %v\n", warn("!!"), err)
			}
			if quit {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return nil
			}
		}
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("ping"),
		readline.PcItem("test"),
		readline.PcItem("report"),
		readline.PcItem("raw"),
		readline.PcItem("quit"),
	)
}

// execute 执行一条交互命令，返回是否退出
func (c *client) execute(line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case "help", "h", "?":
		fmt.Fprintln(c.out, `  ping                         send ping
  test                         send connectivity probe
  report <uin> <groupId>...    report one bot in the given groups
  raw <json>                   send a raw frame
  quit                         close and exit`)
		return false, nil
	case "ping":
		return false, c.send(&hub.Message{Type: hub.TypePing})
	case "test":
		return false, c.send(&hub.Message{Type: hub.TypeTest})
	case "report":
		return false, c.report(parts[1:])
	case "raw":
		raw := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		c.mu.Lock()
		defer c.mu.Unlock()
		return false, c.ws.WriteMessage(websocket.TextMessage, []byte(raw))
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type 'help'", parts[0])
	}
}

func (c *client) report(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: report <uin> <groupId>...")
	}
	uin, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uin %q", args[0])
	}
	groups := make([]map[string]interface{}, 0, len(args)-1)
	for _, a := range args[1:] {
		gid, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid group id %q", a)
		}
		groups = append(groups, map[string]interface{}{"groupId": gid, "groupName": "group-" + a})
	}
	data, err := json.Marshal([]interface{}{
		map[string]string{"client": clientID},
		map[string]interface{}{"uin": uin, "nickname": clientID, "groups": groups},
	})
	if err != nil {
		return err
	}
	return c.send(&hub.Message{Type: hub.TypeReportBots, Data: data})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
