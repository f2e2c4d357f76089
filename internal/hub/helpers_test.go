package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	corelog "crystelf-core/internal/core/log"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

// fakeTransport 内存传输，写入的帧可从 written 读取
type fakeTransport struct {
	mu       sync.Mutex
	written  chan []byte
	inbound  chan []byte
	failNext error
	closed   bool
	closeMsg []byte
	done     chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		written: make(chan []byte, 64),
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return websocket.TextMessage, data, nil
	case <-f.done:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		return err
	}
	if f.closed {
		return errors.New("use of closed connection")
	}
	f.written <- append([]byte(nil), data...)
	return nil
}

func (f *fakeTransport) WriteControl(_ int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeMsg = data
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeTransport) failWith(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

func (f *fakeTransport) next(t *testing.T) *Message {
	t.Helper()
	select {
	case data := <-f.written:
		var m Message
		require.NoError(t, json.Unmarshal(data, &m))
		return &m
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
		return nil
	}
}

func newTestConn(id string) (*Conn, *fakeTransport) {
	ft := newFakeTransport()
	return newConn(id, ft, time.Second), ft
}

func newTestRegistry(timeout time.Duration) *Registry {
	return NewRegistry(&RegistryConfig{RequestTimeout: timeout, Logger: corelog.NewNopLogger()})
}

type testHub struct {
	registry *Registry
	gateway  *Gateway
	url      string
}

func startHub(t *testing.T, heartbeat time.Duration, handlers ...Handler) *testHub {
	t.Helper()
	logger := corelog.NewTestLogger(t)
	reg := NewRegistry(&RegistryConfig{RequestTimeout: 500 * time.Millisecond, Logger: logger})
	disp, err := NewDispatcher(&DispatcherConfig{Registry: reg, Logger: logger}, handlers...)
	require.NoError(t, err)

	if heartbeat <= 0 {
		heartbeat = time.Hour
	}
	gw, err := NewGateway(context.Background(), &GatewayConfig{
		Secret:            testSecret,
		HeartbeatInterval: heartbeat,
		Registry:          reg,
		Dispatcher:        disp,
		Logger:            logger,
	})
	require.NoError(t, err)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		gw.Serve(c)
	}))
	t.Cleanup(func() {
		_ = gw.Close()
		_ = reg.Close()
		srv.Close()
	})
	return &testHub{registry: reg, gateway: gw, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func (h *testHub) dial(t *testing.T) *testClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &testClient{t: t, ws: ws}
}

func (c *testClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(v))
}

func (c *testClient) sendRaw(s string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(s)))
}

func (c *testClient) read() *Message {
	c.t.Helper()
	msg, err := c.tryRead()
	require.NoError(c.t, err)
	return msg
}

// readSkippingPings 跳过心跳读取下一条消息
func (c *testClient) readSkippingPings() *Message {
	c.t.Helper()
	for {
		m := c.read()
		if m.Type != TypePing {
			return m
		}
	}
}

func (c *testClient) tryRead() (*Message, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := c.ws.ReadJSON(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *testClient) auth(clientID string) {
	c.t.Helper()
	c.send(map[string]string{"type": TypeAuth, "secret": testSecret, "clientId": clientID})
	reply := c.read()
	require.Equal(c.t, TypeAuth, reply.Type)
	require.NotNil(c.t, reply.Success)
	require.True(c.t, *reply.Success)
}
