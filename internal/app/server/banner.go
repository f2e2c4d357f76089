package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"crystelf-core/internal/version"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const bannerWidth = 56

var (
	bannerCyan  = color.New(color.FgCyan).SprintFunc()
	bannerBold  = color.New(color.Bold).SprintFunc()
	bannerGreen = color.New(color.FgGreen).SprintFunc()
	bannerFaint = color.New(color.Faint).SprintFunc()
)

// DisplayStartupBanner 打印启动信息，stdout 不是终端时不输出颜色
func (s *Server) DisplayStartupBanner(w io.Writer, configPath string) {
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		color.NoColor = true
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s  %s\n", bannerCyan("crystelf-core"), bannerFaint(version.GetShortVersion()))
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("─", bannerWidth)))

	rows := []struct {
		label string
		value string
	}{
		{"Config", configPath},
		{"Start Time", time.Now().Format("2006-01-02 15:04:05")},
		{"Listen", s.Addr()},
		{"WebSocket", s.config.Hub.Path},
		{"Cache", describeCache(&s.config.Storage.Cache)},
		{"Durable", describeDurable(&s.config.Storage.Durable)},
		{"Broadcast", fmt.Sprintf("%s - %s", s.config.Broadcast.MinDelay, s.config.Broadcast.MaxDelay)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-12s %s\n", bannerBold(r.label), r.value)
	}
	fmt.Fprintln(w, bannerFaint("  "+strings.Repeat("─", bannerWidth)))
	fmt.Fprintf(w, "  %s\n\n", bannerGreen("ready"))
}
