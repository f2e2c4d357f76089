package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"crystelf-core/internal/app/server"
	"crystelf-core/internal/config"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/version"

	"github.com/spf13/cobra"
)

var (
	configPath string
	noBanner   bool
)

var rootCmd = &cobra.Command{
	Use:   "crystelf-core",
	Short: "WebSocket hub for crystelf bot clients",
	Long: `crystelf-core accepts authenticated bot clients over WebSocket,
stores the bot/group topology they report and routes group messages
and broadcasts back to them.

Configuration is read from a YAML file and overridden by environment
variables (WS_SECRET, TOKEN, RD_ADD, RD_PORT, ...).`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Detail())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultFile, "Path to configuration file")
	rootCmd.Flags().BoolVar(&noBanner, "no-banner", false, "Do not print the startup banner")
	rootCmd.AddCommand(versionCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	absConfigPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	cfg, err := config.Load(absConfigPath)
	if err != nil {
		return err
	}
	if err := corelog.Setup(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := corelog.Default()

	srv, err := server.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		_ = srv.Shutdown(context.Background())
		return err
	}
	if !noBanner {
		srv.DisplayStartupBanner(os.Stdout, absConfigPath)
	}
	return srv.Wait(cmd.Context())
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			corelog.Errorf("FATAL: main goroutine panic recovered: %v\n%s", r, debug.Stack())
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			os.Exit(2)
		}
	}()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
