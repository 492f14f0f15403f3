package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synk-web/synk/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the engine as MCP tools over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the
scene_turn, react and get_relationship tools. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		application, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer application.Shutdown(context.Background())

		return mcpserver.Serve(ctx, application.Service())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
