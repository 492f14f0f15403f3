package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/synk-web/synk/internal/app"
	"github.com/synk-web/synk/internal/config"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "synk",
	Short:         "Multi-character scene reaction engine",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
}

// loadConfig reads --config. A missing file gets a hint instead of a bare
// error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", configPath)
	}
	return cfg, err
}

// newApp builds the provider chain and the application from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	reg := config.NewRegistry()
	app.RegisterBuiltinLLMs(reg)

	provider, err := app.BuildLLM(cfg.LLM, reg)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, provider)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger writes text logs to stderr; stdout stays free for the REPL and
// the MCP protocol.
func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setupLogging installs the default logger and returns its level so it can
// be changed live.
func setupLogging(cfg *config.Config) *slog.LevelVar {
	lv := new(slog.LevelVar)
	lv.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(lv))
	return lv
}
