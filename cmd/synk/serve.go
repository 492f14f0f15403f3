package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synk-web/synk/internal/config"
	"github.com/synk-web/synk/internal/observe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API",
	Long: `Serve the chat API, the /metrics, /healthz and /readyz endpoints and,
when discord.token is set, the Discord adapter.

The config file is watched: log_level changes apply immediately, other
changes are logged and take effect on restart. With characters.source yaml
the character file is hot-reloaded too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := setupLogging(cfg)
		slog.Info("synk starting",
			"version", version,
			"config", configPath,
			"listen_addr", cfg.Server.ListenAddr,
			"observe_addr", cfg.Server.ObserveAddr,
			"store", cfg.Store.Backend,
			"characters", cfg.Characters.Source,
		)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tel, err := observe.InitProvider(ctx, "synk", observe.WithServiceVersion(version))
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(sctx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()

		watcher, err := config.NewWatcher(configPath, func(old, new *config.Config) {
			applyConfigChange(level, config.Diff(old, new))
		})
		if err != nil {
			return err
		}
		defer watcher.Stop()

		application, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}

		slog.Info("server ready, press Ctrl+C to shut down")
		runErr := application.Run(ctx)

		slog.Info("stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
		if runErr != nil {
			return runErr
		}
		slog.Info("goodbye")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func applyConfigChange(level *slog.LevelVar, d config.ConfigDiff) {
	if d.Empty() {
		return
	}
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CharactersFileChanged {
		slog.Warn("characters.file changed; the previous file stays watched until restart")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}
