package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/pkg/memory/postgres"
)

var importCharacters bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL schema",
	Long: `Create the relationship, story summary, user profile and character
tables in store.postgres_dsn. Migrations are idempotent.

With --import the characters.file roster is upserted into the character
tables, so the server can run with characters.source postgres.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(cfg)
		if cfg.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required")
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		// NewStore migrates the memory tables.
		store, err := postgres.NewStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		dir := character.NewPostgresDirectory(store.Pool())
		if err := dir.Migrate(ctx); err != nil {
			return err
		}
		slog.Info("schema migrated")

		if !importCharacters {
			return nil
		}
		f, err := character.LoadFile(cfg.Characters.File)
		if err != nil {
			return err
		}
		if err := dir.Import(ctx, f); err != nil {
			return fmt.Errorf("import %q: %w", cfg.Characters.File, err)
		}
		slog.Info("characters imported", "path", cfg.Characters.File,
			"characters", len(f.Characters), "locations", len(f.Locations))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&importCharacters, "import", false, "upsert characters.file into the character tables")
	rootCmd.AddCommand(migrateCmd)
}
