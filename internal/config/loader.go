package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the LLM provider names known to the built-in
// registry. anyllm entries carry their backend after a colon.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{"gemini", "openai", "anyllm"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. A .env file next to the working directory
// is loaded into the environment first; a missing one is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: cannot load .env", "err", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references in secret fields, applies defaults and validates the result.
// An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(cfg)
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets resolves ${VAR} references in the fields that usually hold
// credentials.
func expandSecrets(cfg *Config) {
	for i := range cfg.LLM.Providers {
		cfg.LLM.Providers[i].APIKey = os.ExpandEnv(cfg.LLM.Providers[i].APIKey)
	}
	cfg.Store.PostgresDSN = os.ExpandEnv(cfg.Store.PostgresDSN)
	cfg.Discord.Token = os.ExpandEnv(cfg.Discord.Token)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// LLM
	if cfg.LLM.Timeout < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout %s must not be negative", cfg.LLM.Timeout))
	}
	if len(cfg.LLM.Providers) == 0 {
		slog.Warn("llm.providers is empty; every generation will degrade")
	}
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("llm.providers[%d].name is required", i))
			continue
		}
		validateProviderName(p.Name)
	}

	// Store
	if cfg.Store.Backend != "" && !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, postgres, badger", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
	}

	// Characters
	if cfg.Characters.Source != "" && !cfg.Characters.Source.IsValid() {
		errs = append(errs, fmt.Errorf("characters.source %q is invalid; valid values: yaml, postgres", cfg.Characters.Source))
	}
	if cfg.Characters.Source == CharactersPostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when characters.source is postgres"))
	}

	// Engine
	if p := cfg.Engine.InterjectionProbability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("engine.interjection_probability %.2f is out of range [0, 1]", p))
	}
	if cfg.Engine.MaxInterjections < 0 {
		errs = append(errs, fmt.Errorf("engine.max_interjections %d must not be negative", cfg.Engine.MaxInterjections))
	}
	if cfg.Engine.SummaryTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine.summary_timeout %s must not be negative", cfg.Engine.SummaryTimeout))
	}
	if cfg.Engine.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("engine.history_window %d must not be negative", cfg.Engine.HistoryWindow))
	}
	if cfg.Engine.StoryContextTurns < 0 {
		errs = append(errs, fmt.Errorf("engine.story_context_turns %d must not be negative", cfg.Engine.StoryContextTurns))
	}

	// Sessions
	if cfg.Sessions.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("sessions.max_sessions %d must not be negative", cfg.Sessions.MaxSessions))
	}
	if cfg.Sessions.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("sessions.idle_ttl %s must not be negative", cfg.Sessions.IdleTTL))
	}

	// Discord
	for channel, loc := range cfg.Discord.Channels {
		if loc == "" {
			errs = append(errs, fmt.Errorf("discord.channels[%s] has no location", channel))
		}
	}
	if cfg.Discord.Token != "" && len(cfg.Discord.Channels) == 0 {
		errs = append(errs, errors.New("discord.token is set but discord.channels binds no channel"))
	}
	if len(cfg.Discord.Channels) > 0 && cfg.Discord.Token == "" {
		slog.Warn("discord.channels is set but discord.token is empty; the Discord adapter will not start")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not a known provider name.
func validateProviderName(name string) {
	base, _, _ := strings.Cut(name, ":")
	if slices.Contains(ValidProviderNames, base) {
		return
	}
	slog.Warn("unknown llm provider name; may be a typo or third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}
