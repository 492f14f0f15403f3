package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only the log level is applied live; every other change is listed in
// RestartRequired so it can be logged.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CharactersFileChanged is set when characters.file points elsewhere.
	// The roster watcher follows the old path until restart.
	CharactersFileChanged bool

	// RestartRequired names the top-level settings that changed and only
	// take effect after a restart, in a stable order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.CharactersFileChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Characters.File != new.Characters.File {
		d.CharactersFileChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.ObserveAddr != new.Server.ObserveAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.LLM.Timeout != new.LLM.Timeout || !slices.Equal(old.LLM.Providers, new.LLM.Providers) {
		d.RestartRequired = append(d.RestartRequired, "llm")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if old.Characters.Source != new.Characters.Source {
		d.RestartRequired = append(d.RestartRequired, "characters")
	}
	if old.Engine != new.Engine {
		d.RestartRequired = append(d.RestartRequired, "engine")
	}
	if old.Sessions != new.Sessions {
		d.RestartRequired = append(d.RestartRequired, "sessions")
	}
	if old.Discord.Token != new.Discord.Token || old.Discord.GuildID != new.Discord.GuildID || !maps.Equal(old.Discord.Channels, new.Discord.Channels) {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	return d
}
