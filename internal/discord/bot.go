// Package discord plays synk scenes in Discord text channels. Each bound
// channel is one session at one location: every user message there runs a
// turn, and the characters' replies are posted back to the channel. The
// /react and /scene slash commands expose emoji reactions and the scene
// state.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// GuildID scopes slash command registration. Empty registers the
	// commands globally.
	GuildID string

	// Channels maps channel ids to location ids.
	Channels map[string]string
}

// ErrNoChannels is returned by [New] when no channel is bound to a location;
// such a bot would never run a turn.
var ErrNoChannels = errors.New("discord: no channels bound to a location")

// Bot owns the Discord gateway connection.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	adapter   *Adapter
	router    *CommandRouter
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New connects to Discord and starts handling messages in the configured
// channels. Handlers run with ctx.
func New(ctx context.Context, cfg Config, svc Service) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token must not be empty")
	}
	if len(cfg.Channels) == 0 {
		return nil, ErrNoChannels
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuilds

	b := &Bot{
		session: session,
		adapter: NewAdapter(svc, cfg.Channels),
		router:  NewCommandRouter(),
		guildID: cfg.GuildID,
	}
	b.adapter.Register(ctx, b.router)

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.adapter.HandleMessage(ctx, s, m.Message)
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord: connected", "user", r.User.Username, "guilds", len(r.Guilds))
		checkChannels(s, cfg.Channels)
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, b.router.ApplicationCommands())
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()
	slog.Info("discord commands registered", "count", len(registered))

	<-ctx.Done()
	return ctx.Err()
}

// Close unregisters the slash commands and disconnects.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

// checkChannels warns about bound channels the bot cannot see. Messages
// there would never arrive, which otherwise looks like a silent scene.
func checkChannels(s *discordgo.Session, channels map[string]string) {
	ids := make([]string, 0, len(channels))
	for id := range channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := s.State.Channel(id); err == nil {
			continue
		}
		if _, err := s.Channel(id); err != nil {
			slog.Warn("discord: bound channel not reachable", "channel_id", id, "location", channels[id], "err", err)
		}
	}
}
