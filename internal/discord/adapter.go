package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/scene"
)

// maxMessageLen is Discord's limit on a message's content, in runes.
const maxMessageLen = 2000

// Service is the part of the turn service the adapter uses. [*chat.Service]
// implements it.
type Service interface {
	Turn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResponse, error)
	React(ctx context.Context, req chat.ReactionRequest) (*chat.ReactionResponse, error)
	Scene(ctx context.Context, sessionID string) (*scene.Scene, error)
}

// Session is the subset of *discordgo.Session the adapter calls.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

var _ Session = (*discordgo.Session)(nil)

// Adapter plays scenes in bound text channels.
type Adapter struct {
	svc      Service
	channels map[string]string

	mu sync.Mutex
	// last holds the most recent turn of each channel, for /react.
	last map[string]lastTurn
}

type lastTurn struct {
	turnID      string
	userMessage string
	// replies maps character id to the reply shown in the channel.
	replies map[string]string
}

// NewAdapter binds channel ids to location ids.
func NewAdapter(svc Service, channels map[string]string) *Adapter {
	bound := make(map[string]string, len(channels))
	for ch, loc := range channels {
		bound[ch] = loc
	}
	return &Adapter{svc: svc, channels: bound, last: make(map[string]lastTurn)}
}

// Location returns the location a channel plays in.
func (a *Adapter) Location(channelID string) (string, bool) {
	loc, ok := a.channels[channelID]
	return loc, ok
}

// UserID is the synk user id of a Discord user.
func UserID(discordUserID string) string { return "discord:" + discordUserID }

// SessionID is the synk session id of a Discord channel.
func SessionID(channelID string) string { return "discord:" + channelID }

// HandleMessage runs a turn for a message in a bound channel and posts the
// replies. Bot messages, empty messages and unbound channels are ignored.
func (a *Adapter) HandleMessage(ctx context.Context, s Session, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	loc, ok := a.channels[m.ChannelID]
	if !ok || strings.TrimSpace(m.Content) == "" {
		return
	}
	log := observe.Logger(ctx).With("channel_id", m.ChannelID, "location_id", loc)

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		log.Debug("discord: typing indicator failed", "err", err)
	}
	resp, err := a.svc.Turn(ctx, chat.TurnRequest{
		UserID:     UserID(m.Author.ID),
		LocationID: loc,
		Message:    m.Content,
		SessionID:  SessionID(m.ChannelID),
	})
	if err != nil {
		log.Warn("discord: turn failed", "err", err)
		a.send(ctx, s, m.ChannelID, failureNotice(err))
		return
	}
	a.remember(m.ChannelID, m.Content, resp)
	for _, chunk := range split(FormatTurn(resp), maxMessageLen) {
		a.send(ctx, s, m.ChannelID, chunk)
	}
}

func (a *Adapter) remember(channelID, userMessage string, resp *chat.TurnResponse) {
	lt := lastTurn{turnID: resp.TurnID, userMessage: userMessage, replies: make(map[string]string, len(resp.MainResponses))}
	for _, m := range resp.MainResponses {
		lt.replies[m.CharacterID] = m.Message
	}
	a.mu.Lock()
	a.last[channelID] = lt
	a.mu.Unlock()
}

func (a *Adapter) lastTurn(channelID string) (lastTurn, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lt, ok := a.last[channelID]
	return lt, ok
}

func (a *Adapter) send(ctx context.Context, s Session, channelID, content string) {
	if content == "" {
		return
	}
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		observe.Logger(ctx).Warn("discord: send failed", "channel_id", channelID, "err", err)
	}
}

func failureNotice(err error) string {
	if errors.Is(err, chat.ErrValidation) {
		return "⚠️ 메시지를 처리할 수 없어요."
	}
	return "⚠️ 지금은 장면을 이어갈 수 없어요. 잠시 후 다시 시도해 주세요."
}

// FormatTurn renders main responses as "**name** action message" and sub
// reactions as italic one-liners.
func FormatTurn(resp *chat.TurnResponse) string {
	var b strings.Builder
	for _, m := range resp.MainResponses {
		b.WriteString("**" + m.CharacterName + "** ")
		if m.Action != "" {
			b.WriteString(m.Action + " ")
		}
		b.WriteString(m.Message)
		b.WriteString("\n")
	}
	for _, sub := range resp.SubReactions {
		fmt.Fprintf(&b, "_%s: %s_\n", sub.CharacterName, sub.Reaction)
	}
	return strings.TrimRight(b.String(), "\n")
}

// split cuts s into pieces of at most limit runes, preferring line breaks.
func split(s string, limit int) []string {
	var out []string
	for utf8.RuneCountInString(s) > limit {
		cut := runeOffset(s, limit)
		if nl := strings.LastIndex(s[:cut], "\n"); nl > 0 {
			out = append(out, s[:nl])
			s = s[nl+1:]
			continue
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// runeOffset returns the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
