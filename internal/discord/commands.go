package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/observe"
)

// Register adds the adapter's slash commands to r:
//
//   - /react character:<id> emoji:<emoji> reacts to that character's reply
//     in the channel's most recent turn.
//   - /scene shows the channel's scene at a glance.
func (a *Adapter) Register(ctx context.Context, r *CommandRouter) {
	r.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "react",
		Description: "마지막 대사에 감정 반응을 남깁니다",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "character", Description: "캐릭터 id", Required: true},
			{
				Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "반응", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "❤️ 심쿵", Value: "❤️"},
					{Name: "💢 짜증", Value: "💢"},
					{Name: "🔥 열광", Value: "🔥"},
					{Name: "⭐ 기억", Value: "⭐"},
				},
			},
		},
	}, func(s Session, i *discordgo.InteractionCreate) { a.handleReact(ctx, s, i) })

	r.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "scene",
		Description: "현재 장면의 분위기를 보여줍니다",
	}, func(s Session, i *discordgo.InteractionCreate) { a.handleScene(ctx, s, i) })
}

func (a *Adapter) handleReact(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		RespondEphemeral(s, i, "사용자를 확인할 수 없어요.")
		return
	}
	charID := optionString(i, "character")
	lt, ok := a.lastTurn(i.ChannelID)
	reply, spoke := lt.replies[charID]
	if !ok || !spoke {
		RespondEphemeral(s, i, "이 채널의 마지막 장면에서 그 캐릭터의 대사를 찾을 수 없어요.")
		return
	}

	resp, err := a.svc.React(ctx, chat.ReactionRequest{
		UserID:            UserID(user.ID),
		CharacterID:       charID,
		TurnID:            lt.turnID,
		Emoji:             optionString(i, "emoji"),
		UserMessage:       lt.userMessage,
		CharacterResponse: reply,
	})
	switch {
	case errors.Is(err, chat.ErrValidation):
		RespondEphemeral(s, i, "지원하지 않는 반응이에요.")
	case errors.Is(err, character.ErrNotFound):
		RespondEphemeral(s, i, "그런 캐릭터는 없어요.")
	case err != nil:
		observe.Logger(ctx).Warn("discord: reaction failed", "character_id", charID, "err", err)
		RespondEphemeral(s, i, "반응을 기록하지 못했어요.")
	default:
		RespondEphemeral(s, i, resp.Message)
	}
}

func (a *Adapter) handleScene(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	if _, ok := a.Location(i.ChannelID); !ok {
		RespondEphemeral(s, i, "이 채널은 장면에 연결되어 있지 않아요.")
		return
	}
	sc, err := a.svc.Scene(ctx, SessionID(i.ChannelID))
	if errors.Is(err, chat.ErrSessionNotFound) {
		RespondEphemeral(s, i, "아직 시작된 장면이 없어요.")
		return
	}
	if err != nil {
		observe.Logger(ctx).Warn("discord: scene lookup failed", "channel_id", i.ChannelID, "err", err)
		RespondEphemeral(s, i, "장면을 불러오지 못했어요.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s · 긴장도 %d/10 · 분위기 %s\n", sc.Location, sc.Tension, sc.Atmosphere)
	if sc.CurrentFocus != "" {
		fmt.Fprintf(&b, "🎯 %s\n", sc.CurrentFocus)
	}
	for _, id := range sc.Roster {
		st := sc.States[id]
		fmt.Fprintf(&b, "- %s: %s", st.CharacterName, st.Attention)
		if st.Recent {
			b.WriteString(" (방금 말함)")
		}
		b.WriteString("\n")
	}
	RespondPublic(s, i, strings.TrimRight(b.String(), "\n"))
}
