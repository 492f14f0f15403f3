package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/discord/mock"
	"github.com/synk-web/synk/internal/reaction"
	"github.com/synk-web/synk/internal/scene"
)

type fakeService struct {
	mu     sync.Mutex
	turns  []chat.TurnRequest
	reacts []chat.ReactionRequest

	resp     *chat.TurnResponse
	turnErr  error
	reactErr error
	sc       *scene.Scene
	sceneErr error
}

func (f *fakeService) Turn(_ context.Context, req chat.TurnRequest) (*chat.TurnResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, req)
	return f.resp, f.turnErr
}

func (f *fakeService) React(_ context.Context, req chat.ReactionRequest) (*chat.ReactionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reacts = append(f.reacts, req)
	if f.reactErr != nil {
		return nil, f.reactErr
	}
	return &chat.ReactionResponse{Success: true, Message: "심쿵 반응이 기록되었습니다!"}, nil
}

func (f *fakeService) Scene(context.Context, string) (*scene.Scene, error) {
	return f.sc, f.sceneErr
}

func sampleTurn() *chat.TurnResponse {
	return &chat.TurnResponse{
		TurnID: "t1",
		MainResponses: []reaction.MainResponse{
			{CharacterID: "hwang_inha", CharacterName: "황인하", Message: "흥, 뭐야."},
			{CharacterID: "ju_changyun", CharacterName: "주창윤", Action: "*황인하에게 응답하며*", Message: "내가 설명해 주지."},
		},
		SubReactions: []reaction.SubReaction{
			{CharacterID: "lee_seojun", CharacterName: "이서준", Reaction: "*하품한다*"},
		},
	}
}

func message(channel, content string, bot bool) *discordgo.Message {
	return &discordgo.Message{ChannelID: channel, Content: content, Author: &discordgo.User{ID: "42", Bot: bot}}
}

func TestHandleMessage_RunsTurnAndPostsReplies(t *testing.T) {
	t.Parallel()

	svc := &fakeService{resp: sampleTurn()}
	a := NewAdapter(svc, map[string]string{"c1": "rooftop"})
	s := &mock.Session{}

	a.HandleMessage(context.Background(), s, message("c1", "인하야 안녕", false))

	if len(svc.turns) != 1 {
		t.Fatalf("turns: want 1, got %d", len(svc.turns))
	}
	got := svc.turns[0]
	if got.UserID != "discord:42" || got.SessionID != "discord:c1" || got.LocationID != "rooftop" || got.Message != "인하야 안녕" {
		t.Errorf("turn request: got %+v", got)
	}

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages: want 1, got %d", len(msgs))
	}
	want := "**황인하** 흥, 뭐야.\n**주창윤** *황인하에게 응답하며* 내가 설명해 주지.\n_이서준: *하품한다*_"
	if msgs[0].Content != want {
		t.Errorf("content:\nwant %q\ngot  %q", want, msgs[0].Content)
	}
	if len(s.Typing) != 1 {
		t.Errorf("typing indicator: want 1, got %d", len(s.Typing))
	}
}

func TestHandleMessage_Ignored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *discordgo.Message
	}{
		{"bot author", message("c1", "안녕", true)},
		{"unbound channel", message("c2", "안녕", false)},
		{"blank", message("c1", "  ", false)},
		{"no author", &discordgo.Message{ChannelID: "c1", Content: "안녕"}},
	}
	for _, tt := range tests {
		svc := &fakeService{resp: sampleTurn()}
		s := &mock.Session{}
		NewAdapter(svc, map[string]string{"c1": "rooftop"}).HandleMessage(context.Background(), s, tt.msg)
		if len(svc.turns) != 0 || len(s.Messages()) != 0 {
			t.Errorf("%s: want no turn and no message, got %d turns %d messages", tt.name, len(svc.turns), len(s.Messages()))
		}
	}
}

func TestHandleMessage_TurnFailurePostsNotice(t *testing.T) {
	t.Parallel()

	svc := &fakeService{turnErr: errors.New("boom")}
	s := &mock.Session{}
	NewAdapter(svc, map[string]string{"c1": "rooftop"}).HandleMessage(context.Background(), s, message("c1", "안녕", false))

	msgs := s.Messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0].Content, "⚠️") {
		t.Fatalf("want one notice, got %+v", msgs)
	}
	if strings.Contains(msgs[0].Content, "boom") {
		t.Errorf("notice must not leak the error, got %q", msgs[0].Content)
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("가", 30)
	var lines []string
	for range 10 {
		lines = append(lines, line)
	}
	chunks := split(strings.Join(lines, "\n"), 100)
	if len(chunks) != 4 {
		t.Fatalf("chunks: want 4, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Errorf("chunk %d: %d runes exceeds limit", i, n)
		}
	}

	long := strings.Repeat("나", 250)
	chunks = split(long, 100)
	if len(chunks) != 3 || utf8.RuneCountInString(chunks[2]) != 50 {
		t.Errorf("unbroken text: got %d chunks", len(chunks))
	}
	if got := split("", 100); len(got) != 0 {
		t.Errorf("empty: got %v", got)
	}
}

// ── slash commands ───────────────────────────────────────────────────────────

func command(channel, name string, opts map[string]string) *discordgo.InteractionCreate {
	var options []*discordgo.ApplicationCommandInteractionDataOption
	for k, v := range opts {
		options = append(options, &discordgo.ApplicationCommandInteractionDataOption{
			Name: k, Type: discordgo.ApplicationCommandOptionString, Value: v,
		})
	}
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: channel,
		Member:    &discordgo.Member{User: &discordgo.User{ID: "42"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: options},
	}}
}

func newRouted(svc *fakeService) (*Adapter, *CommandRouter) {
	a := NewAdapter(svc, map[string]string{"c1": "rooftop"})
	r := NewCommandRouter()
	a.Register(context.Background(), r)
	return a, r
}

func TestCommandRouter_Definitions(t *testing.T) {
	t.Parallel()

	_, r := newRouted(&fakeService{})
	cmds := r.ApplicationCommands()
	if len(cmds) != 2 || cmds[0].Name != "react" || cmds[1].Name != "scene" {
		t.Fatalf("commands: got %v", cmds)
	}
}

func TestReactCommand(t *testing.T) {
	t.Parallel()

	svc := &fakeService{resp: sampleTurn()}
	a, r := newRouted(svc)
	s := &mock.Session{}
	a.HandleMessage(context.Background(), s, message("c1", "인하야 안녕", false))

	r.Handle(s, command("c1", "react", map[string]string{"character": "hwang_inha", "emoji": "❤️"}))

	if len(svc.reacts) != 1 {
		t.Fatalf("reactions: want 1, got %d", len(svc.reacts))
	}
	got := svc.reacts[0]
	if got.TurnID != "t1" || got.UserID != "discord:42" || got.UserMessage != "인하야 안녕" || got.CharacterResponse != "흥, 뭐야." {
		t.Errorf("reaction request: got %+v", got)
	}
	resp := s.LastResponse()
	if resp == nil || resp.Data.Flags != discordgo.MessageFlagsEphemeral || !strings.Contains(resp.Data.Content, "심쿵") {
		t.Errorf("response: got %+v", resp)
	}
}

func TestReactCommand_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reactErr error
		char     string
		want     string
		reacts   int
	}{
		{"character did not speak", nil, "lee_seojun", "찾을 수 없어요", 0},
		{"unsupported emoji", fmt.Errorf("%w: unknown reaction", chat.ErrValidation), "hwang_inha", "지원하지 않는", 1},
		{"store failure", errors.New("db down"), "hwang_inha", "기록하지 못했어요", 1},
	}
	for _, tt := range tests {
		svc := &fakeService{resp: sampleTurn(), reactErr: tt.reactErr}
		a, r := newRouted(svc)
		s := &mock.Session{}
		a.HandleMessage(context.Background(), s, message("c1", "안녕", false))

		r.Handle(s, command("c1", "react", map[string]string{"character": tt.char, "emoji": "👍"}))
		if len(svc.reacts) != tt.reacts {
			t.Errorf("%s: reactions want %d, got %d", tt.name, tt.reacts, len(svc.reacts))
		}
		if resp := s.LastResponse(); resp == nil || !strings.Contains(resp.Data.Content, tt.want) {
			t.Errorf("%s: response want %q, got %+v", tt.name, tt.want, resp)
		}
	}
}

func TestSceneCommand(t *testing.T) {
	t.Parallel()

	sc := &scene.Scene{
		Location:     "학교 옥상",
		Tension:      6,
		Atmosphere:   "neutral",
		CurrentFocus: "유저 ↔ 황인하",
		Roster:       []string{"hwang_inha", "lee_seojun"},
		States: map[string]*scene.CharacterState{
			"hwang_inha": {CharacterName: "황인하", Attention: scene.AttentionUser, Recent: true},
			"lee_seojun": {CharacterName: "이서준", Attention: scene.AttentionNone},
		},
	}
	_, r := newRouted(&fakeService{sc: sc})
	s := &mock.Session{}
	r.Handle(s, command("c1", "scene", nil))

	resp := s.LastResponse()
	if resp == nil {
		t.Fatal("no response")
	}
	for _, want := range []string{"학교 옥상", "긴장도 6/10", "유저 ↔ 황인하", "황인하: user (방금 말함)", "이서준: none"} {
		if !strings.Contains(resp.Data.Content, want) {
			t.Errorf("response should contain %q, got %q", want, resp.Data.Content)
		}
	}
	if resp.Data.Flags != 0 {
		t.Errorf("scene summary is public, got flags %v", resp.Data.Flags)
	}
}

func TestSceneCommand_NoSession(t *testing.T) {
	t.Parallel()

	_, r := newRouted(&fakeService{sceneErr: chat.ErrSessionNotFound})
	s := &mock.Session{}
	r.Handle(s, command("c1", "scene", nil))
	if resp := s.LastResponse(); resp == nil || !strings.Contains(resp.Data.Content, "아직 시작된 장면이 없어요") {
		t.Errorf("got %+v", resp)
	}

	r.Handle(s, command("c9", "scene", nil))
	if resp := s.LastResponse(); resp == nil || !strings.Contains(resp.Data.Content, "연결되어 있지 않아요") {
		t.Errorf("unbound channel: got %+v", resp)
	}
}

func TestCommandRouter_UnknownCommand(t *testing.T) {
	t.Parallel()

	_, r := newRouted(&fakeService{})
	s := &mock.Session{}
	r.Handle(s, command("c1", "dance", nil))
	if resp := s.LastResponse(); resp == nil || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Errorf("got %+v", resp)
	}
}
