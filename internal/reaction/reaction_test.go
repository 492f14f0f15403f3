package reaction

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/internal/textgen"
	"github.com/synk-web/synk/internal/textgen/mock"
	"github.com/synk-web/synk/internal/thought"
	"github.com/synk-web/synk/pkg/memory"
)

const thoughtJSON = `{"thought": "재밌는 녀석이네", "surface_emotion": "무관심", "inner_emotion": "호기심", "emotion_gap": true}`

var errBackend = &textgen.Error{Kind: textgen.Unavailable, Provider: "mock", Err: errors.New("503")}

// speaker extracts the character a generation prompt is addressed to.
func speaker(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "당신은 '")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "'")
	return name
}

// scripted answers thought prompts with thoughtJSON and everything else with
// reply(kind, speaker).
func scripted(reply func(kind, name string) (string, error)) *mock.Generator {
	return &mock.Generator{Func: func(kind, prompt string) (string, error) {
		if kind == observe.KindThought {
			return thoughtJSON, nil
		}
		return reply(kind, speaker(prompt))
	}}
}

func plainReply(kind, name string) (string, error) {
	return name + " " + kind + " 대사", nil
}

func newEngine(gen textgen.Generator, opts ...Option) *Engine {
	opts = append([]Option{WithMetrics(observe.DefaultMetrics()), WithInterjection(0, DefaultMaxInterjections)}, opts...)
	return New(gen, thought.New(gen), opts...)
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func mainIDs(r *Result) []string {
	return ids(r.Main, func(m MainResponse) string { return m.CharacterID })
}

func subIDs(r *Result) []string {
	return ids(r.Sub, func(s SubReaction) string { return s.CharacterID })
}

func silentIDs(r *Result) []string {
	return ids(r.Silent, func(s Silent) string { return s.CharacterID })
}

func TestResolve_EmptyRoster(t *testing.T) {
	t.Parallel()
	e := newEngine(scripted(plainReply))
	if _, err := e.Resolve(context.Background(), Request{UserMessage: "안녕"}); !errors.Is(err, ErrEmptyRoster) {
		t.Fatalf("want ErrEmptyRoster, got %v", err)
	}
}

func TestResolve_MentionedCharacterIsMain(t *testing.T) {
	t.Parallel()

	gen := scripted(plainReply)
	e := newEngine(gen)
	res, err := e.Resolve(context.Background(), Request{
		UserID:      "u1",
		UserMessage: "인하야 안녕",
		Location:    "학교 옥상",
		Roster:      testRoster(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mainIDs(res); !slices.Equal(got, []string{"hwang_inha"}) {
		t.Fatalf("main: want [hwang_inha], got %v", got)
	}
	m := res.Main[0]
	if m.Kind != KindMain || m.Target != scene.UserTarget {
		t.Errorf("main kind/target: got %s/%s", m.Kind, m.Target)
	}
	if m.Message != "황인하 main 대사" {
		t.Errorf("message: got %q", m.Message)
	}
	if m.Thought == nil || m.Thought.InnerEmotion != "호기심" {
		t.Errorf("main thought not attached: %+v", m.Thought)
	}
	if got := subIDs(res); !slices.Equal(got, []string{"ju_changyun", "lee_seojun"}) {
		t.Errorf("sub: want [ju_changyun lee_seojun], got %v", got)
	}
	if len(res.Silent) != 0 {
		t.Errorf("silent: want none, got %v", silentIDs(res))
	}
	if n := len(gen.CallsOfKind(observe.KindThought)); n != 3 {
		t.Errorf("thought calls: want 3, got %d", n)
	}
}

func TestResolve_EveryMentionedCharacterIsMain(t *testing.T) {
	t.Parallel()

	e := newEngine(scripted(plainReply))
	res, err := e.Resolve(context.Background(), Request{
		UserMessage: "서준아, 인하씨 둘 다 와봐",
		Roster:      testRoster(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mainIDs(res); !slices.Equal(got, []string{"hwang_inha", "lee_seojun"}) {
		t.Fatalf("main: want roster-ordered mentioned set, got %v", got)
	}
}

func TestResolve_RecentCharacterKeepsTalking(t *testing.T) {
	t.Parallel()

	roster := testRoster()
	sc := scene.New("s1", "학교 옥상", roster, time.Now())
	sc.States["ju_changyun"].Recent = true
	sc.States["lee_seojun"].Attention = scene.AttentionNone

	e := newEngine(scripted(plainReply))
	res, err := e.Resolve(context.Background(), Request{
		UserMessage: "오늘 날씨 좋다",
		Roster:      roster,
		Scene:       sc,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mainIDs(res); !slices.Equal(got, []string{"ju_changyun"}) {
		t.Fatalf("main: want [ju_changyun], got %v", got)
	}
	if got := subIDs(res); !slices.Equal(got, []string{"hwang_inha"}) {
		t.Errorf("sub: want [hwang_inha], got %v", got)
	}
	if got := silentIDs(res); !slices.Equal(got, []string{"lee_seojun"}) {
		t.Errorf("silent: want [lee_seojun], got %v", got)
	}
	if res.Silent[0].Thought == nil {
		t.Error("silent character must still get a thought")
	}
	if res.Types["lee_seojun"] != TypeIgnore {
		t.Errorf("type: want ignore, got %s", res.Types["lee_seojun"])
	}
}

func TestResolve_AllScopeOnlyRecentAreMain(t *testing.T) {
	t.Parallel()

	roster := testRoster()
	sc := scene.New("s1", "학교 옥상", roster, time.Now())
	sc.States["hwang_inha"].Recent = true

	e := newEngine(scripted(plainReply))
	res, err := e.Resolve(context.Background(), Request{UserMessage: "모두 안녕", Roster: roster, Scene: sc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scope != ScopeAll {
		t.Fatalf("scope: want all, got %s", res.Scope)
	}
	if got := mainIDs(res); !slices.Equal(got, []string{"hwang_inha"}) {
		t.Fatalf("main: want [hwang_inha], got %v", got)
	}
	if len(res.Sub) != 2 {
		t.Errorf("sub: want 2, got %v", subIDs(res))
	}
}

func TestResolve_MainSetFallbacks(t *testing.T) {
	t.Parallel()

	roster := testRoster()
	withLast := scene.New("s1", "학교 옥상", roster, time.Now())
	withLast.LastSpeakerID = "lee_seojun"
	departed := scene.New("s2", "학교 옥상", roster, time.Now())
	departed.LastSpeakerID = "someone_else"

	tests := []struct {
		name string
		sc   *scene.Scene
		want string
	}{
		{"last speaker", withLast, "lee_seojun"},
		{"last speaker not present", departed, "hwang_inha"},
		{"no scene", nil, "hwang_inha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEngine(scripted(plainReply))
			res, err := e.Resolve(context.Background(), Request{UserMessage: "음...", Roster: roster, Scene: tt.sc})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := mainIDs(res); !slices.Equal(got, []string{tt.want}) {
				t.Fatalf("main: want [%s], got %v", tt.want, got)
			}
		})
	}
}

func TestResolve_TikiTakaSinglePass(t *testing.T) {
	t.Parallel()

	gen := scripted(func(kind, name string) (string, error) {
		switch {
		case kind == KindMain && name == "황인하":
			return "창윤아, 네가 대답해봐.", nil
		case kind == KindTikiTaka:
			// Naming 서준 here must not chain a second tiki-taka.
			return "흥, 서준이한테 물어보지 그래?", nil
		}
		return "...", nil
	})
	e := newEngine(gen)
	res, err := e.Resolve(context.Background(), Request{UserMessage: "인하야 뭐해?", Roster: testRoster()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mainIDs(res); !slices.Equal(got, []string{"hwang_inha", "ju_changyun"}) {
		t.Fatalf("main: want [hwang_inha ju_changyun], got %v", got)
	}
	tk := res.Main[1]
	if tk.Kind != KindTikiTaka {
		t.Errorf("kind: want tikitaka, got %s", tk.Kind)
	}
	if tk.Action != "*황인하에게 응답하며*" {
		t.Errorf("action: got %q", tk.Action)
	}
	if tk.Target != "hwang_inha" || tk.TargetName != "황인하" {
		t.Errorf("target: got %s/%s", tk.Target, tk.TargetName)
	}
	if got := subIDs(res); !slices.Equal(got, []string{"lee_seojun"}) {
		t.Errorf("sub: want [lee_seojun], got %v", got)
	}
	if n := len(gen.CallsOfKind(KindTikiTaka)); n != 1 {
		t.Errorf("tiki-taka calls: want 1, got %d", n)
	}
}

func TestResolve_Interjection(t *testing.T) {
	t.Parallel()

	roster := append(testRoster(),
		character.Character{ID: "kim_doha", Name: "김도하"},
		character.Character{ID: "park_sera", Name: "박세라"},
	)
	gen := scripted(plainReply)
	e := newEngine(gen, WithInterjection(1, 3), WithSeed(42))
	res, err := e.Resolve(context.Background(), Request{UserMessage: "인하야", Roster: roster})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Main) != 4 {
		t.Fatalf("main: want 1 + 3 interjections, got %v", mainIDs(res))
	}
	for _, m := range res.Main[1:] {
		if m.Kind != KindInterjection || m.Action != interjectionAction || m.Target != scene.UserTarget {
			t.Errorf("interjection %s: got kind=%s action=%q target=%s", m.CharacterID, m.Kind, m.Action, m.Target)
		}
		if m.CharacterID == "hwang_inha" {
			t.Error("main responder must not interject")
		}
	}
	if len(res.Sub) != 1 {
		t.Errorf("sub: want the one remaining character, got %v", subIDs(res))
	}
	prompts := gen.CallsOfKind(KindInterjection)
	if len(prompts) != 3 || !strings.Contains(prompts[0].Prompt, "황인하: 황인하 main 대사...") {
		t.Errorf("interjection prompt must quote the main replies")
	}
}

func TestResolve_InterjectionFailureDoesNotCount(t *testing.T) {
	t.Parallel()

	gen := scripted(func(kind, name string) (string, error) {
		if kind == KindInterjection && name == "주창윤" {
			return "", errBackend
		}
		return plainReply(kind, name)
	})
	e := newEngine(gen, WithInterjection(1, 3), WithSeed(7))
	res, err := e.Resolve(context.Background(), Request{UserMessage: "인하야", Roster: testRoster()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mainIDs(res); !slices.Equal(got, []string{"hwang_inha", "lee_seojun"}) {
		t.Fatalf("main: want [hwang_inha lee_seojun], got %v", got)
	}
	// A failed interjector is out of the main set but still reacts.
	if got := subIDs(res); !slices.Equal(got, []string{"ju_changyun"}) {
		t.Errorf("sub: want [ju_changyun], got %v", got)
	}
}

func TestResolve_SeedIsDeterministic(t *testing.T) {
	t.Parallel()

	roster := append(testRoster(),
		character.Character{ID: "kim_doha", Name: "김도하"},
		character.Character{ID: "park_sera", Name: "박세라"},
		character.Character{ID: "choi_yuna", Name: "최유나"},
	)
	run := func() [][]string {
		e := newEngine(scripted(plainReply), WithInterjection(0.5, 2), WithSeed(2025))
		var turns [][]string
		for range 8 {
			res, err := e.Resolve(context.Background(), Request{UserMessage: "인하야", Roster: roster})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			turns = append(turns, mainIDs(res))
		}
		return turns
	}
	a, b := run(), run()
	for i := range a {
		if !slices.Equal(a[i], b[i]) {
			t.Fatalf("turn %d: same seed produced %v and %v", i, a[i], b[i])
		}
	}
}

func TestResolve_MainFailureSkipsOnlyThatCharacter(t *testing.T) {
	t.Parallel()

	gen := scripted(func(kind, name string) (string, error) {
		if kind == KindMain && name == "황인하" {
			return "", errBackend
		}
		return plainReply(kind, name)
	})
	e := newEngine(gen)
	res, err := e.Resolve(context.Background(), Request{UserMessage: "인하야, 창윤아", Roster: testRoster()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mainIDs(res); !slices.Equal(got, []string{"ju_changyun"}) {
		t.Fatalf("main: want [ju_changyun], got %v", got)
	}
	if got := subIDs(res); !slices.Equal(got, []string{"lee_seojun"}) {
		t.Errorf("sub: failed main responder must not fall back to a sub reaction, got %v", got)
	}
}

func TestResolve_ThoughtFailureKeepsReply(t *testing.T) {
	t.Parallel()

	gen := &mock.Generator{Func: func(kind, prompt string) (string, error) {
		if kind == observe.KindThought {
			return "", errBackend
		}
		return "흥.", nil
	}}
	e := newEngine(gen)
	res, err := e.Resolve(context.Background(), Request{UserMessage: "인하야", Roster: testRoster()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Main) != 1 || res.Main[0].Message != "흥." {
		t.Fatalf("main reply must survive a thought failure, got %+v", res.Main)
	}
	if res.Main[0].Thought != nil {
		t.Errorf("degraded thought must be nil, got %+v", res.Main[0].Thought)
	}
}

func TestResolve_SubFailureIsOmitted(t *testing.T) {
	t.Parallel()

	gen := scripted(func(kind, name string) (string, error) {
		if kind == observe.KindSub {
			return "", errBackend
		}
		return plainReply(kind, name)
	})
	e := newEngine(gen)
	res, err := e.Resolve(context.Background(), Request{UserMessage: "인하야", Roster: testRoster()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Main) != 1 || len(res.Sub) != 0 {
		t.Fatalf("want 1 main and no subs, got main=%v sub=%v", mainIDs(res), subIDs(res))
	}
}

func TestResolve_UsesGivenRelationship(t *testing.T) {
	t.Parallel()

	rel := memory.NewRelationship("u1", "hwang_inha", 0, time.Now())
	rel.Intimacy = 9.5
	gen := scripted(plainReply)
	e := newEngine(gen)
	_, err := e.Resolve(context.Background(), Request{
		UserID:        "u1",
		UserMessage:   "인하야",
		Roster:        testRoster(),
		Relationships: map[string]*memory.RelationshipData{"hwang_inha": rel},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := gen.CallsOfKind(KindMain)
	if len(calls) != 1 || !strings.Contains(calls[0].Prompt, "친밀도: 9.5/10.0") {
		t.Fatalf("main prompt must carry the relationship context")
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEngine(scripted(plainReply))
	if _, err := e.Resolve(ctx, Request{UserMessage: "인하야", Roster: testRoster()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
