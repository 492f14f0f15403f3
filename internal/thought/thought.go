// Package thought generates a character's inner monologue: what they
// really think behind the line they just spoke, how they read the user and
// what they intend next.
//
// Generation is best-effort. A generator failure yields a degraded result
// with no record; malformed model output yields a neutral default record.
package thought

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/relationship"
	"github.com/synk-web/synk/internal/resilience"
	"github.com/synk-web/synk/internal/textgen"
	"github.com/synk-web/synk/pkg/memory"
)

// Record is one generated inner thought.
type Record struct {
	CharacterID    string    `json:"character_id"`
	CharacterName  string    `json:"character_name"`
	TurnID         string    `json:"turn_id"`
	Thought        string    `json:"thought"`
	SurfaceEmotion string    `json:"surface_emotion"`
	InnerEmotion   string    `json:"inner_emotion"`
	EmotionGap     bool      `json:"emotion_gap"`
	UserEvaluation string    `json:"user_evaluation,omitempty"`
	Attitude       string    `json:"attitude_toward_user,omitempty"`
	Intention      string    `json:"intention,omitempty"`
	NextPlan       string    `json:"next_plan,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Plain wraps a bare monologue line in a Record with neutral emotions.
func Plain(text string) *Record {
	return &Record{Thought: text, SurfaceEmotion: neutral, InnerEmotion: neutral}
}

// Text returns the monologue, or "" for a nil record.
func (r *Record) Text() string {
	if r == nil {
		return ""
	}
	return r.Thought
}

// Clone returns a copy of r. Nil-safe.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// GapDescription contrasts the surface and inner emotion.
func (r *Record) GapDescription() string {
	if r.SurfaceEmotion == r.InnerEmotion {
		return "솔직한 상태"
	}
	return fmt.Sprintf("겉으로는 '%s'이지만, 속으로는 '%s'", r.SurfaceEmotion, r.InnerEmotion)
}

// SceneSummary is the slice of scene state an inner-thought prompt needs.
type SceneSummary struct {
	Location     string
	Atmosphere   string
	Tension      int
	RecentEvents []string
}

// Request describes one inner-thought generation.
type Request struct {
	Character *character.Character
	// Dialogue is the line the character just spoke; empty for silent
	// characters.
	Dialogue    string
	UserMessage string
	// Relationship may be nil when the character has no history with the
	// user.
	Relationship *memory.RelationshipData
	Location     string
	Scene        *SceneSummary
	// TurnID is stamped on the record. A fresh id is generated when empty.
	TurnID string
}

const (
	neutral = "중립"

	personalityLimit = 200
	userMessageLimit = 200
	rawFallbackLimit = 100
)

// Generator produces inner thoughts through a [textgen.Generator].
type Generator struct {
	gen     textgen.Generator
	metrics *observe.Metrics
	now     func() time.Time
}

// Option configures a [Generator].
type Option func(*Generator)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New returns a Generator backed by gen.
func New(gen textgen.Generator, opts ...Option) *Generator {
	g := &Generator{gen: gen, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate runs one inner-thought generation. The result is degraded with a
// nil record when the generator fails; it is never degraded because of
// malformed output.
func (g *Generator) Generate(ctx context.Context, req Request) resilience.Result[*Record] {
	ctx, span := observe.StartSpan(ctx, "thought.generate",
		trace.WithAttributes(attribute.String("character_id", req.Character.ID)))
	defer span.End()

	raw, err := g.gen.Generate(ctx, Prompt(req), textgen.WithKind(observe.KindThought), textgen.WithJSON())
	if err != nil {
		observe.Logger(ctx).Warn("thought: generation failed", "character_id", req.Character.ID, "err", err)
		g.metrics.RecordDegraded(ctx, "thought")
		return resilience.Degraded[*Record](nil, fmt.Errorf("thought: %w", err))
	}

	rec := Parse(raw)
	rec.CharacterID = req.Character.ID
	rec.CharacterName = req.Character.Name
	rec.TurnID = req.TurnID
	if rec.TurnID == "" {
		rec.TurnID = uuid.NewString()
	}
	rec.Timestamp = g.now()
	return resilience.Ok(rec)
}

// Prompt renders the inner-thought prompt for req.
func Prompt(req Request) string {
	c := req.Character
	status := "알 수 없음"
	if req.Relationship != nil {
		status = relationship.Familiarity(req.Relationship.Intimacy)
	}
	dialogue := req.Dialogue
	if dialogue == "" {
		dialogue = "(아무 말도 하지 않음)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[캐릭터 정보]\n이름: %s\n성격: %s\n유저와의 관계: %s\n\n", c.Name, runePrefix(c.Personality, personalityLimit), status)
	fmt.Fprintf(&b, "[상황]\n장소: %s\n", req.Location)
	if s := req.Scene; s != nil {
		events := "없음"
		if n := len(s.RecentEvents); n > 0 {
			events = strings.Join(s.RecentEvents[max(0, n-3):], ", ")
		}
		fmt.Fprintf(&b, "현재 상황:\n- 장소: %s\n- 분위기: %s (긴장도: %d/10)\n- 최근 이벤트: %s\n", s.Location, s.Atmosphere, s.Tension, events)
	}
	fmt.Fprintf(&b, "\n[캐릭터가 방금 한 말]\n%q\n\n", dialogue)
	fmt.Fprintf(&b, "[유저의 이전 말/행동]\n%s\n\n", runePrefix(req.UserMessage, userMessageLimit))
	fmt.Fprintf(&b, `[생성 요청]
%s의 속마음을 작성하세요.
- 겉으로 한 말과 다를 수 있는 진짜 생각
- 유저에 대한 솔직한 평가
- 앞으로 어떻게 할지 의도

[중요]
- 캐릭터의 성격에 맞는 사고방식으로
- 1~2문장의 짧은 독백 형식
- 솔직하고 날것의 생각

[JSON 형식으로 응답]
{
  "thought": "속마음 독백 (1~2문장)",
  "surface_emotion": "겉으로 보이는 감정",
  "inner_emotion": "실제 속 감정",
  "emotion_gap": true/false,
  "user_evaluation": "유저에 대한 평가",
  "attitude_toward_user": "유저를 대하는 태도",
  "intention": "현재 의도",
  "next_plan": "다음 계획"
}
`, c.Name)
	return b.String()
}

type payload struct {
	Thought        string   `json:"thought"`
	SurfaceEmotion string   `json:"surface_emotion"`
	InnerEmotion   string   `json:"inner_emotion"`
	EmotionGap     flexBool `json:"emotion_gap"`
	UserEvaluation string   `json:"user_evaluation"`
	Attitude       string   `json:"attitude_toward_user"`
	Intention      string   `json:"intention"`
	NextPlan       string   `json:"next_plan"`
}

// flexBool accepts true, false and their quoted forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("thought: emotion_gap: %w", err)
	}
	*b = flexBool(v)
	return nil
}

// Parse turns raw model output into a Record. Output that cannot be decoded
// even after repair becomes a neutral record quoting the start of the raw
// text. Identity fields are left
// for the caller.
func Parse(raw string) *Record {
	var p payload
	if err := textgen.DecodeJSON(raw, &p); err != nil {
		return &Record{
			Thought:        runePrefix(textgen.Unfence(raw), rawFallbackLimit) + "...",
			SurfaceEmotion: neutral,
			InnerEmotion:   neutral,
			UserEvaluation: "평가 중",
			Attitude:       neutral,
			Intention:      "관찰 중",
		}
	}

	rec := &Record{
		Thought:        p.Thought,
		SurfaceEmotion: p.SurfaceEmotion,
		InnerEmotion:   p.InnerEmotion,
		EmotionGap:     bool(p.EmotionGap),
		UserEvaluation: p.UserEvaluation,
		Attitude:       p.Attitude,
		Intention:      p.Intention,
		NextPlan:       p.NextPlan,
	}
	if rec.SurfaceEmotion == "" {
		rec.SurfaceEmotion = neutral
	}
	if rec.InnerEmotion == "" {
		rec.InnerEmotion = neutral
	}
	return rec
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
