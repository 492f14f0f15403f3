// Package story keeps the narrative memory of a session: after each turn a
// short summary and a longer analysis are generated, stored, and fed back
// into later prompts so characters stay consistent with what happened.
package story

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/resilience"
	"github.com/synk-web/synk/internal/textgen"
	"github.com/synk-web/synk/pkg/memory"
)

const (
	// DefaultTimeout bounds the summary generation call.
	DefaultTimeout = 5 * time.Second

	// DefaultContextTurns is how many stored summaries go into prompts.
	DefaultContextTurns = 5

	promptSummaries = 5
)

// Input is everything the summariser needs about one resolved turn.
type Input struct {
	SessionID   string
	UserID      string
	Location    string
	TurnID      string
	TurnNumber  int
	UserMessage string
	// Responses are the main responses in generation order.
	Responses []memory.SummaryResponse
	// States is every character's scene state after the turn, keyed by id.
	States map[string]memory.SummaryState
	// Order lists States keys in roster order.
	Order []string
}

// Summarizer generates and stores per-turn story summaries.
type Summarizer struct {
	gen          textgen.Generator
	store        memory.StorySummaryStore
	timeout      time.Duration
	contextTurns int
	metrics      *observe.Metrics
	now          func() time.Time
}

// Option configures a [Summarizer].
type Option func(*Summarizer)

// WithTimeout bounds summary generation. Non-positive values keep
// [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithContextTurns sets how many summaries [Summarizer.Context] renders.
func WithContextTurns(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.contextTurns = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Summarizer) { s.metrics = m }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Summarizer) { s.now = now }
}

// New returns a Summarizer.
func New(gen textgen.Generator, store memory.StorySummaryStore, opts ...Option) *Summarizer {
	s := &Summarizer{
		gen:          gen,
		store:        store,
		timeout:      DefaultTimeout,
		contextTurns: DefaultContextTurns,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Summarize generates, stores and returns the summary of one turn. When
// generation fails or times out the result is degraded and carries the
// templated summary. A storage failure is logged and does not degrade the
// result.
func (s *Summarizer) Summarize(ctx context.Context, in Input) resilience.Result[memory.StorySummary] {
	ctx, span := observe.StartSpan(ctx, "story.summarize")
	defer span.End()
	log := observe.Logger(ctx).With("session_id", in.SessionID, "turn", in.TurnNumber)

	rec := memory.StorySummary{
		ID:                 uuid.NewString(),
		SessionID:          in.SessionID,
		UserID:             in.UserID,
		Location:           in.Location,
		TurnNumber:         in.TurnNumber,
		TurnID:             in.TurnID,
		UserMessage:        in.UserMessage,
		CharacterResponses: in.Responses,
		CharacterStates:    in.States,
		CreatedAt:          s.now(),
	}

	var cause error
	previous, err := s.store.RecentSummaries(ctx, in.SessionID, promptSummaries)
	if err != nil {
		log.Warn("story: load previous summaries", "err", err)
		s.metrics.RecordStoreError(ctx, "recent_summaries")
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	raw, err := s.gen.Generate(genCtx, Prompt(in, previous), textgen.WithKind(observe.KindSummary))
	cancel()
	if err != nil {
		cause = fmt.Errorf("story: summarize: %w", err)
		log.Warn("story: generation failed, using template", "err", err)
		s.metrics.RecordDegraded(ctx, "summary")
		var first *memory.SummaryResponse
		if len(in.Responses) > 0 {
			first = &in.Responses[0]
		}
		rec.Summary, rec.Analysis = Template(in.UserMessage, first)
	} else {
		rec.Summary, rec.Analysis = Parse(raw)
	}

	if err := s.store.AppendSummary(ctx, rec); err != nil {
		log.Warn("story: persist summary", "err", err)
		s.metrics.RecordStoreError(ctx, "append_summary")
	}

	if cause != nil {
		return resilience.Degraded(rec, cause)
	}
	return resilience.Ok(rec)
}

// Context renders the session's most recent summaries for a generation
// prompt, or "" when there are none.
func (s *Summarizer) Context(ctx context.Context, sessionID string) (string, error) {
	recent, err := s.store.RecentSummaries(ctx, sessionID, s.contextTurns)
	if err != nil {
		return "", fmt.Errorf("story: context: %w", err)
	}
	return FormatContext(recent), nil
}

// Recent returns up to limit stored summaries, oldest first.
func (s *Summarizer) Recent(ctx context.Context, sessionID string, limit int) ([]memory.StorySummary, error) {
	out, err := s.store.RecentSummaries(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("story: recent: %w", err)
	}
	return out, nil
}

const contextRule = "═══════════════════════════════════════"

// FormatContext renders summaries with their turn number, summary and an
// analysis cut to 200 runes.
func FormatContext(sums []memory.StorySummary) string {
	if len(sums) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n[📖 최근 스토리 흐름 - 반드시 참고하세요]\n%s\n\n", contextRule, contextRule)
	b.WriteString("이전 대화에서 일어난 중요한 사건들입니다. 이 정보를 바탕으로 일관성 있게 응답하세요.\n\n")
	for _, s := range sums {
		fmt.Fprintf(&b, "[턴 %d]\n요약: %s\n", s.TurnNumber, s.Summary)
		if s.Analysis != "" {
			a := s.Analysis
			if r := []rune(a); len(r) > 200 {
				a = string(r[:200]) + "..."
			}
			fmt.Fprintf(&b, "상황: %s\n", a)
		}
		b.WriteString("\n")
	}
	b.WriteString(contextRule)
	return b.String()
}
