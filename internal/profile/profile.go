// Package profile learns about the user from what they say. Every chat
// message is run through an extraction prompt; the facts it yields are
// merged into the stored [memory.UserProfile], which in turn is rendered
// into character prompts.
//
// Updating is a best-effort side channel: it never fails a turn.
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synk-web/synk/internal/keylock"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/resilience"
	"github.com/synk-web/synk/internal/textgen"
	"github.com/synk-web/synk/pkg/memory"
)

// Extraction is what the model found in one user message.
type Extraction struct {
	Nickname string          `json:"nickname"`
	Ability  *memory.Ability `json:"ability"`
	Traits   []string        `json:"traits"`
	Action   string          `json:"action"`
	Facts    []string        `json:"facts"`
	Likes    []string        `json:"likes"`
	Dislikes []string        `json:"dislikes"`
}

// Scene is where the message was said.
type Scene struct {
	Location   string
	Characters []string
}

// Service extracts and merges profile updates.
type Service struct {
	gen     textgen.Generator
	store   memory.ProfileStore
	locks   keylock.Map
	metrics *observe.Metrics
	now     func() time.Time
}

// Option configures a [Service].
type Option func(*Service)

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service.
func New(gen textgen.Generator, store memory.ProfileStore, opts ...Option) *Service {
	s := &Service{gen: gen, store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Get returns the stored profile, or (nil, nil) when the user has none.
func (s *Service) Get(ctx context.Context, userID string) (*memory.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", userID, err)
	}
	return p, nil
}

// Update extracts facts from message and merges them into the user's
// profile. On any failure the result is degraded and carries the profile
// as it was before the call (possibly nil).
func (s *Service) Update(ctx context.Context, userID, message string, sc Scene) resilience.Result[*memory.UserProfile] {
	ctx, span := observe.StartSpan(ctx, "profile.update")
	defer span.End()
	log := observe.Logger(ctx).With("user_id", userID)

	degrade := func(p *memory.UserProfile, err error) resilience.Result[*memory.UserProfile] {
		log.Warn("profile: update degraded", "err", err)
		s.metrics.RecordDegraded(ctx, "profile")
		return resilience.Degraded(p, err)
	}

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return degrade(nil, fmt.Errorf("profile: lock: %w", err))
	}
	defer unlock()

	current, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		s.metrics.RecordStoreError(ctx, "get_profile")
		return degrade(nil, fmt.Errorf("profile: load: %w", err))
	}

	raw, err := s.gen.Generate(ctx, Prompt(message, sc), textgen.WithKind(observe.KindProfile), textgen.WithJSON())
	if err != nil {
		return degrade(current, fmt.Errorf("profile: extract: %w", err))
	}
	var ex Extraction
	if err := textgen.DecodeJSON(raw, &ex); err != nil {
		return degrade(current, fmt.Errorf("profile: decode extraction: %w", err))
	}

	next := current.Clone()
	if next == nil {
		next = memory.NewUserProfile(userID, s.now())
	}
	Merge(next, ex, sc, s.now())

	if err := s.store.PutProfile(ctx, next); err != nil {
		s.metrics.RecordStoreError(ctx, "put_profile")
		return degrade(current, fmt.Errorf("profile: save: %w", err))
	}
	return resilience.Ok(next)
}

// Prompt renders the extraction request.
func Prompt(message string, sc Scene) string {
	location := sc.Location
	if location == "" {
		location = "알 수 없음"
	}
	return fmt.Sprintf(`[유저 메시지]
%s

[대화 맥락]
장소: %s
캐릭터: %s

[추출할 정보]
1. 닉네임/이름 언급 여부
2. 능력 설명 여부 (능력명, 설명, 등급)
3. 성격 특성 (도발적, 소심함, 유머러스, 자신감 등)
4. 중요한 행동 (싸움, 협력, 거절, 위협 등)
5. 새로운 사실 (좋아하는 것, 싫어하는 것, 과거 경험 등)

[JSON 형식으로 응답]
{
  "nickname": "추출된 이름 또는 null",
  "ability": {"name": "능력명", "description": "설명", "rank": "등급 (S/A/B/C/D)", "type": "능력 타입"} 또는 null,
  "traits": ["특성1", "특성2"],
  "action": "주요 행동" 또는 null,
  "facts": ["새로운 사실1", "사실2"],
  "likes": ["좋아하는 것"],
  "dislikes": ["싫어하는 것"]
}
`, message, location, strings.Join(sc.Characters, ", "))
}

// PromptContext renders p for a character prompt, or "" for a nil profile.
func PromptContext(p *memory.UserProfile) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n[유저(주인공) 정보]\n")
	fmt.Fprintf(&b, "- 이름: %s\n", orUnknown(p.Nickname))
	fmt.Fprintf(&b, "- 능력: %s\n", orUnknown(p.Ability.Name))
	if p.Ability.Description != "" {
		fmt.Fprintf(&b, "  └ %s\n", p.Ability.Description)
	}
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "- 성격: %s\n", strings.Join(p.Traits, ", "))
	}
	if n := len(p.Actions); n > 0 {
		recent := make([]string, 0, 3)
		for _, a := range p.Actions[max(0, n-3):] {
			recent = append(recent, a.Action)
		}
		fmt.Fprintf(&b, "- 최근 행동: %s\n", strings.Join(recent, ", "))
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "알 수 없음"
	}
	return s
}
