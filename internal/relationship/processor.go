package relationship

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/keylock"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/pkg/memory"
)

// Turn is one exchange between the user and a character.
type Turn struct {
	TurnID            string
	UserMessage       string
	CharacterResponse string
}

// Intimacy rules applied once per processed turn.
const (
	heartIntimacy      = 0.3
	baseIntimacy       = 0.1
	joyIntimacyBonus   = 0.2
	angerIntimacyCost  = 0.1
	balancedBonus      = 0.1
	balancedDominance  = 0.3
	maxIntimacy        = 10.0
	relationshipKeySep = "\x00"
)

// Processor applies turns to relationships and persists them. Updates to one
// (user, character) pair are serialised, so a reaction and a turn arriving
// together cannot both read the same snapshot.
type Processor struct {
	store   memory.RelationshipStore
	chars   character.Directory
	locks   keylock.Map
	metrics *observe.Metrics
	now     func() time.Time
}

// Option configures a [Processor].
type Option func(*Processor)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor over store and chars.
func NewProcessor(store memory.RelationshipStore, chars character.Directory, opts ...Option) *Processor {
	p := &Processor{store: store, chars: chars, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Get returns the stored relationship, or (nil, nil) when the pair has never
// been processed. It never creates one.
func (p *Processor) Get(ctx context.Context, userID, characterID string) (*memory.RelationshipData, error) {
	rel, err := p.store.GetRelationship(ctx, userID, characterID)
	if err != nil {
		p.metrics.RecordStoreError(ctx, "relationship.get")
		return nil, err
	}
	return rel, nil
}

// GetOrNew returns the stored relationship or, when absent, a fresh unsaved
// one seeded with the character's default dominance.
func (p *Processor) GetOrNew(ctx context.Context, userID string, c *character.Character) (*memory.RelationshipData, error) {
	rel, err := p.Get(ctx, userID, c.ID)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		rel = memory.NewRelationship(userID, c.ID, c.DominanceDefault, p.now())
	}
	return rel, nil
}

// ProcessTurn applies t (and the optional reaction r) to the relationship of
// userID and characterID, creating it on first use, and persists it.
//
// An unknown character yields an error wrapping [character.ErrNotFound]. A
// failed write returns the pre-update snapshot together with an error
// wrapping [memory.ErrPersistence]; callers treat that snapshot as stale.
func (p *Processor) ProcessTurn(ctx context.Context, userID, characterID string, t Turn, r Reaction) (*memory.RelationshipData, error) {
	ctx, span := observe.StartSpan(ctx, "relationship.process_turn",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("character_id", characterID),
			attribute.String("reaction", r.String()),
		))
	defer span.End()

	c, err := p.chars.Character(ctx, characterID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("relationship: %w", err)
	}

	unlock, err := p.locks.Lock(ctx, userID+relationshipKeySep+characterID)
	if err != nil {
		return nil, fmt.Errorf("relationship: lock: %w", err)
	}
	defer unlock()

	rel, err := p.GetOrNew(ctx, userID, c)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	before := rel.Clone()

	now := p.now()
	Apply(rel, c, t, r, now)

	if err := p.store.PutRelationship(ctx, rel); err != nil {
		p.metrics.RecordStoreError(ctx, "relationship.put")
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Warn("relationship: persist failed",
			"user_id", userID, "character_id", characterID, "err", err)
		return before, err
	}
	return rel, nil
}

// Apply runs the per-turn update rules on rel in place:
//
//  1. detect the character's emotion;
//  2. apply the reaction's fixed effect, or count both sides' emotions when
//     there is none;
//  3. shift dominance;
//  4. learn triggers from the user message;
//  5. record a core memory when the turn is memorable;
//  6. adjust intimacy;
//  7. count the turn.
func Apply(rel *memory.RelationshipData, c *character.Character, t Turn, r Reaction, now time.Time) {
	charEmotion := DetectEmotion(t.CharacterResponse)

	var userEmotion Emotion
	switch r {
	case Heart:
		userEmotion = Joy
		rel.Intimacy = min(maxIntimacy, rel.Intimacy+heartIntimacy)
		rel.EmotionalStats.JoyPeaks++
	case AngerMark:
		userEmotion = Anger
		rel.EmotionalStats.AngerPeaks++
		UpdateTriggers(rel, t.CharacterResponse, c, Anger, now)
	case Fire:
		userEmotion = Excitement
		rel.EmotionalStats.ExcitementPeaks++
	case Star:
		e := charEmotion
		if e == "" {
			e = Joy
		}
		AddCoreMemory(rel, NewCoreMemory(t.UserMessage, t.CharacterResponse, e, nil, now))
	default:
		userEmotion = DetectEmotion(t.UserMessage)
		UpdateEmotionalStats(rel, t.UserMessage, t.CharacterResponse)
	}

	ApplyDominance(rel, DominanceDelta(t.UserMessage, t.CharacterResponse))

	UpdateTriggers(rel, t.UserMessage, c, userEmotion, now)

	memEmotion := charEmotion
	if memEmotion == "" {
		memEmotion = userEmotion
	}
	if ShouldRecordMemory(t.UserMessage, t.CharacterResponse, memEmotion) {
		AddCoreMemory(rel, NewCoreMemory(t.UserMessage, t.CharacterResponse, memEmotion, triggersIn(rel, t.UserMessage), now))
	}

	delta := baseIntimacy
	switch {
	case userEmotion == Joy || r == Heart:
		delta += joyIntimacyBonus
	case userEmotion == Anger || r == AngerMark:
		delta -= angerIntimacyCost
	}
	if s := rel.Dominance.Score; s >= -balancedDominance && s <= balancedDominance {
		delta += balancedBonus
	}
	rel.Intimacy = clamp(rel.Intimacy+delta, 0, maxIntimacy)

	rel.TotalTurns++
	rel.UpdatedAt = now
}

// triggersIn returns the learned keywords that occur in message.
func triggersIn(rel *memory.RelationshipData, message string) []string {
	var out []string
	for _, t := range rel.Triggers {
		if strings.Contains(message, t.Keyword) {
			out = append(out, t.Keyword)
		}
	}
	return out
}
