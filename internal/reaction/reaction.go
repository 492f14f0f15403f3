// Package reaction resolves one user message against every character at a
// location and produces the turn's partition: main responses (including
// tiki-taka answers and interjections), short sub-reactions and silent
// characters who only think.
//
// Resolution is read-only with respect to the scene and relationships; the
// caller commits the [Result]. Generation runs sequentially in a fixed order
// so the order of [Result.Main] is the order replies were produced.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/internal/textgen"
	"github.com/synk-web/synk/internal/thought"
	"github.com/synk-web/synk/pkg/memory"
)

// ErrEmptyRoster is returned by [Engine.Resolve] when no character is
// present.
var ErrEmptyRoster = errors.New("reaction: no characters at location")

// Defaults for the interjection step.
const (
	DefaultInterjectionProbability = 0.3
	DefaultMaxInterjections        = 3
)

// Kinds of main response.
const (
	KindMain         = observe.KindMain
	KindTikiTaka     = observe.KindTikiTaka
	KindInterjection = observe.KindInterjection
)

const (
	interjectionAction = "*끼어들며*"
	// DefaultHistoryWindow is the number of history lines callers are
	// expected to pass in [Request.History].
	DefaultHistoryWindow = 5
)

// Request is everything one resolution reads.
type Request struct {
	TurnID      string
	UserID      string
	UserMessage string
	// Location is the display name used in prompts.
	Location string
	Roster   []character.Character
	// Scene is the session's scene before this turn's commit. It may be nil
	// and is never modified.
	Scene *scene.Scene
	// History is the conversation tail shown to main responders.
	History scene.History
	// Relationships holds the user's relationship with each character,
	// keyed by character id. Missing entries are treated as new
	// relationships.
	Relationships  map[string]*memory.RelationshipData
	StoryContext   string
	ProfileContext string
}

// MainResponse is a full reply.
type MainResponse struct {
	CharacterID   string          `json:"character_id"`
	CharacterName string          `json:"character_name"`
	Message       string          `json:"message"`
	Action        string          `json:"action,omitempty"`
	Kind          string          `json:"kind"`
	Target        string          `json:"target"`
	TargetName    string          `json:"target_name"`
	Thought       *thought.Record `json:"inner_thought,omitempty"`
}

// SubReaction is a short reaction line.
type SubReaction struct {
	CharacterID   string          `json:"character_id"`
	CharacterName string          `json:"character_name"`
	Reaction      string          `json:"reaction"`
	Thought       *thought.Record `json:"inner_thought,omitempty"`
}

// Silent is a character who neither spoke nor reacted.
type Silent struct {
	CharacterID   string          `json:"character_id"`
	CharacterName string          `json:"character_name"`
	Thought       *thought.Record `json:"inner_thought,omitempty"`
}

// Result is the partition of one turn.
type Result struct {
	Scope  Scope           `json:"reaction_scope"`
	Types  map[string]Type `json:"reaction_types"`
	Main   []MainResponse  `json:"main_responses"`
	Sub    []SubReaction   `json:"sub_reactions"`
	Silent []Silent        `json:"no_reaction"`
}

// Engine resolves turns. It is safe for concurrent use; callers serialise
// turns of the same session.
type Engine struct {
	gen      textgen.Generator
	thoughts *thought.Generator
	metrics  *observe.Metrics
	now      func() time.Time

	probability      float64
	maxInterjections int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an [Engine].
type Option func(*Engine)

// WithSeed seeds the interjection draw and shuffle. Engines with the same
// seed make the same choices for the same sequence of turns.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithRand sets the random source used for interjections.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithInterjection sets the per-turn interjection probability and the
// maximum number of interjecting characters.
func WithInterjection(probability float64, maxCount int) Option {
	return func(e *Engine) {
		e.probability = probability
		e.maxInterjections = maxCount
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used for fresh relationships.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine generating replies with gen and inner thoughts with
// thoughts.
func New(gen textgen.Generator, thoughts *thought.Generator, opts ...Option) *Engine {
	e := &Engine{
		gen:              gen,
		thoughts:         thoughts,
		now:              time.Now,
		probability:      DefaultInterjectionProbability,
		maxInterjections: DefaultMaxInterjections,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	if e.rng == nil {
		seed := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return e
}

// Resolve runs the full reaction algorithm for req. Generation failures
// never fail the turn: a character whose reply cannot be generated is left
// out of the result. The only error is [ErrEmptyRoster] or a cancelled ctx.
func (e *Engine) Resolve(ctx context.Context, req Request) (*Result, error) {
	if len(req.Roster) == 0 {
		return nil, ErrEmptyRoster
	}
	ctx, span := observe.StartSpan(ctx, "reaction.resolve",
		trace.WithAttributes(
			attribute.String("user_id", req.UserID),
			attribute.Int("roster_size", len(req.Roster)),
		))
	defer span.End()
	log := observe.Logger(ctx)

	res := &Result{
		Scope: ClassifyScope(req.UserMessage),
		Types: make(map[string]Type, len(req.Roster)),
	}

	var mentioned []string
	for i := range req.Roster {
		c := &req.Roster[i]
		m := Mentioned(c, req.UserMessage)
		if m {
			mentioned = append(mentioned, c.ID)
		}
		res.Types[c.ID] = Decide(c, req.Scene, res.Scope, m)
	}
	mainIDs := e.mainSet(&req, res.Types, mentioned)
	span.SetAttributes(attribute.String("scope", string(res.Scope)), attribute.Int("main_set", len(mainIDs)))
	log.Debug("reaction: resolved roles", "scope", res.Scope, "main", mainIDs, "mentioned", mentioned)

	// taken holds everyone who is, or was chosen to be, a main responder.
	// A failed main generation still removes the character from the later
	// steps.
	taken := make(map[string]bool, len(req.Roster))
	for _, id := range mainIDs {
		taken[id] = true
	}

	for _, id := range mainIDs {
		c := findCharacter(req.Roster, id)
		if c == nil {
			continue
		}
		msg, err := e.gen.Generate(ctx, MainPrompt(&req, c, e.relationship(&req, c)), textgen.WithKind(KindMain))
		if err != nil {
			log.Warn("reaction: main response failed", "character_id", c.ID, "err", err)
			continue
		}
		res.Main = append(res.Main, MainResponse{
			CharacterID:   c.ID,
			CharacterName: c.Name,
			Message:       msg,
			Kind:          KindMain,
			Target:        scene.UserTarget,
			TargetName:    "유저",
			Thought:       e.thought(ctx, &req, c, msg),
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reaction: %w", err)
	}

	tikiTaka := e.tikiTaka(ctx, &req, res.Main, taken)
	res.Main = append(res.Main, tikiTaka...)

	res.Main = append(res.Main, e.interject(ctx, &req, res.Main, taken)...)

	for i := range req.Roster {
		c := &req.Roster[i]
		if taken[c.ID] {
			continue
		}
		switch res.Types[c.ID] {
		case TypeReaction:
			line, err := e.gen.Generate(ctx, SubPrompt(&req, c, res.Main), textgen.WithKind(observe.KindSub))
			if err != nil {
				log.Warn("reaction: sub reaction failed", "character_id", c.ID, "err", err)
				continue
			}
			res.Sub = append(res.Sub, SubReaction{
				CharacterID:   c.ID,
				CharacterName: c.Name,
				Reaction:      line,
				Thought:       e.thought(ctx, &req, c, line),
			})
		case TypeIgnore:
			res.Silent = append(res.Silent, Silent{
				CharacterID:   c.ID,
				CharacterName: c.Name,
				Thought:       e.thought(ctx, &req, c, ""),
			})
		}
	}

	e.recordPartition(ctx, res, len(tikiTaka))
	return res, nil
}

// mainSet applies the selection fallbacks: mentioned characters, else the
// characters decided main, else the last speaker, else the first in the
// roster. It is never empty for a non-empty roster.
func (e *Engine) mainSet(req *Request, types map[string]Type, mentioned []string) []string {
	if len(mentioned) > 0 {
		return mentioned
	}
	var ids []string
	for _, c := range req.Roster {
		if types[c.ID] == TypeMain {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) > 0 {
		return ids
	}
	if req.Scene != nil && req.Scene.LastSpeakerID != "" && findCharacter(req.Roster, req.Scene.LastSpeakerID) != nil {
		return []string{req.Scene.LastSpeakerID}
	}
	return []string{req.Roster[0].ID}
}

// tikiTaka gives every character named in one of mains a chance to answer
// the character who named them. Answers are not scanned again.
func (e *Engine) tikiTaka(ctx context.Context, req *Request, mains []MainResponse, taken map[string]bool) []MainResponse {
	var out []MainResponse
	for _, m := range mains {
		caller := findCharacter(req.Roster, m.CharacterID)
		if caller == nil {
			continue
		}
		for i := range req.Roster {
			c := &req.Roster[i]
			if c.ID == caller.ID || taken[c.ID] || !Mentioned(c, m.Message) {
				continue
			}
			msg, err := e.gen.Generate(ctx, TikiTakaPrompt(req, c, caller, m.Message), textgen.WithKind(KindTikiTaka))
			if err != nil {
				observe.Logger(ctx).Warn("reaction: tiki-taka failed", "character_id", c.ID, "caller_id", caller.ID, "err", err)
				continue
			}
			taken[c.ID] = true
			out = append(out, MainResponse{
				CharacterID:   c.ID,
				CharacterName: c.Name,
				Message:       msg,
				Action:        fmt.Sprintf("*%s에게 응답하며*", caller.Name),
				Kind:          KindTikiTaka,
				Target:        caller.ID,
				TargetName:    caller.Name,
				Thought:       e.thought(ctx, req, c, msg),
			})
		}
	}
	return out
}

// interject draws once for the whole turn and, on success, lets up to
// maxInterjections randomly chosen characters outside the main set cut in.
func (e *Engine) interject(ctx context.Context, req *Request, mains []MainResponse, taken map[string]bool) []MainResponse {
	var candidates []*character.Character
	for i := range req.Roster {
		if !taken[req.Roster[i].ID] {
			candidates = append(candidates, &req.Roster[i])
		}
	}

	e.rngMu.Lock()
	hit := e.rng.Float64() < e.probability
	if hit {
		e.rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
	e.rngMu.Unlock()
	if !hit {
		return nil
	}

	var out []MainResponse
	for _, c := range candidates {
		if len(out) >= e.maxInterjections {
			break
		}
		// Later interjectors also see the earlier interjections.
		seen := append(mains[:len(mains):len(mains)], out...)
		msg, err := e.gen.Generate(ctx, InterjectionPrompt(req, c, seen), textgen.WithKind(KindInterjection))
		if err != nil {
			observe.Logger(ctx).Warn("reaction: interjection failed", "character_id", c.ID, "err", err)
			continue
		}
		taken[c.ID] = true
		out = append(out, MainResponse{
			CharacterID:   c.ID,
			CharacterName: c.Name,
			Message:       msg,
			Action:        interjectionAction,
			Kind:          KindInterjection,
			Target:        scene.UserTarget,
			TargetName:    "유저",
			Thought:       e.thought(ctx, req, c, msg),
		})
	}
	return out
}

// thought is best effort: a degraded generation yields nil.
func (e *Engine) thought(ctx context.Context, req *Request, c *character.Character, dialogue string) *thought.Record {
	return e.thoughts.Generate(ctx, thought.Request{
		Character:    c,
		Dialogue:     dialogue,
		UserMessage:  req.UserMessage,
		Relationship: req.Relationships[c.ID],
		Location:     req.Location,
		Scene:        req.Scene.Summary(),
		TurnID:       req.TurnID,
	}).Value()
}

func (e *Engine) relationship(req *Request, c *character.Character) *memory.RelationshipData {
	if rel := req.Relationships[c.ID]; rel != nil {
		return rel
	}
	return memory.NewRelationship(req.UserID, c.ID, c.DominanceDefault, e.now())
}

func (e *Engine) recordPartition(ctx context.Context, res *Result, tikiTaka int) {
	interjections := 0
	for _, m := range res.Main {
		if m.Kind == KindInterjection {
			interjections++
		}
	}
	e.metrics.RecordPartition(ctx, "main", len(res.Main)-tikiTaka-interjections)
	e.metrics.RecordPartition(ctx, "tikitaka", tikiTaka)
	e.metrics.RecordPartition(ctx, "interjection", interjections)
	e.metrics.RecordPartition(ctx, "sub", len(res.Sub))
	e.metrics.RecordPartition(ctx, "silent", len(res.Silent))
}

func findCharacter(roster []character.Character, id string) *character.Character {
	for i := range roster {
		if roster[i].ID == id {
			return &roster[i]
		}
	}
	return nil
}
