// Package chat is the turn service: it takes one user message at a location,
// resolves the scene's reaction and commits the outcome to the session
// scene, the conversation history, the story log and the user's
// relationships. It also serves emoji reactions and the read-only views of
// sessions and relationships.
//
// Turns of one session are serialised through [scene.Manager.Acquire];
// turns of different sessions run independently.
package chat

import (
	"errors"
	"time"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/profile"
	"github.com/synk-web/synk/internal/reaction"
	"github.com/synk-web/synk/internal/relationship"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/internal/story"
)

var (
	// ErrValidation marks a malformed request. Nothing was changed.
	ErrValidation = errors.New("chat: invalid request")

	// ErrSessionNotFound is returned by the session views for unknown or
	// evicted sessions.
	ErrSessionNotFound = errors.New("chat: session not found")

	// ErrRelationshipNotFound is returned when the user has never talked to
	// the character.
	ErrRelationshipNotFound = errors.New("chat: relationship not found")
)

// Deps are the collaborators of a [Service]. All fields are required.
type Deps struct {
	Characters    character.Directory
	Sessions      *scene.Manager
	Engine        *reaction.Engine
	Relationships *relationship.Processor
	Stories       *story.Summarizer
	Profiles      *profile.Service
}

// Service runs turns and reactions.
type Service struct {
	chars    character.Directory
	sessions *scene.Manager
	engine   *reaction.Engine
	rels     *relationship.Processor
	stories  *story.Summarizer
	profiles *profile.Service

	historyWindow int
	prefetchLimit int
	metrics       *observe.Metrics
	now           func() time.Time
}

// Option configures a [Service].
type Option func(*Service)

// WithHistoryWindow sets how many history lines main responders see.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// WithPrefetchLimit bounds concurrent relationship reads per turn.
func WithPrefetchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.prefetchLimit = n
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(d Deps, opts ...Option) *Service {
	s := &Service{
		chars:         d.Characters,
		sessions:      d.Sessions,
		engine:        d.Engine,
		rels:          d.Relationships,
		stories:       d.Stories,
		profiles:      d.Profiles,
		historyWindow: reaction.DefaultHistoryWindow,
		prefetchLimit: 8,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}
