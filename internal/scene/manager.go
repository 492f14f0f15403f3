package scene

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/synk-web/synk/internal/keylock"
	"github.com/synk-web/synk/internal/observe"
)

// Session is one conversation at a location: its scene and history.
type Session struct {
	ID      string
	Scene   *Scene
	History History

	lastUsed atomic.Int64 // unix nanos
	evicted  atomic.Bool
}

// Append adds a line to the session history.
func (s *Session) Append(speaker, characterName, message string, now time.Time) {
	s.History = append(s.History, HistoryTurn{Speaker: speaker, CharacterName: characterName, Message: message, Timestamp: now})
}

// NewSessionID derives a session id for a user at a location.
func NewSessionID(userID, locationID string) string {
	return fmt.Sprintf("%s_%s_%s", userID, locationID, uuid.NewString()[:8])
}

const (
	DefaultMaxSessions = 1024
	DefaultIdleTTL     = 2 * time.Hour
)

// Manager is the registry of live sessions. It holds at most a fixed number
// of sessions, evicting the least recently used, and drops sessions idle for
// longer than the TTL. Access to one session is serialised: [Manager.Acquire]
// hands out exclusive use until the returned release func is called.
type Manager struct {
	cache   *expirable.LRU[string, *Session]
	locks   keylock.Map
	ttl     time.Duration
	metrics *observe.Metrics
	now     func() time.Time
}

// ManagerOption configures a [Manager].
type ManagerOption func(*managerConfig)

type managerConfig struct {
	maxSessions int
	ttl         time.Duration
	metrics     *observe.Metrics
	now         func() time.Time
}

// WithMaxSessions bounds the number of live sessions.
func WithMaxSessions(n int) ManagerOption {
	return func(c *managerConfig) { c.maxSessions = n }
}

// WithIdleTTL sets how long an untouched session survives. Zero disables
// expiry.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(c *managerConfig) { c.ttl = d }
}

// WithManagerMetrics sets the metrics sink.
func WithManagerMetrics(m *observe.Metrics) ManagerOption {
	return func(c *managerConfig) { c.metrics = m }
}

// WithManagerClock overrides the clock used to classify evictions.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(c *managerConfig) { c.now = now }
}

// NewManager creates a session registry.
func NewManager(opts ...ManagerOption) *Manager {
	cfg := managerConfig{maxSessions: DefaultMaxSessions, ttl: DefaultIdleTTL, now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxSessions <= 0 {
		cfg.maxSessions = DefaultMaxSessions
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}

	m := &Manager{ttl: cfg.ttl, metrics: cfg.metrics, now: cfg.now}
	m.cache = expirable.NewLRU[string, *Session](cfg.maxSessions, m.onEvict, cfg.ttl)
	return m
}

func (m *Manager) onEvict(id string, s *Session) {
	s.evicted.Store(true)
	reason := "lru"
	if m.ttl > 0 && !m.now().Before(time.Unix(0, s.lastUsed.Load()).Add(m.ttl)) {
		reason = "ttl"
	}
	ctx := context.Background()
	m.metrics.ActiveSessions.Add(ctx, -1)
	m.metrics.RecordEviction(ctx, reason)
	observe.Logger(ctx).Debug("scene: session evicted", "session_id", id, "reason", reason)
}

// Acquire locks the session id and returns it, calling create when the
// session does not exist. The caller must call release when done; the
// session must not be touched afterwards.
func (m *Manager) Acquire(ctx context.Context, id string, create func() (*Session, error)) (s *Session, release func(), err error) {
	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: acquire %s: %w", id, err)
	}

	s, ok := m.cache.Get(id)
	if !ok {
		if create == nil {
			unlock()
			return nil, nil, nil
		}
		s, err = create()
		if err != nil {
			unlock()
			return nil, nil, fmt.Errorf("scene: create %s: %w", id, err)
		}
		s.ID = id
		m.metrics.ActiveSessions.Add(ctx, 1)
	}
	m.touch(id, s)

	return s, func() {
		m.touch(id, s)
		unlock()
	}, nil
}

// touch refreshes the session's LRU position and idle deadline. A session
// evicted while in use is put back.
func (m *Manager) touch(id string, s *Session) {
	s.lastUsed.Store(m.now().UnixNano())
	if s.evicted.CompareAndSwap(true, false) {
		m.metrics.ActiveSessions.Add(context.Background(), 1)
	}
	m.cache.Add(id, s)
}

// Snapshot returns deep copies of a session's scene and history without
// refreshing its idle deadline. ok is false for unknown sessions.
func (m *Manager) Snapshot(ctx context.Context, id string) (sc *Scene, h History, ok bool, err error) {
	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return nil, nil, false, fmt.Errorf("scene: snapshot %s: %w", id, err)
	}
	defer unlock()

	s, ok := m.cache.Peek(id)
	if !ok {
		return nil, nil, false, nil
	}
	return s.Scene.Clone(), append(History(nil), s.History...), true, nil
}

// Remove drops a session.
func (m *Manager) Remove(id string) {
	m.cache.Remove(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}
