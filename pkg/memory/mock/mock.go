// Package mock provides a test double for [memory.Store].
//
// [Store] keeps real state in an [inmem.Store] so round trips behave, records
// every method call for assertion, and exposes exported *Err fields that
// force a method to fail. It is safe for concurrent use.
//
// Typical usage:
//
//	store := mock.New()
//	store.PutRelationshipErr = errors.New("disk full")
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("PutRelationship"); got != 1 {
//	    t.Errorf("expected 1 PutRelationship call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/synk-web/synk/pkg/memory"
	"github.com/synk-web/synk/pkg/memory/inmem"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is a configurable test double for [memory.Store]. Errors are raw; the
// mock wraps them with [memory.Wrap] like a real backend would.
type Store struct {
	backing *inmem.Store

	mu    sync.Mutex
	calls []Call

	GetRelationshipErr error
	PutRelationshipErr error
	AppendSummaryErr   error
	RecentSummariesErr error
	GetProfileErr      error
	PutProfileErr      error
	CloseErr           error
}

var _ memory.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{backing: inmem.New()}
}

func (m *Store) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// errFor returns the configured error for method under the lock.
func (m *Store) errFor(p *error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *p
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// SetErr sets the error field named by method ("GetRelationship",
// "PutProfile", ...) under the lock. Unknown names are ignored.
func (m *Store) SetErr(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch method {
	case "GetRelationship":
		m.GetRelationshipErr = err
	case "PutRelationship":
		m.PutRelationshipErr = err
	case "AppendSummary":
		m.AppendSummaryErr = err
	case "RecentSummaries":
		m.RecentSummariesErr = err
	case "GetProfile":
		m.GetProfileErr = err
	case "PutProfile":
		m.PutProfileErr = err
	case "Close":
		m.CloseErr = err
	}
}

// Reset clears all recorded calls and configured errors. Stored data is kept.
func (m *Store) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.GetRelationshipErr, m.PutRelationshipErr = nil, nil
	m.AppendSummaryErr, m.RecentSummariesErr = nil, nil
	m.GetProfileErr, m.PutProfileErr, m.CloseErr = nil, nil, nil
}

// ── memory.Store ─────────────────────────────────────────────────────────────

// GetRelationship implements [memory.RelationshipStore].
func (m *Store) GetRelationship(ctx context.Context, userID, characterID string) (*memory.RelationshipData, error) {
	m.record("GetRelationship", userID, characterID)
	if err := m.errFor(&m.GetRelationshipErr); err != nil {
		return nil, memory.Wrap("relationship.get", err)
	}
	return m.backing.GetRelationship(ctx, userID, characterID)
}

// PutRelationship implements [memory.RelationshipStore].
func (m *Store) PutRelationship(ctx context.Context, rel *memory.RelationshipData) error {
	m.record("PutRelationship", rel.Clone())
	if err := m.errFor(&m.PutRelationshipErr); err != nil {
		return memory.Wrap("relationship.put", err)
	}
	return m.backing.PutRelationship(ctx, rel)
}

// AppendSummary implements [memory.StorySummaryStore].
func (m *Store) AppendSummary(ctx context.Context, sum memory.StorySummary) error {
	m.record("AppendSummary", sum)
	if err := m.errFor(&m.AppendSummaryErr); err != nil {
		return memory.Wrap("summary.append", err)
	}
	return m.backing.AppendSummary(ctx, sum)
}

// RecentSummaries implements [memory.StorySummaryStore].
func (m *Store) RecentSummaries(ctx context.Context, sessionID string, limit int) ([]memory.StorySummary, error) {
	m.record("RecentSummaries", sessionID, limit)
	if err := m.errFor(&m.RecentSummariesErr); err != nil {
		return nil, memory.Wrap("summary.recent", err)
	}
	return m.backing.RecentSummaries(ctx, sessionID, limit)
}

// GetProfile implements [memory.ProfileStore].
func (m *Store) GetProfile(ctx context.Context, userID string) (*memory.UserProfile, error) {
	m.record("GetProfile", userID)
	if err := m.errFor(&m.GetProfileErr); err != nil {
		return nil, memory.Wrap("profile.get", err)
	}
	return m.backing.GetProfile(ctx, userID)
}

// PutProfile implements [memory.ProfileStore].
func (m *Store) PutProfile(ctx context.Context, p *memory.UserProfile) error {
	m.record("PutProfile", p.Clone())
	if err := m.errFor(&m.PutProfileErr); err != nil {
		return memory.Wrap("profile.put", err)
	}
	return m.backing.PutProfile(ctx, p)
}

// Close implements [memory.Store].
func (m *Store) Close() error {
	m.record("Close")
	return m.errFor(&m.CloseErr)
}
