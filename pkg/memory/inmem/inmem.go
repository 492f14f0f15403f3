// Package inmem provides a process-local [memory.Store]. It is the default
// backend and the one used by engine tests. Data is lost on restart.
package inmem

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/synk-web/synk/pkg/memory"
)

type relKey struct{ user, character string }

// Store is an in-memory [memory.Store]. Values are copied on the way in and
// on the way out, so callers never share state with the store.
type Store struct {
	mu        sync.RWMutex
	rels      map[relKey]*memory.RelationshipData
	summaries map[string][]memory.StorySummary
	profiles  map[string]*memory.UserProfile
}

var _ memory.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		rels:      make(map[relKey]*memory.RelationshipData),
		summaries: make(map[string][]memory.StorySummary),
		profiles:  make(map[string]*memory.UserProfile),
	}
}

// GetRelationship implements [memory.RelationshipStore].
func (s *Store) GetRelationship(_ context.Context, userID, characterID string) (*memory.RelationshipData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rels[relKey{userID, characterID}].Clone(), nil
}

// PutRelationship implements [memory.RelationshipStore].
func (s *Store) PutRelationship(_ context.Context, rel *memory.RelationshipData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rels[relKey{rel.UserID, rel.CharacterID}] = rel.Clone()
	return nil
}

// AppendSummary implements [memory.StorySummaryStore].
func (s *Store) AppendSummary(_ context.Context, sum memory.StorySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.SessionID] = append(s.summaries[sum.SessionID], sum)
	return nil
}

// RecentSummaries implements [memory.StorySummaryStore].
func (s *Store) RecentSummaries(_ context.Context, sessionID string, limit int) ([]memory.StorySummary, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	all := slices.Clone(s.summaries[sessionID])
	s.mu.RUnlock()

	slices.SortStableFunc(all, func(a, b memory.StorySummary) int {
		return cmp.Compare(a.TurnNumber, b.TurnNumber)
	})
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// GetProfile implements [memory.ProfileStore].
func (s *Store) GetProfile(_ context.Context, userID string) (*memory.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID].Clone(), nil
}

// PutProfile implements [memory.ProfileStore].
func (s *Store) PutProfile(_ context.Context, p *memory.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p.Clone()
	return nil
}

// Close implements [memory.Store]. It is a no-op.
func (s *Store) Close() error { return nil }
