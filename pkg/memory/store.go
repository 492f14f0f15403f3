// Package memory defines the durable records of the scene reaction engine
// and the persistence contracts that back them.
//
// Three kinds of record are persisted:
//
//   - [RelationshipData], one per (user, character) pair: intimacy, dominance,
//     emotion counters, trigger keywords and core memories.
//   - [StorySummary], one per resolved turn of a session, used as narrative
//     context for later prompts.
//   - [UserProfile], one per user, accumulated best-effort from messages.
//
// Implementations live in the inmem, postgres and badger subpackages. All
// interfaces are public so other backends can be supplied without touching
// the engine. Every implementation must be safe for concurrent use, must
// return copies (never aliases of stored values) and must report failures
// as [*PersistenceError].
package memory

import (
	"context"
	"errors"
	"fmt"
)

// ErrPersistence is matched by every error returned from a store backend.
var ErrPersistence = errors.New("memory: persistence failure")

// PersistenceError wraps a backend failure with the operation that caused it.
type PersistenceError struct {
	// Op names the failing operation, e.g. "relationship.put".
	Op string

	// Err is the underlying backend error.
	Err error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("memory: %s: %v", e.Op, e.Err)
}

// Unwrap returns the backend error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrPersistence].
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Wrap returns nil when err is nil and a [*PersistenceError] for op otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// RelationshipStore persists [RelationshipData] keyed by (user, character).
type RelationshipStore interface {
	// GetRelationship returns the stored relationship, or (nil, nil) when the
	// pair has never been written.
	GetRelationship(ctx context.Context, userID, characterID string) (*RelationshipData, error)

	// PutRelationship creates or replaces the relationship for
	// (rel.UserID, rel.CharacterID).
	PutRelationship(ctx context.Context, rel *RelationshipData) error
}

// StorySummaryStore persists per-turn [StorySummary] records.
type StorySummaryStore interface {
	// AppendSummary stores s under s.SessionID.
	AppendSummary(ctx context.Context, s StorySummary) error

	// RecentSummaries returns at most limit summaries of sessionID with the
	// highest turn numbers, ordered oldest first. A limit <= 0 returns nil.
	RecentSummaries(ctx context.Context, sessionID string, limit int) ([]StorySummary, error)
}

// ProfileStore persists [UserProfile] records keyed by user ID.
type ProfileStore interface {
	// GetProfile returns the stored profile, or (nil, nil) when none exists.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// PutProfile creates or replaces the profile for p.UserID.
	PutProfile(ctx context.Context, p *UserProfile) error
}

// Store bundles every persistence contract behind one backend.
type Store interface {
	RelationshipStore
	StorySummaryStore
	ProfileStore

	// Close releases backend resources.
	Close() error
}
