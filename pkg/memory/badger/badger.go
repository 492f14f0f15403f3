// Package badger provides an embedded [memory.Store] backed by BadgerDB v4.
//
// Records are encoded with msgpack under slash-separated keys:
//
//	rel/<user>/<character>
//	sum/<session>/<turn, zero padded>/<id>
//	profile/<user>
//
// Zero-padding the turn number keeps a session's summaries in turn order so
// the most recent ones are read with a reverse prefix scan.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/synk-web/synk/pkg/memory"
)

// Options configures a [Store].
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence. Used by tests.
	InMemory bool

	// Logger receives badger warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is a BadgerDB-backed [memory.Store]. Safe for concurrent use.
type Store struct {
	db *badgerdb.DB
}

var _ memory.Store = (*Store)(nil)

// Open opens (or creates) the database described by opts.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: Options.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badgerdb.DefaultOptions(opts.Dir).WithLogger(slogAdapter{l: logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error { return s.db.Close() }

// ── Keys ─────────────────────────────────────────────────────────────────────

func relKey(userID, characterID string) []byte {
	return []byte("rel/" + userID + "/" + characterID)
}

func summaryPrefix(sessionID string) []byte {
	return []byte("sum/" + sessionID + "/")
}

func summaryKey(sessionID string, turn int, id string) []byte {
	return fmt.Appendf(summaryPrefix(sessionID), "%010d/%s", turn, id)
}

func profileKey(userID string) []byte {
	return []byte("profile/" + userID)
}

// ── Generic helpers ──────────────────────────────────────────────────────────

// get decodes the value at key into out. It reports false when the key is
// absent.
func (s *Store) get(key []byte, out any) (bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, msgpack.Unmarshal(raw, out)
}

func (s *Store) put(key []byte, v any) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, raw)
	})
}

// ── Relationships ────────────────────────────────────────────────────────────

// GetRelationship implements [memory.RelationshipStore].
func (s *Store) GetRelationship(_ context.Context, userID, characterID string) (*memory.RelationshipData, error) {
	var rel memory.RelationshipData
	ok, err := s.get(relKey(userID, characterID), &rel)
	if err != nil {
		return nil, memory.Wrap("relationship.get", err)
	}
	if !ok {
		return nil, nil
	}
	return &rel, nil
}

// PutRelationship implements [memory.RelationshipStore].
func (s *Store) PutRelationship(_ context.Context, rel *memory.RelationshipData) error {
	return memory.Wrap("relationship.put", s.put(relKey(rel.UserID, rel.CharacterID), rel))
}

// ── Story summaries ──────────────────────────────────────────────────────────

// AppendSummary implements [memory.StorySummaryStore].
func (s *Store) AppendSummary(_ context.Context, sum memory.StorySummary) error {
	return memory.Wrap("summary.append", s.put(summaryKey(sum.SessionID, sum.TurnNumber, sum.ID), sum))
}

// RecentSummaries implements [memory.StorySummaryStore].
func (s *Store) RecentSummaries(_ context.Context, sessionID string, limit int) ([]memory.StorySummary, error) {
	if limit <= 0 {
		return nil, nil
	}
	prefix := summaryPrefix(sessionID)

	var out []memory.StorySummary
	err := s.db.View(func(txn *badgerdb.Txn) error {
		iterOpts := badgerdb.DefaultIteratorOptions
		iterOpts.Reverse = true
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// In reverse mode Seek lands on the largest key <= the seek key.
		seek := append(slices.Clone(prefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var sum memory.StorySummary
			if err := msgpack.Unmarshal(raw, &sum); err != nil {
				return err
			}
			out = append(out, sum)
		}
		return nil
	})
	if err != nil {
		return nil, memory.Wrap("summary.recent", err)
	}
	slices.Reverse(out)
	return out, nil
}

// ── Profiles ─────────────────────────────────────────────────────────────────

// GetProfile implements [memory.ProfileStore].
func (s *Store) GetProfile(_ context.Context, userID string) (*memory.UserProfile, error) {
	var p memory.UserProfile
	ok, err := s.get(profileKey(userID), &p)
	if err != nil {
		return nil, memory.Wrap("profile.get", err)
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// PutProfile implements [memory.ProfileStore].
func (s *Store) PutProfile(_ context.Context, p *memory.UserProfile) error {
	return memory.Wrap("profile.put", s.put(profileKey(p.UserID), p))
}

// slogAdapter routes badger's logger onto slog, dropping info and debug
// chatter.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Errorf(f string, v ...any)   { a.l.Error(fmt.Sprintf("badger: "+f, v...)) }
func (a slogAdapter) Warningf(f string, v ...any) { a.l.Warn(fmt.Sprintf("badger: "+f, v...)) }
func (slogAdapter) Infof(string, ...any)          {}
func (slogAdapter) Debugf(string, ...any)         {}
