package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synk-web/synk/pkg/memory"
)

// DB is the query surface used by [Store]. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a PostgreSQL-backed [memory.Store]. All operations are safe for
// concurrent use.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

var _ memory.Store = (*Store)(nil)

// NewStore opens a connection pool to dsn, verifies it with a ping and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{db: pool, pool: pool}, nil
}

// New wraps an existing connection. The caller owns db and is responsible
// for running [Migrate].
func New(db DB) *Store {
	return &Store{db: db}
}

// Pool returns the underlying pool, or nil when the store was built with [New].
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the pool opened by [NewStore].
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
