// Package postgres provides a PostgreSQL-backed [memory.Store].
//
// Relationship and profile records are stored as JSONB documents next to a
// few scalar columns useful for ad-hoc queries. Story summaries keep their
// structured parts (character responses and states) as JSONB as well.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"
)

// Schema is the DDL for every table used by [Store]. [Migrate] applies it;
// every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS relationships (
    user_id          TEXT             NOT NULL,
    character_id     TEXT             NOT NULL,
    intimacy         DOUBLE PRECISION NOT NULL DEFAULT 0,
    dominance_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_turns      INTEGER          NOT NULL DEFAULT 0,
    data             JSONB            NOT NULL,
    created_at       TIMESTAMPTZ      NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ      NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, character_id)
);

CREATE TABLE IF NOT EXISTS story_summaries (
    id                   TEXT        PRIMARY KEY,
    session_id           TEXT        NOT NULL,
    user_id              TEXT        NOT NULL,
    location             TEXT        NOT NULL DEFAULT '',
    turn_number          INTEGER     NOT NULL,
    turn_id              TEXT        NOT NULL,
    user_message         TEXT        NOT NULL,
    character_responses  JSONB       NOT NULL DEFAULT '[]',
    character_states     JSONB       NOT NULL DEFAULT '{}',
    ai_summary           TEXT        NOT NULL DEFAULT '',
    ai_analysis          TEXT        NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_story_summaries_session_turn
    ON story_summaries (session_id, turn_number);

CREATE INDEX IF NOT EXISTS idx_story_summaries_user
    ON story_summaries (user_id);

CREATE TABLE IF NOT EXISTS user_profiles (
    user_id     TEXT        PRIMARY KEY,
    data        JSONB       NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates all tables and indexes used by [Store].
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
