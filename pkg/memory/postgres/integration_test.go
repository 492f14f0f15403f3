package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synk-web/synk/pkg/memory"
	"github.com/synk-web/synk/pkg/memory/postgres"
)

// testDSN returns the test database DSN or skips the test when
// SYNK_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SYNK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SYNK_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()
	dsn := testDSN(t)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS relationships",
		"DROP TABLE IF EXISTS story_summaries",
		"DROP TABLE IF EXISTS user_profiles",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	pool.Close()

	s, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIntegration_RelationshipRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rel := memory.NewRelationship("u1", "npc_joo", -0.3, time.Now().UTC())
	rel.Triggers = append(rel.Triggers, memory.TriggerKeyword{Keyword: "오이", Emotion: "anger", OccurrenceCount: 2, Confidence: 0.6})
	if err := s.PutRelationship(ctx, rel); err != nil {
		t.Fatalf("put: %v", err)
	}
	rel.Intimacy = 2
	if err := s.PutRelationship(ctx, rel); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := s.GetRelationship(ctx, "u1", "npc_joo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Intimacy != 2 || len(got.Triggers) != 1 || got.Triggers[0].Keyword != "오이" {
		t.Fatalf("round trip: got %+v", got)
	}
}

func TestIntegration_RecentSummaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for turn := 1; turn <= 7; turn++ {
		err := s.AppendSummary(ctx, memory.StorySummary{
			ID: uuid.NewString(), SessionID: "s1", UserID: "u1", TurnNumber: turn,
			TurnID: uuid.NewString(), UserMessage: "안녕", CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("append %d: %v", turn, err)
		}
	}
	got, err := s.RecentSummaries(ctx, "s1", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 5 || got[0].TurnNumber != 3 || got[4].TurnNumber != 7 {
		t.Fatalf("want turns 3..7, got %d items", len(got))
	}
}
