package inmem

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/synk-web/synk/pkg/memory"
)

func TestRelationship_ReadIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	got, err := s.GetRelationship(ctx, "u1", "npc_joo")
	if err != nil || got != nil {
		t.Fatalf("missing pair: want (nil, nil), got (%v, %v)", got, err)
	}

	rel := memory.NewRelationship("u1", "npc_joo", 0.3, time.Now())
	rel.Intimacy = 1.5
	if err := s.PutRelationship(ctx, rel); err != nil {
		t.Fatalf("put: %v", err)
	}
	rel.Intimacy = 9 // must not leak into the store

	a, _ := s.GetRelationship(ctx, "u1", "npc_joo")
	b, _ := s.GetRelationship(ctx, "u1", "npc_joo")
	if a.Intimacy != 1.5 {
		t.Fatalf("intimacy: want 1.5, got %v", a.Intimacy)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two reads without a write must be identical")
	}
	a.Dominance.History = append(a.Dominance.History, 1)
	c, _ := s.GetRelationship(ctx, "u1", "npc_joo")
	if len(c.Dominance.History) != 0 {
		t.Fatal("returned value aliases stored value")
	}
}

func TestRecentSummaries_OldestFirstWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	for _, n := range []int{3, 1, 2, 5, 4} {
		if err := s.AppendSummary(ctx, memory.StorySummary{SessionID: "s1", TurnNumber: n}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = s.AppendSummary(ctx, memory.StorySummary{SessionID: "other", TurnNumber: 9})

	got, err := s.RecentSummaries(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	var turns []int
	for _, g := range got {
		turns = append(turns, g.TurnNumber)
	}
	if !reflect.DeepEqual(turns, []int{3, 4, 5}) {
		t.Fatalf("turns: want [3 4 5], got %v", turns)
	}
	if got, _ := s.RecentSummaries(ctx, "s1", 0); got != nil {
		t.Fatalf("limit 0: want nil, got %v", got)
	}
}

func TestProfile_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	p := memory.NewUserProfile("u1", time.Now())
	p.Nickname = "카카시"
	if err := s.PutProfile(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetProfile(ctx, "u1")
	if err != nil || got == nil || got.Nickname != "카카시" {
		t.Fatalf("get: got (%+v, %v)", got, err)
	}
	if missing, _ := s.GetProfile(ctx, "u2"); missing != nil {
		t.Fatal("missing profile must be nil")
	}
}
