package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestGroup() *FallbackGroup[string] {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("secondary", "secondary")
	return fg
}

func TestFallbackGroup_Execute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		failing  map[string]bool
		wantCall string
		wantErr  bool
	}{
		{"primary succeeds", nil, "primary", false},
		{"primary fails", map[string]bool{"primary": true}, "secondary", false},
		{"all fail", map[string]bool{"primary": true, "secondary": true}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fg := newTestGroup()
			var called string
			err := fg.Execute(context.Background(), func(v string) error {
				if tt.failing[v] {
					return errTest
				}
				called = v
				return nil
			})
			if tt.wantErr {
				if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
					t.Fatalf("want ErrAllFailed wrapping errTest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if called != tt.wantCall {
				t.Fatalf("called: want %q, got %q", tt.wantCall, called)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	fg := newTestGroup()
	for range 2 {
		_ = fg.Execute(context.Background(), func(v string) error {
			if v == "primary" {
				return errTest
			}
			return nil
		})
	}

	var calls []string
	err := fg.Execute(context.Background(), func(v string) error {
		calls = append(calls, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0] != "secondary" {
		t.Fatalf("want only secondary called, got %v", calls)
	}
}

func TestFallbackGroup_StopsOnCancel(t *testing.T) {
	t.Parallel()

	fg := newTestGroup()
	ctx, cancel := context.WithCancel(context.Background())

	var calls []string
	err := fg.Execute(ctx, func(v string) error {
		calls = append(calls, v)
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrAllFailed) {
		t.Fatal("cancellation must not be reported as ErrAllFailed")
	}
	if len(calls) != 1 {
		t.Fatalf("want 1 call, got %v", calls)
	}
	if s := fg.entries[0].breaker.State(); s != StateClosed {
		t.Fatalf("cancellation must not count against the breaker, state %v", s)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(10, "ten", FallbackConfig{})
	fg.AddFallback("twenty", 20)

	result, err := ExecuteWithResult(context.Background(), fg, func(v int) (int, error) {
		if v == 10 {
			return 0, errTest
		}
		return v * 2, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 40 {
		t.Fatalf("result: want 40, got %d", result)
	}
	if names := fg.Names(); len(names) != 2 || names[0] != "ten" || names[1] != "twenty" {
		t.Fatalf("names: got %v", names)
	}
}

func TestResult(t *testing.T) {
	t.Parallel()

	ok := Ok("요약")
	if ok.Degraded() || ok.Err() != nil || ok.Value() != "요약" {
		t.Fatalf("Ok: got %+v", ok)
	}

	d := Degraded("기본", errTest)
	if !d.Degraded() || !errors.Is(d.Err(), errTest) || d.Value() != "기본" {
		t.Fatalf("Degraded: got %+v", d)
	}
	v, err := d.Unwrap()
	if v != "기본" || err == nil {
		t.Fatalf("Unwrap: got %q, %v", v, err)
	}

	if Degraded(1, nil).Degraded() {
		t.Fatal("nil cause must not be degraded")
	}
}
