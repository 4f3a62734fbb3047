package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func static(name string, s Status) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		return Result{Status: s, Message: name}
	})
}

func TestAggregator_RegisterOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register("sessions", static("sessions", StatusHealthy))
	agg.Register("jwks", static("jwks", StatusHealthy))
	agg.Register("sessions", static("sessions", StatusDegraded))
	agg.Register("github", static("github", StatusHealthy))

	names := agg.Names()
	want := []string{"sessions", "jwks", "github"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	res, err := agg.Check(context.Background(), "sessions")
	if err != nil || res.Status != StatusDegraded {
		t.Errorf("Check(sessions) = %+v, %v; want the replacement checker", res, err)
	}

	agg.Unregister("jwks")
	if got := agg.Names(); len(got) != 2 || got[1] != "github" {
		t.Errorf("Names() after Unregister = %v", got)
	}
	if _, err := agg.Check(context.Background(), "jwks"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(jwks) error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"none", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"one unhealthy", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			for i, s := range tt.statuses {
				name := string(rune('a' + i))
				agg.Register(name, static(name, s))
			}
			results := agg.CheckAll(context.Background())
			if len(results) != len(tt.statuses) {
				t.Fatalf("results = %d, want %d", len(results), len(tt.statuses))
			}
			for name, r := range results {
				if r.Timestamp.IsZero() {
					t.Errorf("%s: Timestamp not set", name)
				}
			}
			if got := OverallStatus(results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register("stuck", NewCheckerFunc("stuck", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Healthy("late")
	}))
	agg.Register("fast", static("fast", StatusHealthy))

	results := agg.CheckAll(context.Background())
	if r := results["stuck"]; r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("stuck = %+v, want timeout", r)
	}
	if r := results["fast"]; r.Status != StatusHealthy {
		t.Errorf("fast = %+v", r)
	}
}

func TestAggregator_ConcurrencyLimit(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Concurrency: 1})
	var running, peak atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		agg.Register(name, NewCheckerFunc(name, func(context.Context) Result {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return Healthy("ok")
		}))
	}

	if got := len(agg.CheckAll(context.Background())); got != 3 {
		t.Fatalf("results = %d, want 3", got)
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}
