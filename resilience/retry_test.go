package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

var errUnavailable = &StatusError{Status: http.StatusServiceUnavailable}

func TestRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != 200*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 200ms", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
	if cfg.RetryIf == nil {
		t.Error("RetryIf should default to Transient")
	}
}

func TestRetry_Execute(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"first try", 0, nil, 1, nil},
		{"recovers", 2, errUnavailable, 3, nil},
		{"exhausted", 5, errUnavailable, 3, errUnavailable},
		{"permanent", 5, errors.New("bad request"), 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
			calls := 0
			err := r.Execute(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			switch {
			case tt.failures < tt.wantCalls:
				if err != nil {
					t.Errorf("Execute() error = %v, want nil", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
				}
			default:
				if !errors.Is(err, tt.err) {
					t.Errorf("Execute() error = %v, want %v", err, tt.err)
				}
			}
		})
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var attempts []int
	r := NewRetry(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry: func(attempt int, _ error, _ time.Duration) {
			attempts = append(attempts, attempt)
		},
	})
	_ = r.Execute(context.Background(), func(context.Context) error { return errUnavailable })

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestRetry_ContextCancelledDuringWait(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Execute(ctx, func(context.Context) error {
		calls++
		cancel()
		return errUnavailable
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_Delay(t *testing.T) {
	tests := []struct {
		backoff BackoffStrategy
		attempt int
		want    time.Duration
	}{
		{BackoffExponential, 1, 100 * time.Millisecond},
		{BackoffExponential, 2, 200 * time.Millisecond},
		{BackoffExponential, 3, 400 * time.Millisecond},
		{BackoffExponential, 10, time.Second},
		{BackoffLinear, 1, 100 * time.Millisecond},
		{BackoffLinear, 3, 300 * time.Millisecond},
		{BackoffConstant, 1, 100 * time.Millisecond},
		{BackoffConstant, 7, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		r := NewRetry(RetryConfig{
			BaseDelay: 100 * time.Millisecond,
			MaxDelay:  time.Second,
			Backoff:   tt.backoff,
		})
		if got := r.delay(tt.attempt); got != tt.want {
			t.Errorf("delay(%d) with backoff %d = %v, want %v", tt.attempt, tt.backoff, got, tt.want)
		}
	}
}

func TestRetry_DelayJitter(t *testing.T) {
	r := NewRetry(RetryConfig{BaseDelay: 100 * time.Millisecond, Backoff: BackoffConstant, Jitter: true})
	for i := 0; i < 50; i++ {
		d := r.delay(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("delay = %v, want within [100ms, 125ms)", d)
		}
	}
}

func TestParseBackoff(t *testing.T) {
	tests := map[string]BackoffStrategy{
		"":            BackoffExponential,
		"exponential": BackoffExponential,
		"linear":      BackoffLinear,
		"constant":    BackoffConstant,
		"bogus":       BackoffExponential,
	}
	for in, want := range tests {
		if got := ParseBackoff(in); got != want {
			t.Errorf("ParseBackoff(%q) = %d, want %d", in, got, want)
		}
	}
}
