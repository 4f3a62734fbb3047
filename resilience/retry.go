package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays grow between attempts.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay every attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear grows the delay by BaseDelay every attempt.
	BackoffLinear
	// BackoffConstant waits BaseDelay between all attempts.
	BackoffConstant
)

// ParseBackoff parses "exponential", "linear" or "constant".
func ParseBackoff(s string) BackoffStrategy {
	switch s {
	case "linear":
		return BackoffLinear
	case "constant":
		return BackoffConstant
	default:
		return BackoffExponential
	}
}

// RetryConfig configures retries.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the wait before the first retry.
	// Default: 200ms
	BaseDelay time.Duration

	// MaxDelay caps any single wait.
	// Default: 5s
	MaxDelay time.Duration

	// Multiplier applies to exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Backoff selects how delays grow.
	// Default: BackoffExponential
	Backoff BackoffStrategy

	// Jitter adds up to 25% random delay.
	Jitter bool

	// RetryIf decides which errors are retried.
	// Default: Transient
	RetryIf func(err error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs failed calls with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry policy.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = Transient
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= r.config.MaxAttempts || !r.config.RetryIf(err) {
			return err
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// delay returns the wait after the given failed attempt (1-based).
func (r *Retry) delay(attempt int) time.Duration {
	base := float64(r.config.BaseDelay)

	var d float64
	switch r.config.Backoff {
	case BackoffConstant:
		d = base
	case BackoffLinear:
		d = base * float64(attempt)
	default:
		d = base * math.Pow(r.config.Multiplier, float64(attempt-1))
	}

	delay := time.Duration(math.Min(d, float64(r.config.MaxDelay)))
	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
