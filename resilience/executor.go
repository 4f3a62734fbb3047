package resilience

import (
	"context"
	"time"
)

// Executor composes the patterns around one provider.
type Executor struct {
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor. With no options it calls op directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retries.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter adds a rate limit.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds a concurrency limit.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout bounds each attempt.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout}) }
}

// CircuitBreaker returns the executor's breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.circuitBreaker
}

// Execute runs op through the configured patterns, outermost first:
// rate limiter, bulkhead, circuit breaker, retry, timeout.
//
// The breaker sees the outcome of the whole retry sequence, so one failed
// login counts once however many attempts it took. The timeout applies to
// each attempt.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	call := op

	if e.timeout != nil {
		call = wrap(e.timeout.Execute, call)
	}
	if e.retry != nil {
		call = wrap(e.retry.Execute, call)
	}
	if e.circuitBreaker != nil {
		call = wrap(e.circuitBreaker.Execute, call)
	}
	if e.bulkhead != nil {
		call = wrap(e.bulkhead.Execute, call)
	}
	if e.rateLimiter != nil {
		call = wrap(e.rateLimiter.Execute, call)
	}
	return call(ctx)
}

type runner func(ctx context.Context, op func(context.Context) error) error

func wrap(outer runner, inner func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return outer(ctx, inner)
	}
}
