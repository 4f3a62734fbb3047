package resilience

import (
	"fmt"
	"time"
)

// Config declares the protection around one provider. Zero sections are
// left out of the executor.
type Config struct {
	// Timeout bounds each attempt. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`

	Retry          RetrySettings          `yaml:"retry"`
	CircuitBreaker CircuitBreakerSettings `yaml:"circuit_breaker"`
	RateLimit      RateLimitSettings      `yaml:"rate_limit"`

	// MaxConcurrent of zero disables the bulkhead.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// RetrySettings is the retry section of Config.
type RetrySettings struct {
	// MaxAttempts counts the first call. Values below 2 disable retries.
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Backoff     string        `yaml:"backoff"`
	Jitter      bool          `yaml:"jitter"`
}

// CircuitBreakerSettings is the circuit_breaker section of Config.
type CircuitBreakerSettings struct {
	// MaxFailures of zero disables the breaker.
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// RateLimitSettings is the rate_limit section of Config.
type RateLimitSettings struct {
	// PerSecond of zero disables rate limiting.
	PerSecond float64       `yaml:"per_second"`
	Burst     int           `yaml:"burst"`
	MaxWait   time.Duration `yaml:"max_wait"`
}

// Validate checks for negative values.
func (c Config) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("resilience: timeout must not be negative")
	case c.Retry.MaxAttempts < 0:
		return fmt.Errorf("resilience: retry.max_attempts must not be negative")
	case c.CircuitBreaker.MaxFailures < 0:
		return fmt.Errorf("resilience: circuit_breaker.max_failures must not be negative")
	case c.RateLimit.PerSecond < 0:
		return fmt.Errorf("resilience: rate_limit.per_second must not be negative")
	case c.MaxConcurrent < 0:
		return fmt.Errorf("resilience: max_concurrent must not be negative")
	}
	switch c.Retry.Backoff {
	case "", "exponential", "linear", "constant":
	default:
		return fmt.Errorf("resilience: unknown backoff %q", c.Retry.Backoff)
	}
	return nil
}

// NewExecutorFromConfig builds an executor with the sections cfg enables.
// onStateChange, if set, observes circuit transitions.
func NewExecutorFromConfig(cfg Config, onStateChange func(from, to State)) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []ExecutorOption
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.Retry.MaxAttempts > 1 {
		opts = append(opts, WithRetry(NewRetry(RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Backoff:     ParseBackoff(cfg.Retry.Backoff),
			Jitter:      cfg.Retry.Jitter,
		})))
	}
	if cfg.CircuitBreaker.MaxFailures > 0 {
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{
			MaxFailures:   cfg.CircuitBreaker.MaxFailures,
			ResetTimeout:  cfg.CircuitBreaker.ResetTimeout,
			OnStateChange: onStateChange,
		})))
	}
	if cfg.RateLimit.PerSecond > 0 {
		opts = append(opts, WithRateLimiter(NewRateLimiter(RateLimiterConfig{
			Rate:    cfg.RateLimit.PerSecond,
			Burst:   cfg.RateLimit.Burst,
			MaxWait: cfg.RateLimit.MaxWait,
		})))
	}
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, WithBulkhead(NewBulkhead(BulkheadConfig{MaxConcurrent: cfg.MaxConcurrent})))
	}
	return NewExecutor(opts...), nil
}
