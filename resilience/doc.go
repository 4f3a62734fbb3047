// Package resilience guards outbound calls to identity providers: OAuth
// token and profile endpoints, JWKS documents and similar HTTP services
// that sit on the login path.
//
// The building blocks are a circuit breaker, retry with backoff, a rate
// limiter, a concurrency limit and a per-call timeout. An Executor composes
// them in a fixed order, and NewExecutorFromConfig builds one from the
// declarative Config loaded with the rest of the server configuration.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return fetchProfile(ctx)
//	})
//
// Only transient failures are retried by default: network errors, timeouts
// and StatusError values with a 429 or 5xx status. A provider that answers
// 401 will answer 401 again.
package resilience
