package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when no rate token is available.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the concurrency limit is reached.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when a call outlives its timeout.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// StatusError reports an unexpected HTTP status from a provider.
type StatusError struct {
	Status int
	URL    string
}

// Error returns the error message.
func (e *StatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("resilience: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("resilience: unexpected status %d from %s", e.Status, e.URL)
}

// Transient reports whether err is worth retrying: timeouts, network
// failures, 429 and 5xx responses. Cancellation and open circuits are not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}

	var ne net.Error
	return errors.As(err, &ne)
}
