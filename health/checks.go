package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/customs/resilience"
)

// Pinger is a component that can prove it is reachable, such as a session
// store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports unhealthy when Ping fails.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewPingChecker creates a checker over p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

// Name returns the checker name.
func (c *PingChecker) Name() string {
	return c.name
}

// Check pings the component.
func (c *PingChecker) Check(ctx context.Context) Result {
	if err := c.pinger.Ping(ctx); err != nil {
		return Unhealthy("ping failed", fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}
	return Healthy("reachable")
}

// KeySet is a refreshable set of verification keys.
type KeySet interface {
	Refresh(ctx context.Context) error
	Len() int
}

// KeySetChecker refreshes a key set. A failed refresh with keys still
// cached is degraded, since tokens signed with known keys keep verifying.
type KeySetChecker struct {
	name string
	keys KeySet
}

// NewKeySetChecker creates a checker over keys.
func NewKeySetChecker(name string, keys KeySet) *KeySetChecker {
	return &KeySetChecker{name: name, keys: keys}
}

// Name returns the checker name.
func (c *KeySetChecker) Name() string {
	return c.name
}

// Check refreshes the key set.
func (c *KeySetChecker) Check(ctx context.Context) Result {
	err := c.keys.Refresh(ctx)
	n := c.keys.Len()
	details := map[string]any{"keys": n}

	switch {
	case err == nil && n == 0:
		return Unhealthy("no usable keys published", ErrCheckFailed).WithDetails(details)
	case err == nil:
		return Healthy(fmt.Sprintf("%d keys", n)).WithDetails(details)
	case n > 0:
		details["error"] = err.Error()
		return Degraded("refresh failed, serving cached keys").WithDetails(details)
	default:
		return Unhealthy("refresh failed", fmt.Errorf("%w: %w", ErrCheckFailed, err)).WithDetails(details)
	}
}

// CircuitChecker reports the state of the breaker guarding an identity
// provider.
type CircuitChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewCircuitChecker creates a checker over cb.
func NewCircuitChecker(name string, cb *resilience.CircuitBreaker) *CircuitChecker {
	return &CircuitChecker{name: name, breaker: cb}
}

// Name returns the checker name.
func (c *CircuitChecker) Name() string {
	return c.name
}

// Check maps closed to healthy, half-open to degraded and open to unhealthy.
func (c *CircuitChecker) Check(context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{"state": m.State.String(), "failures": m.Failures}

	switch m.State {
	case resilience.StateClosed:
		return Healthy("circuit closed").WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit probing").WithDetails(details)
	default:
		return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	}
}

// Ensure checkers implement Checker
var (
	_ Checker = (*PingChecker)(nil)
	_ Checker = (*KeySetChecker)(nil)
	_ Checker = (*CircuitChecker)(nil)
)
