package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/customs/observe"
)

// Attempt records one failed strategy evaluation.
type Attempt struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// Outcome is the result of running a Chain.
type Outcome struct {
	// Identity is the identity produced by the winning strategy.
	Identity Identity

	// Strategy is the name of the winning strategy.
	Strategy string

	// Attempts lists failures in evaluation order.
	Attempts []Attempt

	cancelled error
}

// Authenticated reports whether a strategy succeeded.
func (o *Outcome) Authenticated() bool {
	return o.Strategy != ""
}

// Err returns the error surfaced for a failed outcome: the first strategy's
// failure, not the last. Returns nil on success.
func (o *Outcome) Err() error {
	if o.Authenticated() {
		return nil
	}
	if len(o.Attempts) > 0 {
		return o.Attempts[0].Err
	}
	if o.cancelled != nil {
		return o.cancelled
	}
	return Misconfigured(ErrNoStrategies)
}

// Chain evaluates strategies in declaration order until one succeeds.
type Chain struct {
	strategies []Strategy
	middleware *observe.Middleware
	guard      string
	stage      int
}

// NewChain creates a chain over strategies.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, stage: 1}
}

// WithMiddleware returns a copy of the chain that reports every attempt
// through mw under the given guard label.
func (c *Chain) WithMiddleware(mw *observe.Middleware, guard string) *Chain {
	cp := *c
	cp.middleware = mw
	cp.guard = guard
	return &cp
}

// Names returns the strategy names in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of strategies.
func (c *Chain) Len() int {
	return len(c.strategies)
}

// Authenticate runs the strategies in order. It stops at the first success
// and records every failure before it. Cancellation is checked before each
// attempt; a cancelled context ends the chain.
func (c *Chain) Authenticate(ctx context.Context, req *Request, prior Identity) *Outcome {
	out := &Outcome{}

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			out.cancelled = err
			return out
		}

		start := time.Now()
		res, err := c.attempt(ctx, s, req, prior)
		if err == nil && res.Authenticated {
			out.Identity = res.Identity
			out.Strategy = s.Name()
			return out
		}
		if err == nil {
			err = res.Error
		}
		out.Attempts = append(out.Attempts, Attempt{
			Strategy: s.Name(),
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return out
}

// attempt runs one strategy and normalizes its result so that a nil error
// always comes with a non-nil result.
func (c *Chain) attempt(ctx context.Context, s Strategy, req *Request, prior Identity) (*AuthResult, error) {
	var res *AuthResult
	run := func(ctx context.Context, _ observe.AttemptMeta) error {
		var err error
		res, err = s.Authenticate(ctx, req, prior)
		if err != nil {
			return err
		}
		switch {
		case res == nil:
			return Misconfigured(errors.New("auth: " + s.Name() + ": no result"))
		case res.Authenticated && res.Identity == nil:
			return Unauthorized(ErrInvalidCredentials)
		case !res.Authenticated:
			return AuthFailure(res.Error, s.Name()).Error
		}
		return nil
	}

	if c.middleware != nil {
		run = c.middleware.Wrap(run)
	}
	err := run(ctx, observe.AttemptMeta{Strategy: s.Name(), Guard: c.guard, Stage: c.stage})
	if err != nil {
		return nil, err
	}
	return res, nil
}
