package auth

import (
	"context"
	"errors"
)

// Strategy is one authentication method.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: Authenticate should honor cancellation/deadlines.
//   - Errors: Authenticate returns (AuthResult, nil) for authentication
//     failures and (nil, error) for internal or hook errors. Both are
//     recorded by the dispatcher as failed attempts.
//   - Prior: the identity produced by an earlier factor, or nil.
type Strategy interface {
	// Name returns the unique registration name.
	Name() string

	// ExtractCredentials pulls this strategy's credential fields from req.
	// Missing fields are absent from the bundle; malformed input is an error.
	ExtractCredentials(req *Request) (Credentials, error)

	// Authenticate validates credentials and produces an identity.
	Authenticate(ctx context.Context, req *Request, prior Identity) (*AuthResult, error)

	IdentityHooks
}

// SecondFactor is implemented by strategies that can only run after
// another factor has produced an identity.
type SecondFactor interface {
	RequiresPrior() bool
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	// Authenticated is true if authentication succeeded.
	Authenticated bool

	// Identity is the authenticated identity (only if Authenticated=true).
	Identity Identity

	// Error is the authentication error (only if Authenticated=false).
	Error error

	// Method is the name of the strategy that produced the result.
	Method string
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity Identity, method string) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        method,
	}
}

// AuthFailure creates a failed authentication result.
// Errors without a Kind are classified as Unauthorized.
func AuthFailure(err error, method string) *AuthResult {
	if _, ok := KindOf(err); !ok {
		err = Unauthorized(err)
	}
	return &AuthResult{
		Authenticated: false,
		Error:         err,
		Method:        method,
	}
}

// requiresPrior reports whether s must run as a second factor.
func requiresPrior(s Strategy) bool {
	sf, ok := s.(SecondFactor)
	return ok && sf.RequiresPrior()
}

// resolve runs the strategy's resolve hook over a validated raw identity.
// A nil resolved identity is a rejection; hook errors are returned as-is so
// they keep their identity.
func resolve(ctx context.Context, s Strategy, raw Identity) (*AuthResult, error) {
	id, err := s.ResolveIdentity(ctx, raw)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return AuthFailure(err, s.Name()), nil
		}
		return nil, err
	}
	if id == nil {
		return AuthFailure(ErrInvalidCredentials, s.Name()), nil
	}
	return AuthSuccess(id, s.Name()), nil
}

// AuthenticateFunc is the signature of StrategyFunc's authentication step.
type AuthenticateFunc func(ctx context.Context, req *Request, prior Identity) (*AuthResult, error)

// StrategyFunc is an adapter to allow use of ordinary functions as Strategies.
type StrategyFunc struct {
	Hooks

	name    string
	extract func(req *Request) (Credentials, error)
	auth    AuthenticateFunc
}

// NewStrategyFunc creates a StrategyFunc.
// extract may be nil, in which case ExtractCredentials returns an empty bundle.
func NewStrategyFunc(
	name string,
	extract func(req *Request) (Credentials, error),
	auth AuthenticateFunc,
) *StrategyFunc {
	return &StrategyFunc{
		name:    name,
		extract: extract,
		auth:    auth,
	}
}

// Name returns the strategy name.
func (f *StrategyFunc) Name() string {
	return f.name
}

// ExtractCredentials calls the extract function.
func (f *StrategyFunc) ExtractCredentials(req *Request) (Credentials, error) {
	if f.extract == nil {
		return Credentials{}, nil
	}
	return f.extract(req)
}

// Authenticate calls the authentication function.
func (f *StrategyFunc) Authenticate(ctx context.Context, req *Request, prior Identity) (*AuthResult, error) {
	return f.auth(ctx, req, prior)
}

// Ensure StrategyFunc implements Strategy
var _ Strategy = (*StrategyFunc)(nil)
