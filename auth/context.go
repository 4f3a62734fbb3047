package auth

import (
	"context"
	"slices"

	"github.com/jonwraymond/customs/session"
)

// Context keys for auth-related values.
type contextKey int

const (
	identityKey contextKey = iota
	strategyKey
	factorsKey
	sessionKey
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// WithStrategy records which strategy authenticated the request.
func WithStrategy(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, strategyKey, name)
}

// StrategyFromContext returns the name of the strategy that authenticated
// the request, or empty string.
func StrategyFromContext(ctx context.Context) string {
	s, _ := ctx.Value(strategyKey).(string)
	return s
}

// WithFactors records the factors the request has completed, in order.
func WithFactors(ctx context.Context, factors []string) context.Context {
	return context.WithValue(ctx, factorsKey, slices.Clone(factors))
}

// FactorsFromContext returns the factors the request has completed.
// An identity attached without WithFactors has none.
func FactorsFromContext(ctx context.Context) []string {
	f, _ := ctx.Value(factorsKey).([]string)
	return f
}

// HasFactor reports whether the request completed the named factor.
func HasFactor(ctx context.Context, name string) bool {
	return slices.Contains(FactorsFromContext(ctx), name)
}

// PrincipalFromContext returns the ID of the identity in the context.
// Returns empty string if no identity is present.
func PrincipalFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).ID()
}

// withSession attaches the session loaded for this request, so later
// engine calls see its current ID and contents.
func withSession(ctx context.Context, sess *session.Session) context.Context {
	if sess == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sess)
}

func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey).(*session.Session)
	return sess
}
