package session

import (
	"slices"
	"time"
)

// Record is the persisted session state.
type Record struct {
	// Identity is the serialized identity, or nil.
	Identity map[string]any `json:"user,omitempty"`

	// Authenticated is true once every required factor has passed.
	// A record with an identity that is not authenticated is pending: the
	// first factor passed and a second factor is outstanding.
	Authenticated bool `json:"is_authenticated"`

	// Strategy names the strategy whose hooks deserialize Identity.
	Strategy string `json:"strategy,omitempty"`

	// Factors lists the strategies that have succeeded, in order.
	Factors []string `json:"factors,omitempty"`

	// Permanent makes the cookie outlive the browser session.
	Permanent bool `json:"permanent,omitempty"`

	// Next is the URL to return to after login.
	Next string `json:"next,omitempty"`

	// Values holds application data.
	Values map[string]string `json:"values,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Pending reports whether the record holds a first-factor identity that
// still needs a second factor.
func (r *Record) Pending() bool {
	return r.Identity != nil && !r.Authenticated
}

// HasFactor reports whether name completed in this session.
func (r *Record) HasFactor(name string) bool {
	return slices.Contains(r.Factors, name)
}

// SetIdentity stores an authenticated or pending identity.
func (r *Record) SetIdentity(id map[string]any, strategy string, factors []string, authenticated bool) {
	r.Identity = id
	r.Strategy = strategy
	r.Factors = slices.Clone(factors)
	r.Authenticated = authenticated
}

// ClearIdentity removes all authentication state.
func (r *Record) ClearIdentity() {
	r.Identity = nil
	r.Strategy = ""
	r.Factors = nil
	r.Authenticated = false
}

// Expired reports whether the record has passed its idle timeout or its
// absolute lifetime at now. Zero durations disable the respective check.
func (r *Record) Expired(now time.Time, idle, lifetime time.Duration) bool {
	if idle > 0 && !r.LastSeen.IsZero() && now.Sub(r.LastSeen) > idle {
		return true
	}
	if lifetime > 0 && !r.CreatedAt.IsZero() && now.Sub(r.CreatedAt) > lifetime {
		return true
	}
	return false
}
