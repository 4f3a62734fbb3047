package auth

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/jonwraymond/customs/cache"
)

// AuthMethod names a built-in strategy type.
type AuthMethod string

const (
	AuthMethodLocal  AuthMethod = "local"
	AuthMethodBasic  AuthMethod = "basic"
	AuthMethodAPIKey AuthMethod = "api_key"
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodOAuth2 AuthMethod = "oauth2"
	AuthMethodTOTP   AuthMethod = "totp"
)

// Identity is the authenticated principal.
//
// Its shape is application-defined; the only requirement is that it can be
// encoded as JSON so it fits in a session record or a token claim.
type Identity map[string]any

// IDKeys are the keys ID consults, in order.
var IDKeys = []string{"id", "sub", "username", "email"}

// ID returns a best-effort unique identifier for the identity.
func (id Identity) ID() string {
	for _, k := range IDKeys {
		switch v := id[k].(type) {
		case nil:
		case float64:
			// JSON numbers, such as numeric provider user IDs.
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// String returns the value at key if it is a string.
func (id Identity) String(key string) string {
	s, _ := id[key].(string)
	return s
}

// Bool returns the value at key if it is a bool.
func (id Identity) Bool(key string) bool {
	b, _ := id[key].(bool)
	return b
}

// Clone returns a shallow copy of the identity.
func (id Identity) Clone() Identity {
	if id == nil {
		return nil
	}
	out := make(Identity, len(id))
	for k, v := range id {
		out[k] = v
	}
	return out
}

// Equal reports whether two identities hold deeply equal values.
func (id Identity) Equal(other Identity) bool {
	return reflect.DeepEqual(map[string]any(id), map[string]any(other))
}

// IdentityHooks maps raw credentials to identities and identities to the
// compact form stored in sessions and tokens.
type IdentityHooks interface {
	// ResolveIdentity maps a validated raw credential to the application's
	// identity, typically by looking up or creating a user record.
	ResolveIdentity(ctx context.Context, raw Identity) (Identity, error)

	// SerializeIdentity shrinks an identity to what is persisted.
	SerializeIdentity(ctx context.Context, id Identity) (Identity, error)

	// DeserializeIdentity restores an identity from its persisted form.
	DeserializeIdentity(ctx context.Context, data Identity) (Identity, error)
}

// IdentityFunc transforms an identity.
type IdentityFunc func(ctx context.Context, id Identity) (Identity, error)

// Memoize caches the results of fn in m, keyed by the input identity.
// Cached identities come back through JSON, so numbers are float64.
func Memoize(m *cache.Memoizer, fn IdentityFunc) IdentityFunc {
	if m == nil || fn == nil {
		return fn
	}
	wrapped := m.Wrap(func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return fn(ctx, Identity(in))
	})
	return func(ctx context.Context, id Identity) (Identity, error) {
		out, err := wrapped(ctx, map[string]any(id))
		if out == nil {
			return nil, err
		}
		return Identity(out), err
	}
}

// Hooks implements IdentityHooks with optional functions.
// A nil function passes the identity through unchanged.
type Hooks struct {
	Resolve     IdentityFunc
	Serialize   IdentityFunc
	Deserialize IdentityFunc
}

// ResolveIdentity applies Resolve.
func (h Hooks) ResolveIdentity(ctx context.Context, raw Identity) (Identity, error) {
	return h.apply(ctx, h.Resolve, raw)
}

// SerializeIdentity applies Serialize.
func (h Hooks) SerializeIdentity(ctx context.Context, id Identity) (Identity, error) {
	return h.apply(ctx, h.Serialize, id)
}

// DeserializeIdentity applies Deserialize.
func (h Hooks) DeserializeIdentity(ctx context.Context, data Identity) (Identity, error) {
	return h.apply(ctx, h.Deserialize, data)
}

func (h Hooks) apply(ctx context.Context, fn IdentityFunc, id Identity) (Identity, error) {
	if fn == nil {
		return id, nil
	}
	return fn(ctx, id)
}

// Ensure Hooks implements IdentityHooks
var _ IdentityHooks = Hooks{}
