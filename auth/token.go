package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityClaim is the token claim that carries the serialized identity.
const IdentityClaim = "idn"

// TokenConfig configures the token codec.
type TokenConfig struct {
	// Algorithm is the JWS signing algorithm.
	// Default: "HS256"
	Algorithm string

	// SigningKey signs new tokens: []byte for HMAC, *rsa.PrivateKey or
	// *ecdsa.PrivateKey otherwise. A codec without one can only verify.
	SigningKey any

	// KeyID is written to the "kid" header of signed tokens.
	KeyID string

	// Issuer is written to and required in the "iss" claim when set.
	Issuer string

	// Audience is written to and required in the "aud" claim when set.
	Audience string

	// TTL is the lifetime of signed tokens.
	// Default: 1 hour
	TTL time.Duration

	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// TokenCodec signs and verifies compact signed tokens carrying an identity.
//
// Verification failures of every kind (bad signature, expiry, wrong
// algorithm, malformed input, issuer or audience mismatch) are reported as
// the same Unauthorized(ErrInvalidToken) error.
type TokenCodec struct {
	config TokenConfig
	method jwt.SigningMethod
	keys   KeyProvider
}

// NewTokenCodec creates a token codec. keys may be nil, in which case
// tokens are verified with the key derived from config.SigningKey.
func NewTokenCodec(config TokenConfig, keys KeyProvider) (*TokenCodec, error) {
	if config.Algorithm == "" {
		config.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	if config.TTL == 0 {
		config.TTL = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	method := jwt.GetSigningMethod(config.Algorithm)
	if method == nil || method == jwt.SigningMethodNone {
		return nil, fmt.Errorf("auth: unsupported token algorithm %q", config.Algorithm)
	}

	if keys == nil {
		if config.SigningKey == nil {
			return nil, fmt.Errorf("auth: token codec needs a signing key or key provider")
		}
		keys = NewStaticKeyProvider(verificationKey(config.SigningKey))
	}

	return &TokenCodec{config: config, method: method, keys: keys}, nil
}

// TTL returns the lifetime of signed tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.config.TTL
}

// Sign issues a token carrying id, which should already be in its compact
// serialized form.
func (c *TokenCodec) Sign(_ context.Context, id Identity) (string, error) {
	if c.config.SigningKey == nil {
		return "", fmt.Errorf("auth: sign token: %w", ErrKeyNotFound)
	}

	now := c.config.Now()
	claims := jwt.MapClaims{
		IdentityClaim: map[string]any(id),
		"iat":         now.Unix(),
		"exp":         now.Add(c.config.TTL).Unix(),
		"jti":         uuid.NewString(),
	}
	if sub := id.ID(); sub != "" {
		claims["sub"] = sub
	}
	if c.config.Issuer != "" {
		claims["iss"] = c.config.Issuer
	}
	if c.config.Audience != "" {
		claims["aud"] = c.config.Audience
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signed, err := token.SignedString(c.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns the identity it carries.
func (c *TokenCodec) Verify(ctx context.Context, tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.config.Now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.config.Leeway),
	}
	if c.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.config.Audience))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return c.keys.GetKey(ctx, kid)
	}, opts...)
	if err != nil || !token.Valid {
		return nil, invalidToken(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, invalidToken(nil)
	}
	raw, ok := claims[IdentityClaim].(map[string]any)
	if !ok {
		return nil, invalidToken(nil)
	}
	return Identity(raw), nil
}

// invalidToken hides the parser's reason behind a single message.
func invalidToken(cause error) *Error {
	e := Unauthorized(ErrInvalidToken)
	if cause != nil && errors.Is(cause, jwt.ErrTokenExpired) {
		// Kept in the chain for logging; the client still sees ErrInvalidToken.
		e.Err = fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
	}
	e.Message = ErrInvalidToken.Error()
	return e
}
