package auth

import (
	"context"
	"errors"
)

// BearerConfig configures the bearer token strategy.
type BearerConfig struct {
	// Name is the registration name.
	// Default: "jwt"
	Name string

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// Prefix is the scheme before the token in the header.
	// Default: "Bearer "
	Prefix string
}

// BearerStrategy authenticates signed tokens issued by a TokenCodec.
//
// The token carries the serialized identity; DeserializeIdentity restores
// it. Sign is the inverse: it serializes an identity and issues a token.
type BearerStrategy struct {
	Hooks

	config BearerConfig
	codec  *TokenCodec
}

// NewBearerStrategy creates a bearer strategy.
func NewBearerStrategy(config BearerConfig, codec *TokenCodec) *BearerStrategy {
	if config.Name == "" {
		config.Name = string(AuthMethodJWT)
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.Prefix == "" {
		config.Prefix = "Bearer "
	}
	return &BearerStrategy{config: config, codec: codec}
}

// Name returns the configured name.
func (s *BearerStrategy) Name() string {
	return s.config.Name
}

// Codec returns the strategy's token codec.
func (s *BearerStrategy) Codec() *TokenCodec {
	return s.codec
}

// ExtractCredentials reads the token from the configured header.
func (s *BearerStrategy) ExtractCredentials(req *Request) (Credentials, error) {
	return ExtractBearer(req, s.config.HeaderName, s.config.Prefix), nil
}

// Authenticate verifies the token and deserializes its identity.
func (s *BearerStrategy) Authenticate(ctx context.Context, req *Request, _ Identity) (*AuthResult, error) {
	creds, _ := s.ExtractCredentials(req)
	token := creds.Get(FieldToken)
	if token == "" {
		return AuthFailure(ErrMissingCredentials, s.Name()), nil
	}
	if s.codec == nil {
		return nil, Misconfigured(errors.New("auth: " + s.Name() + ": no token codec"))
	}

	data, err := s.codec.Verify(ctx, token)
	if err != nil {
		return AuthFailure(err, s.Name()), nil
	}

	id, err := s.DeserializeIdentity(ctx, data)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return AuthFailure(ErrInvalidToken, s.Name()), nil
	}
	return AuthSuccess(id, s.Name()), nil
}

// Sign serializes id and issues a token for it.
func (s *BearerStrategy) Sign(ctx context.Context, id Identity) (string, error) {
	if s.codec == nil {
		return "", Misconfigured(errors.New("auth: " + s.Name() + ": no token codec"))
	}
	data, err := s.SerializeIdentity(ctx, id)
	if err != nil {
		return "", err
	}
	return s.codec.Sign(ctx, data)
}

// Ensure BearerStrategy implements Strategy
var _ Strategy = (*BearerStrategy)(nil)
