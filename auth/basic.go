package auth

import (
	"context"
	"fmt"
)

// BasicConfig configures the HTTP Basic strategy.
type BasicConfig struct {
	// Name is the registration name.
	// Default: "basic"
	Name string

	// Realm is advertised in the WWW-Authenticate challenge.
	// Default: "Restricted"
	Realm string
}

// BasicStrategy authenticates the Authorization: Basic header.
type BasicStrategy struct {
	Hooks

	config    BasicConfig
	validator PasswordValidator
}

// NewBasicStrategy creates a basic strategy.
func NewBasicStrategy(config BasicConfig, validator PasswordValidator) *BasicStrategy {
	if config.Name == "" {
		config.Name = string(AuthMethodBasic)
	}
	if config.Realm == "" {
		config.Realm = "Restricted"
	}
	return &BasicStrategy{config: config, validator: validator}
}

// Name returns the configured name.
func (s *BasicStrategy) Name() string {
	return s.config.Name
}

// ExtractCredentials decodes the Basic header.
func (s *BasicStrategy) ExtractCredentials(req *Request) (Credentials, error) {
	return ExtractBasic(req)
}

// Authenticate validates the decoded credentials. Failures carry a
// WWW-Authenticate challenge for the realm.
func (s *BasicStrategy) Authenticate(ctx context.Context, req *Request, _ Identity) (*AuthResult, error) {
	creds, err := s.ExtractCredentials(req)
	if err != nil {
		return s.challenge(AuthFailure(err, s.Name())), nil
	}
	res, err := checkPassword(ctx, s, s.validator, creds)
	if err != nil {
		return nil, err
	}
	if !res.Authenticated {
		return s.challenge(res), nil
	}
	return res, nil
}

func (s *BasicStrategy) challenge(res *AuthResult) *AuthResult {
	if ae, ok := res.Error.(*Error); ok && ae.Kind == KindUnauthorized {
		cp := *ae
		cp.Challenge = fmt.Sprintf("Basic realm=%q", s.config.Realm)
		res.Error = &cp
	}
	return res
}

// Ensure BasicStrategy implements Strategy
var _ Strategy = (*BasicStrategy)(nil)
