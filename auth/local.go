package auth

import (
	"context"
	"errors"
)

// PasswordValidator checks a username and password.
//
// It returns the raw identity for valid credentials, (nil, nil) or an error
// wrapping ErrInvalidCredentials for invalid ones, and any other error for
// internal failures.
type PasswordValidator interface {
	ValidatePassword(ctx context.Context, username, password string) (Identity, error)
}

// PasswordValidatorFunc adapts a function to PasswordValidator.
type PasswordValidatorFunc func(ctx context.Context, username, password string) (Identity, error)

// ValidatePassword calls f.
func (f PasswordValidatorFunc) ValidatePassword(ctx context.Context, username, password string) (Identity, error) {
	return f(ctx, username, password)
}

// LocalConfig configures the local (form/query) password strategy.
type LocalConfig struct {
	// Name is the registration name.
	// Default: "local"
	Name string

	// UsernameField is the body/query field holding the username.
	// Default: "username"
	UsernameField string

	// PasswordField is the body/query field holding the password.
	// Default: "password"
	PasswordField string
}

// LocalStrategy authenticates a username and password sent in the request
// body or query string.
type LocalStrategy struct {
	Hooks

	config    LocalConfig
	validator PasswordValidator
}

// NewLocalStrategy creates a local strategy.
func NewLocalStrategy(config LocalConfig, validator PasswordValidator) *LocalStrategy {
	if config.Name == "" {
		config.Name = string(AuthMethodLocal)
	}
	if config.UsernameField == "" {
		config.UsernameField = FieldUsername
	}
	if config.PasswordField == "" {
		config.PasswordField = FieldPassword
	}
	return &LocalStrategy{config: config, validator: validator}
}

// Name returns the configured name.
func (s *LocalStrategy) Name() string {
	return s.config.Name
}

// ExtractCredentials reads the username and password fields.
func (s *LocalStrategy) ExtractCredentials(req *Request) (Credentials, error) {
	raw := ExtractFields(req, s.config.UsernameField, s.config.PasswordField)
	creds := Credentials{}
	if v, ok := raw[s.config.UsernameField]; ok {
		creds[FieldUsername] = v
	}
	if v, ok := raw[s.config.PasswordField]; ok {
		creds[FieldPassword] = v
	}
	return creds, nil
}

// Authenticate validates the password and resolves the identity.
func (s *LocalStrategy) Authenticate(ctx context.Context, req *Request, _ Identity) (*AuthResult, error) {
	creds, err := s.ExtractCredentials(req)
	if err != nil {
		return AuthFailure(err, s.Name()), nil
	}
	return checkPassword(ctx, s, s.validator, creds)
}

// checkPassword is shared by the local and basic strategies.
func checkPassword(ctx context.Context, s Strategy, v PasswordValidator, creds Credentials) (*AuthResult, error) {
	if !creds.Has(FieldUsername, FieldPassword) {
		return AuthFailure(ErrMissingCredentials, s.Name()), nil
	}
	if v == nil {
		return nil, Misconfigured(errors.New("auth: " + s.Name() + ": no password validator"))
	}

	raw, err := v.ValidatePassword(ctx, creds.Get(FieldUsername), creds.Get(FieldPassword))
	if err != nil {
		if _, ok := KindOf(err); ok || errors.Is(err, ErrInvalidCredentials) {
			return AuthFailure(err, s.Name()), nil
		}
		return nil, err
	}
	if raw == nil {
		return AuthFailure(ErrInvalidCredentials, s.Name()), nil
	}
	return resolve(ctx, s, raw)
}

// Ensure LocalStrategy implements Strategy
var _ Strategy = (*LocalStrategy)(nil)
