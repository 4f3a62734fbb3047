package userstore

import (
	"context"
	"errors"

	"github.com/jonwraymond/customs/auth"
)

// BeginTOTP stores a new unverified secret for username, replacing any
// previous one. Until ConfirmTOTP succeeds the user counts as not enrolled.
func (s *Store) BeginTOTP(ctx context.Context, username, secret string) error {
	return s.update(ctx, username, `totp_secret = ?, totp_verified = 0`, secret)
}

// PendingTOTP returns the secret stored by BeginTOTP and whether it has been
// confirmed.
func (s *Store) PendingTOTP(ctx context.Context, username string) (secret string, verified bool, err error) {
	u, err := s.GetUser(ctx, username)
	if err != nil {
		return "", false, err
	}
	return u.TOTPSecret, u.TOTPVerified, nil
}

// ConfirmTOTP marks the enrollment verified when code matches the pending
// secret.
func (s *Store) ConfirmTOTP(ctx context.Context, username, code string) (bool, error) {
	secret, _, err := s.PendingTOTP(ctx, username)
	if err != nil {
		return false, err
	}
	if secret == "" || !auth.VerifyTOTP(secret, code, s.opts.Now()) {
		return false, nil
	}
	return true, s.update(ctx, username, `totp_verified = 1`)
}

// TOTPSecret returns the verified secret for id, or "" when the user has not
// finished enrollment. It has the shape of auth.TOTPSecretFunc.
func (s *Store) TOTPSecret(ctx context.Context, id auth.Identity) (string, error) {
	u, err := s.GetUser(ctx, id.ID())
	if errors.Is(err, ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !u.TOTPVerified {
		return "", nil
	}
	return u.TOTPSecret, nil
}
