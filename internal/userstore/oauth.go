package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/customs/auth"
)

// LinkOAuth returns the user linked to provider and the profile's subject,
// creating the user on first sign-in. The username is the profile's login
// (or email local part), suffixed when already taken.
func (s *Store) LinkOAuth(ctx context.Context, provider string, profile auth.Identity) (*User, error) {
	subject := profile.ID()
	if subject == "" {
		return nil, fmt.Errorf("userstore: %s profile has no subject", provider)
	}

	var userID int64
	err := s.db.QueryRowContext(ctx,
		`select user_id from oauth_accounts where provider = ? and subject = ?`,
		provider, subject).Scan(&userID)
	switch {
	case err == nil:
		u, _, err := s.getUser(ctx, `user_id = ?`, userID)
		return u, err
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("userstore: lookup oauth account, cause %w", err)
	}

	email := profile.String("email")
	base := profile.String("login")
	if base == "" {
		base, _, _ = strings.Cut(email, "@")
	}
	if base == "" {
		base = provider + "-" + subject
	}

	var u *User
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s-%d", base, i+1)
		}
		u, err = s.AddUser(ctx, name, "", email)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrUserExists) || i >= 10 {
			return nil, err
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`insert into oauth_accounts (provider, subject, user_id) values (?, ?, ?)`,
		provider, subject, u.ID); err != nil {
		return nil, fmt.Errorf("userstore: link oauth account, cause %w", err)
	}
	return u, nil
}

// Hooks returns identity hooks for strategies backed by this store. Resolve
// links OAuth profiles when provider is set; sessions and tokens carry only
// the username, and Deserialize reloads the rest.
func (s *Store) Hooks(provider string) auth.Hooks {
	h := auth.Hooks{
		Serialize: func(_ context.Context, id auth.Identity) (auth.Identity, error) {
			return auth.Identity{"id": id.ID()}, nil
		},
		Deserialize: func(ctx context.Context, data auth.Identity) (auth.Identity, error) {
			u, err := s.GetUser(ctx, data.ID())
			if err != nil {
				return nil, err
			}
			return u.Identity(), nil
		},
	}
	if provider != "" {
		h.Resolve = func(ctx context.Context, raw auth.Identity) (auth.Identity, error) {
			u, err := s.LinkOAuth(ctx, provider, raw)
			if err != nil {
				return nil, err
			}
			return u.Identity(), nil
		}
	}
	return h
}
