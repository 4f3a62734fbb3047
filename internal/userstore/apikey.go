package userstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/customs/auth"
)

// AddAPIKey issues a random key for username and returns it. Only the
// SHA-256 hash is stored; the key cannot be recovered later. A zero ttl
// never expires.
func (s *Store) AddAPIKey(ctx context.Context, username string, ttl time.Duration) (keyID, key string, err error) {
	u, err := s.GetUser(ctx, username)
	if err != nil {
		return "", "", err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	key = "ck_" + base64.RawURLEncoding.EncodeToString(buf)
	keyID = uuid.NewString()

	var expires int64
	if ttl > 0 {
		expires = s.opts.Now().Add(ttl).Unix()
	}
	_, err = s.db.ExecContext(ctx,
		`insert into api_keys (key_id, key_hash, user_id, expires_at) values (?, ?, ?, ?)`,
		keyID, auth.HashAPIKey(key), u.ID, expires)
	if err != nil {
		return "", "", fmt.Errorf("userstore: insert api key, cause %w", err)
	}
	return keyID, key, nil
}

// RevokeAPIKey deletes a key by ID.
func (s *Store) RevokeAPIKey(ctx context.Context, keyID string) error {
	_, err := s.db.ExecContext(ctx, `delete from api_keys where key_id = ?`, keyID)
	return err
}

// Lookup finds an API key by hash. Unknown hashes return nil.
func (s *Store) Lookup(ctx context.Context, keyHash string) (*auth.APIKeyInfo, error) {
	var (
		info    auth.APIKeyInfo
		email   string
		expires int64
	)
	err := s.db.QueryRowContext(ctx, `select k.key_id, k.key_hash, u.username, u.email, k.expires_at
	from api_keys k
	inner join users u on u.user_id = k.user_id
	where k.key_hash = ?`, keyHash).Scan(&info.ID, &info.KeyHash, &info.Principal, &email, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("userstore: lookup api key, cause %w", err)
	}
	if expires > 0 {
		info.ExpiresAt = time.Unix(expires, 0)
	}
	info.Metadata = map[string]any{"username": info.Principal}
	if email != "" {
		info.Metadata["email"] = email
	}
	return &info, nil
}

// Ensure Store implements APIKeyStore
var _ auth.APIKeyStore = (*Store)(nil)
