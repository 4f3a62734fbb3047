package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"
)

// APIKeyConfig configures the API key strategy.
type APIKeyConfig struct {
	// Name is the registration name.
	// Default: "api_key"
	Name string

	// HeaderNames are the headers checked for the key, in order.
	// Default: ["X-API-Key", "Key"]
	HeaderNames []string

	// Field is the body/query field checked after the headers.
	// Default: "key"
	Field string

	// Now returns the current time, for key expiry.
	// Default: time.Now
	Now func() time.Time
}

// APIKeyInfo contains information about a registered API key.
type APIKeyInfo struct {
	// ID is a unique identifier for this key.
	ID string

	// KeyHash is the hashed API key (SHA-256 hex).
	KeyHash string

	// Principal is the user the key acts for.
	Principal string

	// ExpiresAt is when this key expires (zero = never).
	ExpiresAt time.Time

	// Metadata is copied into the identity.
	Metadata map[string]any
}

// APIKeyStore provides storage for API keys.
type APIKeyStore interface {
	// Lookup retrieves an API key by its hash.
	// Returns nil if not found.
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyStrategy authenticates a static API key.
//
// Without a store the strategy only checks that a key is present and hands
// {"api_key": key} to the resolve hook, which decides. With a store the key
// is hashed and looked up, and the identity is built from the stored info.
type APIKeyStrategy struct {
	Hooks

	config APIKeyConfig
	store  APIKeyStore
}

// NewAPIKeyStrategy creates an API key strategy. store may be nil.
func NewAPIKeyStrategy(config APIKeyConfig, store APIKeyStore) *APIKeyStrategy {
	if config.Name == "" {
		config.Name = string(AuthMethodAPIKey)
	}
	if len(config.HeaderNames) == 0 {
		config.HeaderNames = []string{"X-API-Key", "Key"}
	}
	if config.Field == "" {
		config.Field = FieldAPIKey
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &APIKeyStrategy{config: config, store: store}
}

// Name returns the configured name.
func (s *APIKeyStrategy) Name() string {
	return s.config.Name
}

// ExtractCredentials reads the key from headers, body or query.
func (s *APIKeyStrategy) ExtractCredentials(req *Request) (Credentials, error) {
	raw := ExtractAny(req, s.config.Field, s.config.HeaderNames...)
	if v, ok := raw[s.config.Field]; ok {
		return Credentials{FieldAPIKey: v}, nil
	}
	return Credentials{}, nil
}

// Authenticate validates the key.
func (s *APIKeyStrategy) Authenticate(ctx context.Context, req *Request, _ Identity) (*AuthResult, error) {
	creds, _ := s.ExtractCredentials(req)
	key := creds.Get(FieldAPIKey)
	if key == "" {
		return AuthFailure(ErrMissingCredentials, s.Name()), nil
	}

	if s.store == nil {
		return resolve(ctx, s, Identity{"api_key": key})
	}

	info, err := s.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return AuthFailure(ErrInvalidCredentials, s.Name()), nil
	}
	if !info.ExpiresAt.IsZero() && s.config.Now().After(info.ExpiresAt) {
		return AuthFailure(ErrTokenExpired, s.Name()), nil
	}

	raw := Identity{}
	for k, v := range info.Metadata {
		raw[k] = v
	}
	raw["id"] = info.Principal
	raw["key_id"] = info.ID
	return resolve(ctx, s, raw)
}

// HashAPIKey hashes an API key using SHA-256 for storage.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ConstantTimeCompare performs constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MemoryAPIKeyStore is an in-memory API key store.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo // keyed by hash
}

// NewMemoryAPIKeyStore creates a new in-memory API key store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{
		keys: make(map[string]*APIKeyInfo),
	}
}

// Lookup retrieves an API key by its hash.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for hash, info := range s.keys {
		if ConstantTimeCompare(hash, keyHash) {
			return info, nil
		}
	}
	return nil, nil
}

// Add stores info under its KeyHash.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
}

// AddKey hashes key and stores it for principal.
func (s *MemoryAPIKeyStore) AddKey(id, key, principal string) {
	s.Add(&APIKeyInfo{ID: id, KeyHash: HashAPIKey(key), Principal: principal})
}

// Remove removes an API key from the store.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

// Ensure APIKeyStrategy implements Strategy
var _ Strategy = (*APIKeyStrategy)(nil)

// Ensure MemoryAPIKeyStore implements APIKeyStore
var _ APIKeyStore = (*MemoryAPIKeyStore)(nil)
