package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/customs/cache"
)

// ErrNilStore is returned when a Store has no backing cache.
var ErrNilStore = errors.New("session: store is nil")

// Store keeps JSON-encoded records in a cache.
type Store struct {
	cache  cache.Cache
	prefix string
}

// NewStore creates a store over c.
func NewStore(c cache.Cache) *Store {
	return &Store{cache: c, prefix: "session:"}
}

// Load returns the record stored under id.
func (s *Store) Load(ctx context.Context, id string) (*Record, bool, error) {
	if s == nil || s.cache == nil {
		return nil, false, ErrNilStore
	}
	data, ok := s.cache.Get(ctx, s.prefix+id)
	if !ok {
		return nil, false, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("session: decode record: %w", err)
	}
	return &rec, true, nil
}

// Save stores rec under id for ttl.
func (s *Store) Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	if s == nil || s.cache == nil {
		return ErrNilStore
	}
	key := s.prefix + id
	if err := cache.ValidateKey(key); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("session: save record: %w", err)
	}
	return nil
}

// Delete removes the record stored under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.cache == nil {
		return ErrNilStore
	}
	return s.cache.Delete(ctx, s.prefix+id)
}

// Ping writes and removes a probe record.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return ErrNilStore
	}
	key := s.prefix + "ping"
	if err := s.cache.Set(ctx, key, []byte("{}"), time.Second); err != nil {
		return fmt.Errorf("session: ping: %w", err)
	}
	if _, ok := s.cache.Get(ctx, key); !ok {
		return errors.New("session: ping: probe not readable")
	}
	return s.cache.Delete(ctx, key)
}
