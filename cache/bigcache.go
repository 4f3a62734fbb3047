package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// expiryHeader is the length of the expiry prefix stored before each value.
const expiryHeader = 8

// BigCache is a Cache backed by allegro/bigcache.
//
// bigcache evicts whole shards on a single global life window, so each
// value carries its own expiry and Get treats stale entries as misses.
// The life window is the policy MaxTTL, and longer TTLs are clamped to it.
type BigCache struct {
	cache  *bigcache.BigCache
	policy Policy
	now    func() time.Time
}

// NewBigCache creates a BigCache. policy.MaxTTL must be positive.
func NewBigCache(policy Policy) (*BigCache, error) {
	if policy.MaxTTL <= 0 {
		return nil, fmt.Errorf("cache: bigcache requires a positive MaxTTL")
	}
	cfg := bigcache.DefaultConfig(policy.MaxTTL)
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false

	bc, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("cache: create bigcache: %w", err)
	}
	return &BigCache{cache: bc, policy: policy, now: time.Now}, nil
}

// WithClock replaces the cache's time source. Intended for tests.
func (c *BigCache) WithClock(now func() time.Time) *BigCache {
	c.now = now
	return c
}

// Get retrieves a value. Returns (nil, false) on miss or expiry.
func (c *BigCache) Get(_ context.Context, key string) ([]byte, bool) {
	raw, err := c.cache.Get(key)
	if err != nil || len(raw) < expiryHeader {
		return nil, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:expiryHeader]))
	if c.now().UnixNano() >= expiresAt {
		_ = c.cache.Delete(key)
		return nil, false
	}
	out := make([]byte, len(raw)-expiryHeader)
	copy(out, raw[expiryHeader:])
	return out, true
}

// Set stores value for ttl, clamped to the policy MaxTTL.
func (c *BigCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if ttl > c.policy.MaxTTL {
		ttl = c.policy.MaxTTL
	}
	entry := make([]byte, expiryHeader+len(value))
	binary.BigEndian.PutUint64(entry[:expiryHeader], uint64(c.now().Add(ttl).UnixNano()))
	copy(entry[expiryHeader:], value)
	if err := c.cache.Set(key, entry); err != nil {
		return fmt.Errorf("cache: bigcache set: %w", err)
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (c *BigCache) Delete(_ context.Context, key string) error {
	err := c.cache.Delete(key)
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return fmt.Errorf("cache: bigcache delete: %w", err)
	}
	return nil
}

// Len returns the number of stored entries.
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Close releases the cache's background cleaner.
func (c *BigCache) Close() error {
	return c.cache.Close()
}

// Ensure BigCache implements Cache
var _ Cache = (*BigCache)(nil)
