package cache

import (
	"context"
	"encoding/json"
)

// ResolveFunc maps one document to another, typically raw strategy output
// to an application identity.
type ResolveFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// Memoizer caches the results of a ResolveFunc keyed by its input.
type Memoizer struct {
	cache     Cache
	keyer     Keyer
	policy    Policy
	namespace string
}

// NewMemoizer creates a memoizer storing results under namespace.
// If keyer is nil, DefaultKeyer is used.
func NewMemoizer(cache Cache, keyer Keyer, policy Policy, namespace string) *Memoizer {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	return &Memoizer{
		cache:     cache,
		keyer:     keyer,
		policy:    policy,
		namespace: namespace,
	}
}

// Wrap returns fn with memoization applied.
// On a hit the cached document is returned without calling fn.
// Errors and nil results are NOT cached.
func (m *Memoizer) Wrap(fn ResolveFunc) ResolveFunc {
	return func(ctx context.Context, input map[string]any) (map[string]any, error) {
		if m.cache == nil || !m.policy.ShouldCache() {
			return fn(ctx, input)
		}

		key, err := m.keyer.Key(m.namespace, input)
		if err != nil {
			return fn(ctx, input)
		}

		if cached, ok := m.cache.Get(ctx, key); ok {
			var out map[string]any
			if err := json.Unmarshal(cached, &out); err == nil {
				return out, nil
			}
			_ = m.cache.Delete(ctx, key)
		}

		out, err := fn(ctx, input)
		if err != nil || out == nil {
			return out, err
		}

		if data, err := json.Marshal(out); err == nil {
			_ = m.cache.Set(ctx, key, data, m.policy.EffectiveTTL(0))
		}
		return out, nil
	}
}

// Forget drops the cached result for input.
func (m *Memoizer) Forget(ctx context.Context, input map[string]any) error {
	if m.cache == nil {
		return nil
	}
	key, err := m.keyer.Key(m.namespace, input)
	if err != nil {
		return err
	}
	return m.cache.Delete(ctx, key)
}
