package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps strategy names to strategies.
//
// Registering a second strategy under an existing name fails with
// ErrDuplicateStrategy; the first registration is kept.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds strategies under their names.
func (r *Registry) Register(strategies ...Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range strategies {
		if s == nil || s.Name() == "" {
			return errors.New("auth: invalid strategy registration")
		}
		if _, exists := r.strategies[s.Name()]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateStrategy, s.Name())
		}
		r.strategies[s.Name()] = s
	}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(strategies ...Strategy) {
	if err := r.Register(strategies...); err != nil {
		panic(err)
	}
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Resolve returns the named strategies in order.
// Unknown names fail with ErrUnknownStrategy listing what is registered.
func (r *Registry) Resolve(names ...string) ([]Strategy, error) {
	if len(names) == 0 {
		return nil, ErrNoStrategies
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, ok := r.strategies[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownStrategy, name, strings.Join(r.namesLocked(), ", "))
		}
		out = append(out, s)
	}
	return out, nil
}

// Names returns registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
