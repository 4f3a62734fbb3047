package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/customs/cache"
)

// StrategyConfig declares one strategy instance.
type StrategyConfig struct {
	// Name is the registration name. Defaults to Type.
	Name string `yaml:"name"`

	// Type selects the factory.
	Type string `yaml:"type"`

	// Options are passed to the factory.
	Options map[string]any `yaml:"options"`
}

// Dependencies are the collaborators factories wire into strategies.
type Dependencies struct {
	// Passwords validates local and basic credentials.
	Passwords PasswordValidator

	// Codec signs and verifies bearer tokens.
	Codec *TokenCodec

	// APIKeys looks up hashed API keys. Optional.
	APIKeys APIKeyStore

	// OAuthProviders maps strategy names to providers.
	OAuthProviders map[string]OAuthProvider

	// OAuthStates stores issued state values. Optional.
	OAuthStates cache.Cache

	// TOTPSecret looks up enrolled TOTP secrets. Optional.
	TOTPSecret TOTPSecretFunc

	// Hooks maps strategy names to identity hooks.
	Hooks map[string]Hooks
}

// Factory creates a strategy from configuration.
type Factory func(cfg StrategyConfig, deps Dependencies) (Strategy, error)

// Factories maps strategy types to factories.
type Factories struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactories creates an empty factory set.
func NewFactories() *Factories {
	return &Factories{factories: make(map[string]Factory)}
}

// Register adds a factory for typ.
func (f *Factories) Register(typ string, factory Factory) error {
	if typ == "" || factory == nil {
		return errors.New("auth: invalid factory registration")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.factories[typ]; exists {
		return fmt.Errorf("auth: factory %q already registered", typ)
	}
	f.factories[typ] = factory
	return nil
}

// Build instantiates one strategy.
func (f *Factories) Build(cfg StrategyConfig, deps Dependencies) (Strategy, error) {
	if cfg.Name == "" {
		cfg.Name = cfg.Type
	}

	f.mu.RLock()
	factory, ok := f.factories[cfg.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: type %q", ErrUnknownStrategy, cfg.Type)
	}

	s, err := factory(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("auth: build strategy %q: %w", cfg.Name, err)
	}
	return s, nil
}

// BuildRegistry builds every configured strategy into a new registry.
func (f *Factories) BuildRegistry(cfgs []StrategyConfig, deps Dependencies) (*Registry, error) {
	reg := NewRegistry()
	for _, cfg := range cfgs {
		s, err := f.Build(cfg, deps)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Types returns registered factory types.
func (f *Factories) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.factories))
	for typ := range f.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// DefaultFactories holds the built-in strategy types.
var DefaultFactories = NewFactories()

func init() {
	_ = DefaultFactories.Register(string(AuthMethodLocal), func(cfg StrategyConfig, deps Dependencies) (Strategy, error) {
		s := NewLocalStrategy(LocalConfig{
			Name:          cfg.Name,
			UsernameField: optString(cfg.Options, "username_field"),
			PasswordField: optString(cfg.Options, "password_field"),
		}, deps.Passwords)
		s.Hooks = deps.Hooks[cfg.Name]
		return s, nil
	})

	_ = DefaultFactories.Register(string(AuthMethodBasic), func(cfg StrategyConfig, deps Dependencies) (Strategy, error) {
		s := NewBasicStrategy(BasicConfig{
			Name:  cfg.Name,
			Realm: optString(cfg.Options, "realm"),
		}, deps.Passwords)
		s.Hooks = deps.Hooks[cfg.Name]
		return s, nil
	})

	_ = DefaultFactories.Register(string(AuthMethodAPIKey), func(cfg StrategyConfig, deps Dependencies) (Strategy, error) {
		store := deps.APIKeys
		if keys, ok := cfg.Options["keys"].([]any); ok {
			mem := NewMemoryAPIKeyStore()
			for _, k := range keys {
				km, ok := k.(map[string]any)
				if !ok {
					continue
				}
				info := &APIKeyInfo{
					ID:        optString(km, "id"),
					KeyHash:   optString(km, "hash"),
					Principal: optString(km, "principal"),
				}
				if info.KeyHash == "" {
					return nil, fmt.Errorf("api key %q: hash is required", info.ID)
				}
				mem.Add(info)
			}
			store = mem
		}
		s := NewAPIKeyStrategy(APIKeyConfig{
			Name:        cfg.Name,
			HeaderNames: optStrings(cfg.Options, "headers"),
			Field:       optString(cfg.Options, "field"),
		}, store)
		s.Hooks = deps.Hooks[cfg.Name]
		return s, nil
	})

	_ = DefaultFactories.Register(string(AuthMethodJWT), func(cfg StrategyConfig, deps Dependencies) (Strategy, error) {
		if deps.Codec == nil {
			return nil, errors.New("token codec is required")
		}
		s := NewBearerStrategy(BearerConfig{
			Name:       cfg.Name,
			HeaderName: optString(cfg.Options, "header_name"),
			Prefix:     optString(cfg.Options, "prefix"),
		}, deps.Codec)
		s.Hooks = deps.Hooks[cfg.Name]
		return s, nil
	})

	_ = DefaultFactories.Register(string(AuthMethodOAuth2), func(cfg StrategyConfig, deps Dependencies) (Strategy, error) {
		provider, ok := deps.OAuthProviders[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("no oauth provider for %q", cfg.Name)
		}
		stateTTL, err := optDuration(cfg.Options, "state_ttl")
		if err != nil {
			return nil, err
		}
		s := NewOAuthStrategy(OAuthConfig{
			Name:     cfg.Name,
			StateTTL: stateTTL,
			States:   deps.OAuthStates,
		}, provider)
		s.Hooks = deps.Hooks[cfg.Name]
		return s, nil
	})

	_ = DefaultFactories.Register(string(AuthMethodTOTP), func(cfg StrategyConfig, deps Dependencies) (Strategy, error) {
		s := NewTOTPStrategy(TOTPConfig{
			Name:        cfg.Name,
			Field:       optString(cfg.Options, "field"),
			HeaderNames: optStrings(cfg.Options, "headers"),
			EnrollURL:   optString(cfg.Options, "enroll_url"),
			SecretField: optString(cfg.Options, "secret_field"),
			Secret:      deps.TOTPSecret,
			Skew:        uint(optInt(cfg.Options, "skew")),
			NoSkew:      hasOpt(cfg.Options, "skew") && optInt(cfg.Options, "skew") == 0,
		})
		s.Hooks = deps.Hooks[cfg.Name]
		return s, nil
	})
}

func hasOpt(opts map[string]any, key string) bool {
	_, ok := opts[key]
	return ok
}

func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

func optStrings(opts map[string]any, key string) []string {
	switch v := opts[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func optDuration(opts map[string]any, key string) (time.Duration, error) {
	switch v := opts[key].(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return d, nil
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("option %s: unsupported type %T", key, v)
	}
}
