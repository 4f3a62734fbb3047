package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jonwraymond/customs/auth"
)

// Validate checks the configuration, reporting every problem with its
// field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	if _, err := auth.ParseMode(c.Session.Mode); err != nil {
		errs = append(errs, fmt.Errorf("session.mode: %w", err))
	}
	switch c.Session.Store {
	case "memory", "bigcache":
	default:
		errs = append(errs, fmt.Errorf("session.store must be \"memory\" or \"bigcache\", got %q", c.Session.Store))
	}
	if c.Session.Lifetime < 0 || c.Session.IdleTimeout < 0 {
		errs = append(errs, errors.New("session durations must not be negative"))
	}

	names := make([]string, 0, len(c.Strategies))
	types := auth.DefaultFactories.Types()
	for i, s := range c.Strategies {
		name := s.Name
		if name == "" {
			name = s.Type
		}
		if !slices.Contains(types, s.Type) {
			errs = append(errs, fmt.Errorf("strategies[%d].type must be one of %s, got %q", i, strings.Join(types, ", "), s.Type))
		}
		if slices.Contains(names, name) {
			errs = append(errs, fmt.Errorf("strategies[%d]: duplicate name %q", i, name))
		}
		names = append(names, name)

		if s.Type == string(auth.AuthMethodJWT) && c.Token.Secret == "" && c.Token.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("strategies[%d]: jwt needs token.secret or token.jwks_url", i))
		}
		if s.Type == string(auth.AuthMethodOAuth2) && !slices.ContainsFunc(c.OAuth.Providers, func(p OAuthProviderConfig) bool { return p.Name == name }) {
			errs = append(errs, fmt.Errorf("strategies[%d]: no oauth.providers entry named %q", i, name))
		}
	}

	for i, z := range c.Zones {
		if !strings.HasPrefix(z.Prefix, "/") {
			errs = append(errs, fmt.Errorf("zones[%d].prefix must start with /, got %q", i, z.Prefix))
		}
		if len(z.Strategies) == 0 {
			errs = append(errs, fmt.Errorf("zones[%d].strategies is required", i))
		}
		for _, name := range append(slices.Clone(z.Strategies), z.SecondFactor) {
			if name != "" && !slices.Contains(names, name) {
				errs = append(errs, fmt.Errorf("zones[%d]: unknown strategy %q", i, name))
			}
		}
	}

	for i, p := range c.OAuth.Providers {
		switch p.Kind {
		case "", "github":
		case "generic":
			if p.AuthURL == "" || p.TokenURL == "" || p.ProfileURL == "" {
				errs = append(errs, fmt.Errorf("oauth.providers[%d]: generic providers need auth_url, token_url and profile_url", i))
			}
		default:
			errs = append(errs, fmt.Errorf("oauth.providers[%d].kind must be \"github\" or \"generic\", got %q", i, p.Kind))
		}
		if p.ClientID == "" {
			errs = append(errs, fmt.Errorf("oauth.providers[%d].client_id is required", i))
		}
	}
	if err := c.OAuth.Resilience.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("oauth.resilience: %w", err))
	}

	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}

	return errors.Join(errs...)
}
