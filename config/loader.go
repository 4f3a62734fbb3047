package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/customs/secret"
)

// Load builds the configuration from defaults, the YAML file, CUSTOMS_*
// environment variables and secret references, then validates it.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Defaults()

	if path = discoverConfigFile(path); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.ResolveSecrets(ctx, secret.NewResolver()); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// Parse decodes YAML over the defaults without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func discoverConfigFile(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("CUSTOMS_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat("customs.yaml"); err == nil {
		return "customs.yaml"
	}
	return ""
}

// loadYAMLFile decodes path over cfg; absent keys keep their defaults.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"CUSTOMS_ADDR":          &cfg.Server.Addr,
		"CUSTOMS_SESSION_MODE":  &cfg.Session.Mode,
		"CUSTOMS_SESSION_STORE": &cfg.Session.Store,
		"CUSTOMS_TOKEN_SECRET":  &cfg.Token.Secret,
		"CUSTOMS_TOKEN_ISSUER":  &cfg.Token.Issuer,
		"CUSTOMS_JWKS_URL":      &cfg.Token.JWKSURL,
		"CUSTOMS_USERS_DB":      &cfg.Users.Database,
		"CUSTOMS_LOG_LEVEL":     &cfg.Observability.Logging.Level,
	}
	for name, field := range strs {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"CUSTOMS_TOKEN_TTL":        &cfg.Token.TTL,
		"CUSTOMS_SESSION_LIFETIME": &cfg.Session.Lifetime,
	}
	for name, field := range durations {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field = d
	}

	if v := os.Getenv("CUSTOMS_SESSION_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CUSTOMS_SESSION_SECURE: %w", err)
		}
		cfg.Session.Secure = b
	}
	return nil
}

// ResolveSecrets replaces secret references in key material with their
// values.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	fields := map[string]*string{
		"token.secret":   &c.Token.Secret,
		"token.jwks_url": &c.Token.JWKSURL,
	}
	for i := range c.OAuth.Providers {
		p := &c.OAuth.Providers[i]
		fields[fmt.Sprintf("oauth.providers[%d].client_id", i)] = &p.ClientID
		fields[fmt.Sprintf("oauth.providers[%d].client_secret", i)] = &p.ClientSecret
	}
	return r.ResolveAll(ctx, fields)
}
