// Package config loads the customs server configuration.
//
// Configuration is layered:
//  1. Built-in defaults
//  2. YAML file (explicit path, CUSTOMS_CONFIG, ./customs.yaml)
//  3. CUSTOMS_* environment overrides
//  4. Secret resolution for key material (${ENV}, secretref:env:NAME,
//     secretref:file:/path)
//  5. Validation
package config

import (
	"time"

	"github.com/jonwraymond/customs/auth"
	"github.com/jonwraymond/customs/observe"
	"github.com/jonwraymond/customs/resilience"
)

// Config is the complete server configuration.
type Config struct {
	Server        ServerConfig          `yaml:"server"`
	Session       SessionConfig         `yaml:"session"`
	Token         TokenConfig           `yaml:"token"`
	Strategies    []auth.StrategyConfig `yaml:"strategies"`
	Zones         []ZoneConfig          `yaml:"zones"`
	OAuth         OAuthConfig           `yaml:"oauth"`
	Observability observe.Config        `yaml:"observability"`
	Users         UsersConfig           `yaml:"users"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // default: ":8080"
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s

	// UnauthorizedRedirect sends unauthenticated browsers here instead of
	// answering 401.
	UnauthorizedRedirect string `yaml:"unauthorized_redirect"`
}

// SessionConfig holds session settings.
type SessionConfig struct {
	Mode        string        `yaml:"mode"`         // "session" or "stateless", default: "session"
	CookieName  string        `yaml:"cookie_name"`  // default: "customs_session"
	Secure      bool          `yaml:"secure"`       // HTTPS-only cookie
	IdleTimeout time.Duration `yaml:"idle_timeout"` // default: 30m
	Lifetime    time.Duration `yaml:"lifetime"`     // default: 744h
	Store       string        `yaml:"store"`        // "memory" or "bigcache", default: "memory"
	MaxEntries  int           `yaml:"max_entries"`  // capacity alarm for the health check, 0 disables
}

// TokenConfig holds bearer token settings.
type TokenConfig struct {
	Algorithm string        `yaml:"algorithm"` // default: "HS256"
	Secret    string        `yaml:"secret"`    // HMAC key; accepts secret references
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	TTL       time.Duration `yaml:"ttl"`    // default: 1h
	Leeway    time.Duration `yaml:"leeway"` // clock skew allowance
	JWKSURL   string        `yaml:"jwks_url"`
}

// ZoneConfig protects every route under Prefix.
type ZoneConfig struct {
	Prefix       string   `yaml:"prefix"`
	Strategies   []string `yaml:"strategies"`
	SecondFactor string   `yaml:"second_factor"`
	Redirect     string   `yaml:"redirect"`
}

// OAuthConfig holds OAuth provider settings.
type OAuthConfig struct {
	Providers  []OAuthProviderConfig `yaml:"providers"`
	Resilience resilience.Config     `yaml:"resilience"`
}

// OAuthProviderConfig configures one provider. Name matches the oauth2
// strategy it backs.
type OAuthProviderConfig struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"` // "github" or "generic", default: "github"
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	ProfileURL   string   `yaml:"profile_url"`
}

// UsersConfig holds the user database settings.
type UsersConfig struct {
	Database string `yaml:"database"` // sqlite path, default: "customs.db"
}

// Defaults returns a Config with every default applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			Mode:        auth.ModeSession.String(),
			CookieName:  "customs_session",
			IdleTimeout: 30 * time.Minute,
			Lifetime:    31 * 24 * time.Hour,
			Store:       "memory",
		},
		Token: TokenConfig{
			Algorithm: "HS256",
			TTL:       time.Hour,
		},
		OAuth: OAuthConfig{
			Resilience: resilience.Config{
				Timeout: 10 * time.Second,
				Retry: resilience.RetrySettings{
					MaxAttempts: 3,
					BaseDelay:   200 * time.Millisecond,
					MaxDelay:    2 * time.Second,
					Backoff:     "exponential",
				},
				CircuitBreaker: resilience.CircuitBreakerSettings{
					MaxFailures:  5,
					ResetTimeout: 30 * time.Second,
				},
			},
		},
		Observability: observe.Config{
			ServiceName: "customs",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
		Users: UsersConfig{Database: "customs.db"},
	}
}
