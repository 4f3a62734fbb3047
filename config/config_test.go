package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/customs/secret"
)

const sampleYAML = `
server:
  addr: ":9090"
  read_timeout: 5s
  unauthorized_redirect: /login
session:
  store: bigcache
  idle_timeout: 10m
  max_entries: 5000
token:
  secret: secretref:env:CUSTOMS_TEST_SIGNING_KEY
  issuer: customs
  ttl: 15m
strategies:
  - type: local
  - type: basic
    options:
      realm: customs
  - type: jwt
  - name: github
    type: oauth2
    options:
      state_ttl: 5m
  - type: totp
    options:
      enroll_url: /enable_authenticator
zones:
  - prefix: /api
    strategies: [jwt, basic]
  - prefix: /protected
    strategies: [local]
    second_factor: totp
    redirect: /login
oauth:
  providers:
    - name: github
      client_id: abc
      client_secret: ${CUSTOMS_TEST_GH_SECRET}
      redirect_url: http://localhost:9090/oauth/github/callback
  resilience:
    timeout: 2s
    retry:
      max_attempts: 4
observability:
  service_name: customs-test
  logging:
    enabled: true
    level: debug
users:
  database: /tmp/customs-test.db
`

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "session", cfg.Session.Mode)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "HS256", cfg.Token.Algorithm)
	assert.Equal(t, time.Hour, cfg.Token.TTL)
	assert.Equal(t, 3, cfg.OAuth.Resilience.Retry.MaxAttempts)
	assert.Equal(t, "customs.db", cfg.Users.Database)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndSecrets(t *testing.T) {
	t.Setenv("CUSTOMS_TEST_SIGNING_KEY", "signing-key")
	t.Setenv("CUSTOMS_TEST_GH_SECRET", "gh-secret")
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, "bigcache", cfg.Session.Store)
	assert.Equal(t, 5000, cfg.Session.MaxEntries)
	assert.Equal(t, "signing-key", cfg.Token.Secret)
	assert.Equal(t, 15*time.Minute, cfg.Token.TTL)

	require.Len(t, cfg.Strategies, 5)
	assert.Equal(t, "customs", cfg.Strategies[1].Options["realm"])
	assert.Equal(t, "github", cfg.Strategies[3].Name)

	require.Len(t, cfg.Zones, 2)
	assert.Equal(t, []string{"jwt", "basic"}, cfg.Zones[0].Strategies)
	assert.Equal(t, "totp", cfg.Zones[1].SecondFactor)

	require.Len(t, cfg.OAuth.Providers, 1)
	assert.Equal(t, "gh-secret", cfg.OAuth.Providers[0].ClientSecret)
	assert.Equal(t, 2*time.Second, cfg.OAuth.Resilience.Timeout)
	assert.Equal(t, 4, cfg.OAuth.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.OAuth.Resilience.CircuitBreaker.MaxFailures)

	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, "/tmp/customs-test.db", cfg.Users.Database)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CUSTOMS_TEST_SIGNING_KEY", "from-file")
	t.Setenv("CUSTOMS_TEST_GH_SECRET", "x")
	t.Setenv("CUSTOMS_ADDR", ":7070")
	t.Setenv("CUSTOMS_SESSION_MODE", "stateless")
	t.Setenv("CUSTOMS_SESSION_SECURE", "true")
	t.Setenv("CUSTOMS_TOKEN_SECRET", "secretref:env:CUSTOMS_TEST_OVERRIDE_KEY")
	t.Setenv("CUSTOMS_TEST_OVERRIDE_KEY", "from-env")
	t.Setenv("CUSTOMS_TOKEN_TTL", "2h")

	cfg, err := Load(context.Background(), writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "stateless", cfg.Session.Mode)
	assert.True(t, cfg.Session.Secure)
	assert.Equal(t, "from-env", cfg.Token.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Token.TTL)
}

func TestLoad_Discovery(t *testing.T) {
	t.Setenv("CUSTOMS_TEST_SIGNING_KEY", "k")
	t.Setenv("CUSTOMS_TEST_GH_SECRET", "x")
	t.Setenv("CUSTOMS_CONFIG", writeConfig(t, sampleYAML))

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing file",
			setup:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			wantErr: "loading config file",
		},
		{
			name:    "bad yaml",
			setup:   func(t *testing.T) string { return writeConfig(t, "server: [") },
			wantErr: "loading config file",
		},
		{
			name: "unresolvable secret",
			setup: func(t *testing.T) string {
				return writeConfig(t, "token:\n  secret: secretref:env:CUSTOMS_TEST_DEFINITELY_UNSET\n")
			},
			wantErr: "token.secret",
		},
		{
			name: "bad duration env",
			setup: func(t *testing.T) string {
				t.Setenv("CUSTOMS_TOKEN_TTL", "soon")
				return writeConfig(t, "{}")
			},
			wantErr: "CUSTOMS_TOKEN_TTL",
		},
		{
			name:    "invalid",
			setup:   func(t *testing.T) string { return writeConfig(t, "session:\n  store: redis\n") },
			wantErr: "session.store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.setup(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "bad mode",
			yaml:    "session:\n  mode: cookie\n",
			wantErr: []string{"session.mode"},
		},
		{
			name:    "unknown strategy type",
			yaml:    "strategies:\n  - type: saml\n",
			wantErr: []string{"strategies[0].type"},
		},
		{
			name:    "duplicate names",
			yaml:    "strategies:\n  - type: local\n  - name: local\n    type: basic\n",
			wantErr: []string{"duplicate name \"local\""},
		},
		{
			name:    "jwt without key",
			yaml:    "strategies:\n  - type: jwt\n",
			wantErr: []string{"token.secret or token.jwks_url"},
		},
		{
			name:    "oauth without provider",
			yaml:    "strategies:\n  - type: oauth2\n",
			wantErr: []string{"no oauth.providers entry"},
		},
		{
			name: "zone problems",
			yaml: "strategies:\n  - type: local\nzones:\n  - prefix: api\n    strategies: [local]\n    second_factor: totp\n  - prefix: /x\n",
			wantErr: []string{
				"zones[0].prefix",
				"unknown strategy \"totp\"",
				"zones[1].strategies is required",
			},
		},
		{
			name:    "generic provider",
			yaml:    "oauth:\n  providers:\n    - name: idp\n      kind: generic\n",
			wantErr: []string{"auth_url, token_url and profile_url", "client_id is required"},
		},
		{
			name:    "bad backoff",
			yaml:    "oauth:\n  resilience:\n    retry:\n      backoff: random\n",
			wantErr: []string{"oauth.resilience"},
		},
		{
			name:    "bad log level",
			yaml:    "observability:\n  logging:\n    level: loud\n",
			wantErr: []string{"observability"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)

			err = cfg.Validate()
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestResolveSecrets_FileProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gh"), []byte("file-secret\n"), 0o600))

	cfg, err := Parse([]byte("oauth:\n  providers:\n    - name: github\n      client_id: id\n      client_secret: secretref:file:gh\n"))
	require.NoError(t, err)

	require.NoError(t, cfg.ResolveSecrets(context.Background(), secret.NewResolver(secret.FileProvider{Dir: dir})))
	assert.Equal(t, "file-secret", cfg.OAuth.Providers[0].ClientSecret)
	assert.Equal(t, "id", cfg.OAuth.Providers[0].ClientID)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
