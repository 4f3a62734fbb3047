package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// mapProvider is a fixed set of secrets.
type mapProvider map[string]string

func (mapProvider) Name() string { return "map" }

func (p mapProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p[ref]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in           string
		wantProvider string
		wantRef      string
		wantOK       bool
	}{
		{"secretref:env:SIGNING_KEY", "env", "SIGNING_KEY", true},
		{"secretref:file:/run/secrets/key", "file", "/run/secrets/key", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"secretref:env", "", "", false},
		{"Bearer secretref:env:X", "", "", false},
		{"plain", "", "", false},
	}
	for _, tt := range tests {
		provider, ref, ok := ParseRef(tt.in)
		if provider != tt.wantProvider || ref != tt.wantRef || ok != tt.wantOK {
			t.Errorf("ParseRef(%q) = %q, %q, %v", tt.in, provider, ref, ok)
		}
	}
}

func TestResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "signing-key")
	if err := os.WriteFile(keyFile, []byte("file-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CUSTOMS_TEST_CLIENT_SECRET", "env-secret")
	t.Setenv("CUSTOMS_TEST_DIR", dir)

	r := NewResolver()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"literal", "plain-value", "plain-value"},
		{"env ref", "secretref:env:CUSTOMS_TEST_CLIENT_SECRET", "env-secret"},
		{"file ref", "secretref:file:" + keyFile, "file-key"},
		{"file ref after expansion", "secretref:file:${CUSTOMS_TEST_DIR}/signing-key", "file-key"},
		{"inline", "Bearer secretref:env:CUSTOMS_TEST_CLIENT_SECRET", "Bearer env-secret"},
		{"two inline", "id=secretref:env:CUSTOMS_TEST_CLIENT_SECRET key=secretref:file:" + keyFile, "id=env-secret key=file-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_Errors(t *testing.T) {
	t.Setenv("CUSTOMS_TEST_BLANK", "")
	r := NewResolver()
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"missing env var", "${CUSTOMS_TEST_UNSET_VAR}", ErrMissingEnv},
		{"unknown provider", "secretref:vault:kv/key", ErrUnknownProvider},
		{"unset env ref", "secretref:env:CUSTOMS_TEST_UNSET_VAR", ErrNotFound},
		{"missing file", "secretref:file:" + filepath.Join(t.TempDir(), "nope"), ErrNotFound},
		{"empty value", "secretref:env:CUSTOMS_TEST_BLANK", ErrEmptySecret},
		{"inline failure", "Bearer secretref:vault:x", ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Resolve(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.want)
			}
		})
	}

	r.AllowEmpty = true
	if got, err := r.Resolve(context.Background(), "secretref:env:CUSTOMS_TEST_BLANK"); err != nil || got != "" {
		t.Errorf("AllowEmpty Resolve() = %q, %v", got, err)
	}
}

func TestResolver_Nil(t *testing.T) {
	t.Setenv("CUSTOMS_TEST_X", "x")
	var r *Resolver
	got, err := r.Resolve(context.Background(), "${CUSTOMS_TEST_X} secretref:env:Y")
	if err != nil || got != "x secretref:env:Y" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}
}

func TestResolver_ResolveAll(t *testing.T) {
	r := NewResolver(mapProvider{"jwt": "s3cret", "gh": "client"})
	key, client, blank := "secretref:map:jwt", "secretref:map:gh", ""

	err := r.ResolveAll(context.Background(), map[string]*string{
		"token.secret":        &key,
		"oauth.client_secret": &client,
		"token.jwks_url":      &blank,
		"unset":               nil,
	})
	if err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	if key != "s3cret" || client != "client" || blank != "" {
		t.Errorf("fields = %q %q %q", key, client, blank)
	}

	bad := "secretref:map:missing"
	err = r.ResolveAll(context.Background(), map[string]*string{"token.secret": &bad})
	if !errors.Is(err, ErrNotFound) || bad != "secretref:map:missing" {
		t.Errorf("ResolveAll() error = %v, field = %q", err, bad)
	}
}
