package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Errors returned while resolving secrets.
var (
	ErrMissingEnv      = errors.New("secret: missing environment variables")
	ErrUnknownProvider = errors.New("secret: unknown provider")
	ErrEmptySecret     = errors.New("secret: empty value")
	ErrNotFound        = errors.New("secret: not found")
)

// Provider resolves a reference to its secret value.
//
// Implementations must be safe for concurrent use and must never log the
// values they return.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvProvider resolves references naming environment variables.
type EnvProvider struct {
	// Prefix is prepended to every reference.
	Prefix string
}

// Name returns "env".
func (p EnvProvider) Name() string {
	return "env"
}

// Resolve returns the value of the variable named by ref.
func (p EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(p.Prefix + ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, p.Prefix+ref)
	}
	return v, nil
}

// FileProvider resolves references naming files, as mounted by container
// secret stores.
type FileProvider struct {
	// Dir anchors relative references. Absolute references ignore it.
	Dir string
}

// Name returns "file".
func (p FileProvider) Name() string {
	return "file"
}

// Resolve reads the file named by ref with one trailing newline removed.
func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path := ref
	if !filepath.IsAbs(path) && p.Dir != "" {
		path = filepath.Join(p.Dir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("secret: read %s: %w", path, err)
	}
	s := strings.TrimSuffix(string(b), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// Ensure providers implement Provider
var (
	_ Provider = EnvProvider{}
	_ Provider = FileProvider{}
)
