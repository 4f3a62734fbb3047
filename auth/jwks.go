package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// JWKSConfig configures the JWKS key provider.
type JWKSConfig struct {
	// URL is the JWKS endpoint URL.
	URL string

	// CacheTTL is how long fetched keys are trusted before a refresh.
	// Default: 1 hour
	CacheTTL time.Duration

	// HTTPClient is used for fetches.
	// Default: a client with a 30s timeout
	HTTPClient *http.Client

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// JWKSKeyProvider verifies externally issued tokens with keys published at
// a JWKS endpoint. RSA and EC (P-256/P-384/P-521) keys are supported.
//
// Concurrent refreshes are collapsed into one fetch. When a refresh fails,
// keys from the last successful fetch keep being served.
type JWKSKeyProvider struct {
	config JWKSConfig

	mu        sync.RWMutex
	keys      map[string]any
	fetchedAt time.Time
	group     singleflight.Group
}

// NewJWKSKeyProvider creates a new JWKS key provider.
func NewJWKSKeyProvider(config JWKSConfig) *JWKSKeyProvider {
	if config.CacheTTL == 0 {
		config.CacheTTL = time.Hour
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &JWKSKeyProvider{
		config: config,
		keys:   make(map[string]any),
	}
}

// GetKey returns the key for keyID. An empty keyID matches the only key
// when exactly one is published.
func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	if key, fresh := p.lookup(keyID); key != nil && fresh {
		return key, nil
	}

	refreshErr := p.Refresh(ctx)

	key, _ := p.lookup(keyID)
	if key != nil {
		return key, nil
	}
	if refreshErr != nil {
		return nil, refreshErr
	}
	return nil, ErrKeyNotFound
}

// Refresh fetches the key set now.
func (p *JWKSKeyProvider) Refresh(ctx context.Context) error {
	_, err, _ := p.group.Do("refresh", func() (any, error) {
		keys, err := p.fetch(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		for kid, key := range keys {
			p.keys[kid] = key
		}
		p.fetchedAt = p.config.Now()
		p.mu.Unlock()
		return nil, nil
	})
	return err
}

// Len returns the number of cached keys.
func (p *JWKSKeyProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys)
}

func (p *JWKSKeyProvider) lookup(keyID string) (key any, fresh bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	fresh = !p.fetchedAt.IsZero() && p.config.Now().Sub(p.fetchedAt) < p.config.CacheTTL
	if keyID != "" {
		return p.keys[keyID], fresh
	}
	if len(p.keys) == 1 {
		for _, k := range p.keys {
			return k, fresh
		}
	}
	return nil, fresh
}

func (p *JWKSKeyProvider) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("jwks: create request: %w", err)
	}
	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: unexpected status: %d", resp.StatusCode)
	}

	var set struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("jwks: decode: %w", err)
	}

	keys := make(map[string]any, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		key, err := jwk.publicKey()
		if err != nil {
			continue
		}
		keys[jwk.Kid] = key
	}
	return keys, nil
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Crv string `json:"crv"`
	N   string `json:"n"`
	E   string `json:"e"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func (k jsonWebKey) publicKey() (any, error) {
	switch k.Kty {
	case "RSA":
		n, err := decodeBigInt(k.N)
		if err != nil {
			return nil, fmt.Errorf("decode n: %w", err)
		}
		e, err := decodeBigInt(k.E)
		if err != nil {
			return nil, fmt.Errorf("decode e: %w", err)
		}
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
	case "EC":
		var curve elliptic.Curve
		switch k.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("unsupported curve %q", k.Crv)
		}
		x, err := decodeBigInt(k.X)
		if err != nil {
			return nil, fmt.Errorf("decode x: %w", err)
		}
		y, err := decodeBigInt(k.Y)
		if err != nil {
			return nil, fmt.Errorf("decode y: %w", err)
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}

func decodeBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("missing parameter")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// Ensure JWKSKeyProvider implements KeyProvider
var _ KeyProvider = (*JWKSKeyProvider)(nil)
