package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
)

// KeyProvider retrieves keys for token verification.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a single fixed verification key.
type StaticKeyProvider struct {
	key any
}

// NewStaticKeyProvider creates a static key provider.
// HMAC secrets are []byte; asymmetric keys are public keys.
func NewStaticKeyProvider(key any) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	if p.key == nil {
		return nil, ErrKeyNotFound
	}
	if b, ok := p.key.([]byte); ok && len(b) == 0 {
		return nil, ErrKeyNotFound
	}
	return p.key, nil
}

// verificationKey derives the key that verifies tokens signed with key.
func verificationKey(key any) any {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return &k.PublicKey
	case *ecdsa.PrivateKey:
		return &k.PublicKey
	default:
		return key
	}
}

// Ensure StaticKeyProvider implements KeyProvider
var _ KeyProvider = (*StaticKeyProvider)(nil)
