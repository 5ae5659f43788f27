package auth

import (
	"crypto/rsa"
	"fmt"
)

// KeyProvider resolves the verification key for a token by key ID, so
// issuer keys can rotate without invalidating tokens signed by the
// previous key.
type KeyProvider interface {
	GetPublicKey(kid string) (any, error)
}

// StaticKeyProvider serves RSA public keys from a fixed map, loaded at
// startup from the issuer's published key set.
type StaticKeyProvider struct {
	Keys map[string]*rsa.PublicKey
}

func (p *StaticKeyProvider) GetPublicKey(kid string) (any, error) {
	if key, ok := p.Keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("no verification key for kid %q", kid)
}
