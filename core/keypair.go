package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidKeyMaterial is returned when key bytes are structurally invalid
// (wrong length or not a point on the curve). Malformed *signatures* do not
// raise it; signature verification fails closed instead.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

const (
	// AddressPrefix marks every EmoChain wallet address.
	AddressPrefix = "emo1"

	// PrivateKeySize is the secp256k1 scalar length in bytes.
	PrivateKeySize = 32

	// CompressedPubKeySize and UncompressedPubKeySize are the two
	// acceptable public key encodings.
	CompressedPubKeySize   = 33
	UncompressedPubKeySize = 65

	addressBodyBytes = 20
)

// KeyPair holds a validator or wallet signing identity. The private scalar
// stays inside this struct and is never serialized into chain payloads.
type KeyPair struct {
	priv *secp256k1.PrivateKey
}

// GenerateKeyPair creates a fresh keypair from the system CSPRNG.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromBytes restores a keypair from a raw 32-byte private scalar.
func KeyPairFromBytes(privBytes []byte) (*KeyPair, error) {
	if len(privBytes) != PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d",
			ErrInvalidKeyMaterial, PrivateKeySize, len(privBytes))
	}
	return &KeyPair{priv: secp256k1.PrivKeyFromBytes(privBytes)}, nil
}

// PublicKey returns the 33-byte compressed public point.
func (kp *KeyPair) PublicKey() []byte {
	return kp.priv.PubKey().SerializeCompressed()
}

// PrivateBytes exposes the raw scalar for the keystore only. Callers must
// not place the result in any transaction or block payload.
func (kp *KeyPair) PrivateBytes() []byte {
	return kp.priv.Serialize()
}

// Address derives the wallet address for this keypair. Pure function of the
// public key: two calls always return the same string.
func (kp *KeyPair) Address() string {
	addr, _ := AddressFromPublicKey(kp.PublicKey())
	return addr
}

// AddressFromPublicKey maps a serialized public key to its address:
// AddressPrefix plus the hex of the first 20 bytes of SHA-256(pubkey).
func AddressFromPublicKey(pubKey []byte) (string, error) {
	if len(pubKey) != CompressedPubKeySize && len(pubKey) != UncompressedPubKeySize {
		return "", fmt.Errorf("%w: public key must be %d or %d bytes, got %d",
			ErrInvalidKeyMaterial, CompressedPubKeySize, UncompressedPubKeySize, len(pubKey))
	}
	if _, err := secp256k1.ParsePubKey(pubKey); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	sum := sha256.Sum256(pubKey)
	return AddressPrefix + hex.EncodeToString(sum[:addressBodyBytes]), nil
}

// Sign produces a deterministic (RFC6979) DER-encoded ECDSA signature over
// SHA-256 of the message.
func (kp *KeyPair) Sign(message []byte) []byte {
	hash := sha256.Sum256(message)
	return secpecdsa.Sign(kp.priv, hash[:]).Serialize()
}

// Verify checks a DER signature over SHA-256(message) against a serialized
// public key. A malformed signature returns (false, nil): verification
// fails closed. Structurally invalid key material returns
// ErrInvalidKeyMaterial so callers can distinguish operator error from a
// forged signature.
func Verify(message, sig, pubKey []byte) (bool, error) {
	if len(pubKey) != CompressedPubKeySize && len(pubKey) != UncompressedPubKeySize {
		return false, fmt.Errorf("%w: public key must be %d or %d bytes, got %d",
			ErrInvalidKeyMaterial, CompressedPubKeySize, UncompressedPubKeySize, len(pubKey))
	}
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	parsed, err := secpecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, nil
	}
	hash := sha256.Sum256(message)
	return parsed.Verify(hash[:], pub), nil
}
