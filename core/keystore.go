package core

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	// PrivKeyFile and PubKeyFile hold the node identity as hex on disk.
	PrivKeyFile = "node_secp256k1.priv"
	PubKeyFile  = "node_secp256k1.pub"
)

// GenerateAndSaveKeyPair loads the node keypair from disk if present,
// otherwise generates a new one and persists it. The private key file is
// written 0600.
func GenerateAndSaveKeyPair() (*KeyPair, error) {
	if _, err := os.Stat(PrivKeyFile); err == nil {
		return LoadKeyPair()
	}
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(PrivKeyFile, []byte(hex.EncodeToString(kp.PrivateBytes())), 0600); err != nil {
		return nil, fmt.Errorf("write private key file: %w", err)
	}
	if err := os.WriteFile(PubKeyFile, []byte(hex.EncodeToString(kp.PublicKey())), 0644); err != nil {
		return nil, fmt.Errorf("write public key file: %w", err)
	}
	return kp, nil
}

// LoadKeyPair reads the node keypair from disk.
func LoadKeyPair() (*KeyPair, error) {
	privHex, err := os.ReadFile(PrivKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}
	return ParseKeyPairHex(string(privHex))
}

// ParseKeyPairHex restores a keypair from a hex-encoded private scalar.
func ParseKeyPairHex(privHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privHex))
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not valid hex: %v", ErrInvalidKeyMaterial, err)
	}
	return KeyPairFromBytes(raw)
}
