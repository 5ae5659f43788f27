package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ID is a 32-byte SHA-256 digest. Block hashes, transaction IDs and Merkle
// nodes all use this type so the whole chain shares one hash function.
type ID [32]byte

// Empty is the zero-value ID (all zeros). The genesis block links to it.
var Empty ID

// NewID hashes the input bytes into an ID.
func NewID(data []byte) ID {
	hash := sha256.Sum256(data)
	return ID(hash)
}

// FromString parses a 64-char hex string into an ID.
func FromString(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("expected %d hash bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String converts an ID back to a hex string.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsEmpty reports whether the ID is all zeros.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// MarshalText implements encoding.TextMarshaler so IDs serialize as hex
// inside JSON payloads instead of base64 byte arrays.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
