package wallet

import (
	"errors"

	"emochain/core"
)

// ErrNoWallet means the configured key source had no usable key.
var ErrNoWallet = errors.New("no wallet available")

// Wallet wraps the signing identity a node uses to author transactions and
// propose blocks.
type Wallet struct {
	KeyPair *core.KeyPair
}

// Address returns the account address derived from the wallet's public key.
func (w *Wallet) Address() string {
	return w.KeyPair.Address()
}

// PublicKey returns the compressed public key bytes.
func (w *Wallet) PublicKey() []byte {
	return w.KeyPair.PublicKey()
}

// Sign signs an arbitrary payload with the wallet key.
func (w *Wallet) Sign(payload []byte) []byte {
	return w.KeyPair.Sign(payload)
}

// WalletLoader resolves a signing wallet from a key source. Loaders never
// cache: each call re-reads the source so key rotation takes effect on the
// next load.
type WalletLoader interface {
	LoadWallet() (*Wallet, error)
}
