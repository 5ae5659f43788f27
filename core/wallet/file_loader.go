package wallet

import (
	"fmt"
	"os"

	"emochain/core"
)

// FileWalletLoader loads the signing key from a hex key file on disk. With
// an empty Path it falls back to the node keystore default, generating a
// fresh identity on first run.
type FileWalletLoader struct {
	Path string
}

func (l *FileWalletLoader) LoadWallet() (*Wallet, error) {
	if l.Path == "" {
		kp, err := core.GenerateAndSaveKeyPair()
		if err != nil {
			return nil, err
		}
		return &Wallet{KeyPair: kp}, nil
	}
	privHex, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read key file %s: %v", ErrNoWallet, l.Path, err)
	}
	kp, err := core.ParseKeyPairHex(string(privHex))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", l.Path, err)
	}
	return &Wallet{KeyPair: kp}, nil
}
