package wallet

import (
	"fmt"
	"os"

	"emochain/core"
)

// SignerKeyEnvVar holds the hex-encoded private key for the node signer.
const SignerKeyEnvVar = "EMOCHAIN_SIGNER_PRIVKEY"

// EnvWalletLoader loads the signing key from the environment.
type EnvWalletLoader struct{}

func (l *EnvWalletLoader) LoadWallet() (*Wallet, error) {
	privHex := os.Getenv(SignerKeyEnvVar)
	if privHex == "" {
		return nil, fmt.Errorf("%w: %s not set in environment", ErrNoWallet, SignerKeyEnvVar)
	}
	kp, err := core.ParseKeyPairHex(privHex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SignerKeyEnvVar, err)
	}
	return &Wallet{KeyPair: kp}, nil
}
