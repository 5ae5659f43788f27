package wallet

import (
	"emochain/core"
)

// SignatureVerifier checks that a payload was signed by the owner of the
// claimed wallet address.
type SignatureVerifier interface {
	VerifySignature(payload, signature, pubKey []byte, walletAddr string) bool
}

// KeyBoundVerifier verifies a secp256k1 signature and binds the supplied
// public key to the claimed address. A signature that verifies under a key
// deriving a different address is rejected, so valid signatures cannot be
// replayed against another account.
type KeyBoundVerifier struct{}

func (v *KeyBoundVerifier) VerifySignature(payload, signature, pubKey []byte, walletAddr string) bool {
	addr, err := core.AddressFromPublicKey(pubKey)
	if err != nil || addr != walletAddr {
		return false
	}
	ok, err := core.Verify(payload, signature, pubKey)
	return err == nil && ok
}
