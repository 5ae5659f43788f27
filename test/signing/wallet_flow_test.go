package signing

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"emochain/core"
	"emochain/core/block"
	"emochain/core/wallet"
)

// Covers the end-to-end signing surface: key generation, address
// derivation, env-loaded wallets, transfer signing, and the key-bound
// verification the submission API relies on.

func TestKeyPairSignAndVerify(t *testing.T) {
	kp, err := core.GenerateKeyPair()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(kp.Address(), core.AddressPrefix))

	payload := []byte("emochain signing payload")
	sig := kp.Sign(payload)

	ok, err := core.Verify(payload, sig, kp.PublicKey())
	require.NoError(t, err)
	require.True(t, ok, "signature should verify under the signing key")

	ok, err = core.Verify([]byte("tampered payload"), sig, kp.PublicKey())
	require.NoError(t, err)
	require.False(t, ok, "tampered payload must not verify")

	other, err := core.GenerateKeyPair()
	require.NoError(t, err)
	ok, err = core.Verify(payload, sig, other.PublicKey())
	require.NoError(t, err)
	require.False(t, ok, "signature must not verify under a different key")
}

func TestEnvWalletRoundTrip(t *testing.T) {
	kp, err := core.GenerateKeyPair()
	require.NoError(t, err)
	t.Setenv(wallet.SignerKeyEnvVar, hex.EncodeToString(kp.PrivateBytes()))

	loader := wallet.EnvWalletLoader{}
	w, err := loader.LoadWallet()
	require.NoError(t, err)
	require.Equal(t, kp.Address(), w.Address())

	payload := []byte("loaded wallet payload")
	sig := w.Sign(payload)
	ok, err := core.Verify(payload, sig, w.PublicKey())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEnvWalletMissingKey(t *testing.T) {
	t.Setenv(wallet.SignerKeyEnvVar, "")
	loader := wallet.EnvWalletLoader{}
	_, err := loader.LoadWallet()
	require.ErrorIs(t, err, wallet.ErrNoWallet)
}

func TestKeyBoundVerifierRejectsForeignKey(t *testing.T) {
	alice, err := core.GenerateKeyPair()
	require.NoError(t, err)
	mallory, err := core.GenerateKeyPair()
	require.NoError(t, err)

	payload := []byte("reading submission payload")
	verifier := &wallet.KeyBoundVerifier{}

	require.True(t, verifier.VerifySignature(payload, alice.Sign(payload), alice.PublicKey(), alice.Address()))

	// Mallory's signature is valid under Mallory's key, but the key does
	// not derive Alice's address.
	require.False(t, verifier.VerifySignature(payload, mallory.Sign(payload), mallory.PublicKey(), alice.Address()))
	require.False(t, verifier.VerifySignature(payload, alice.Sign(payload), alice.PublicKey(), mallory.Address()))
}

func TestSignedTransferLifecycle(t *testing.T) {
	sender, err := core.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := core.GenerateKeyPair()
	require.NoError(t, err)

	tx := block.NewTransfer(sender.Address(), recipient.Address(), 250, 2, nil)
	require.Error(t, tx.IsValid(), "unsigned transfer must not validate")

	require.NoError(t, tx.Sign(sender))
	require.NoError(t, tx.IsValid())
	require.True(t, tx.VerifySignature())

	// Same-key, wrong-sender signing is refused outright.
	foreign := block.NewTransfer(recipient.Address(), sender.Address(), 10, 1, nil)
	require.Error(t, foreign.Sign(sender))

	// Content changes after signing invalidate the transaction.
	tx.Amount = 9_999
	require.ErrorIs(t, tx.IsValid(), block.ErrSignatureInvalid)
}

func TestSealedTransferRefusesResigning(t *testing.T) {
	sender, err := core.GenerateKeyPair()
	require.NoError(t, err)

	tx := block.NewTransfer(sender.Address(), "emo1recipient", 40, 1, nil)
	require.NoError(t, tx.Sign(sender))
	tx.Seal()
	require.ErrorIs(t, tx.Sign(sender), block.ErrTxSealed)
}
