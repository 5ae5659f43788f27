package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"os"
)

// DEKEnvVar names the environment variable holding the data encryption
// key: 32 bytes, base64-encoded. Blocks carry biometric attestation
// snapshots, so everything written to disk is encrypted at rest.
const DEKEnvVar = "EMOCHAIN_DEK"

// getDEK retrieves the data encryption key from the environment.
func getDEK() ([]byte, error) {
	dekB64 := os.Getenv(DEKEnvVar)
	if dekB64 == "" {
		return nil, errors.New(DEKEnvVar + " not set in environment")
	}
	dek, err := base64.StdEncoding.DecodeString(dekB64)
	if err != nil {
		return nil, errors.New("failed to decode " + DEKEnvVar + ": " + err.Error())
	}
	if len(dek) != 32 {
		return nil, errors.New(DEKEnvVar + " must be 32 bytes (base64-encoded)")
	}
	return dek, nil
}

// Encrypt seals plaintext with AES-256-GCM under a random nonce. The nonce
// is prepended to the ciphertext.
func Encrypt(plaintext []byte) ([]byte, error) {
	dek, err := getDEK()
	if err != nil {
		return nil, err
	}
	blockCipher, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens an AES-256-GCM ciphertext produced by Encrypt.
func Decrypt(ciphertext []byte) ([]byte, error) {
	dek, err := getDEK()
	if err != nil {
		return nil, err
	}
	blockCipher, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ct, nil)
}
