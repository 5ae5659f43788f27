package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"emochain/core/wallet"
)

// Emits a signed biometric reading submission envelope for testing the
// /api/v1/submit-reading endpoint. The signing key comes from
// EMOCHAIN_SIGNER_PRIVKEY; an optional first argument writes the envelope
// to a file instead of stdout only.
func main() {
	var loader wallet.WalletLoader = &wallet.EnvWalletLoader{}
	if path := os.Getenv("EMOCHAIN_WALLET_FILE"); path != "" {
		loader = &wallet.FileWalletLoader{Path: path}
	}
	w, err := loader.LoadWallet()
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(os.Stderr, "Signer address: %s\n", w.Address())

	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		deviceID = "wearable-007"
	}

	record := map[string]interface{}{
		"walletAddress": w.Address(),
		"deviceId":      deviceID,
		"schemaVersion": "1.0",
		"capturedAt":    time.Now().UTC().Format(time.RFC3339),
		"reading": map[string]interface{}{
			"heartRate":    72.0,
			"stressLevel":  25.0,
			"focusLevel":   85.0,
			"authenticity": 0.95,
		},
	}

	// Sign the canonical record serialization, exactly the bytes the node
	// recomputes server-side.
	payloadBytes, err := json.Marshal(record)
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(os.Stderr, "RECORD JSON TO SIGN: %s\n", string(payloadBytes))
	sig := w.Sign(payloadBytes)
	fmt.Fprintf(os.Stderr, "SIGNATURE (base64): %s\n", base64.StdEncoding.EncodeToString(sig))

	envelope := map[string]interface{}{
		"record":        record,
		"walletAddress": w.Address(),
		"publicKey":     hex.EncodeToString(w.PublicKey()),
		"signature":     base64.StdEncoding.EncodeToString(sig),
	}

	finalJSON, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(finalJSON))

	if len(os.Args) > 1 {
		if err := os.WriteFile(os.Args[1], finalJSON, 0644); err != nil {
			panic(err)
		}
	}
}
