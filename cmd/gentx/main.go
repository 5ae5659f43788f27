package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"emochain/core/block"
	"emochain/core/wallet"
)

// Builds and signs a transfer with the wallet key from
// EMOCHAIN_SIGNER_PRIVKEY, ready for emocli submit or a direct POST to
// /api/cli/submit-transfer.
//
// Usage: gentx <to> <amount> [fee] [outfile]
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: gentx <to> <amount> [fee] [outfile]")
		os.Exit(1)
	}
	to := os.Args[1]
	amount, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || amount <= 0 {
		fmt.Fprintf(os.Stderr, "invalid amount %q\n", os.Args[2])
		os.Exit(1)
	}
	fee := int64(1)
	if len(os.Args) > 3 {
		fee, err = strconv.ParseInt(os.Args[3], 10, 64)
		if err != nil || fee < 0 {
			fmt.Fprintf(os.Stderr, "invalid fee %q\n", os.Args[3])
			os.Exit(1)
		}
	}

	var loader wallet.WalletLoader = &wallet.EnvWalletLoader{}
	if path := os.Getenv("EMOCHAIN_WALLET_FILE"); path != "" {
		loader = &wallet.FileWalletLoader{Path: path}
	}
	w, err := loader.LoadWallet()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load wallet:", err)
		fmt.Fprintln(os.Stderr, "Set EMOCHAIN_SIGNER_PRIVKEY to the sender's private key hex (see genwallet), or EMOCHAIN_WALLET_FILE to a key file path.")
		os.Exit(1)
	}

	tx := block.NewTransfer(w.Address(), to, amount, fee, nil)
	if err := tx.Sign(w.KeyPair); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to sign transfer:", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to encode transfer:", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "From:   %s\n", tx.From)
	fmt.Fprintf(os.Stderr, "To:     %s\n", tx.To)
	fmt.Fprintf(os.Stderr, "Amount: %d (fee %d)\n", tx.Amount, tx.Fee)
	fmt.Fprintf(os.Stderr, "TxID:   %s\n", tx.ID())

	fmt.Println(string(out))
	if len(os.Args) > 4 {
		if err := os.WriteFile(os.Args[4], out, 0644); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to write file:", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Wrote", os.Args[4])
	}
}
