package main

import (
	"encoding/hex"
	"fmt"

	"emochain/core"
)

func main() {
	kp, err := core.GenerateKeyPair()
	if err != nil {
		panic(err)
	}
	fmt.Printf("Address: %s\n", kp.Address())
	fmt.Printf("Public Key (hex): %s\n", hex.EncodeToString(kp.PublicKey()))
	fmt.Printf("Private Key (hex): %s\n", hex.EncodeToString(kp.PrivateBytes()))
}
