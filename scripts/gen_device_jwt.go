package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"emochain/core/auth"
)

// Dev utility for the device attestation flow.
//
//	go run ./scripts genkeys          writes device_issuer.pem + device_issuer_private.pem
//	go run ./scripts <private.pem>    mints a device token signed by that key
//
// CHAIN_ID, DEVICE_ID, and DEVICE_ISSUER_KID override the defaults.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s genkeys | %s <device_issuer_private.pem>", os.Args[0], os.Args[0])
	}
	if os.Args[1] == "genkeys" {
		generateIssuerKeys()
		return
	}

	privPem, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	block, _ := pem.Decode(privPem)
	if block == nil {
		log.Fatalf("Failed to decode PEM block from %s", os.Args[1])
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		log.Fatal(err)
	}
	privKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		log.Fatal("Not an RSA private key")
	}

	claims := auth.DeviceClaims{
		ChainID: envOr("CHAIN_ID", "emochain-dev"),
		Roles:   []string{auth.RoleReadingSubmitter},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   envOr("DEVICE_ID", "wearable-007"),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = envOr("DEVICE_ISSUER_KID", "dev-1")
	signed, err := token.SignedString(privKey)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("JWT:", signed)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func generateIssuerKeys() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatal(err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		log.Fatal(err)
	}
	privPem := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile("device_issuer_private.pem", privPem, 0600); err != nil {
		log.Fatal(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		log.Fatal(err)
	}
	pubPem := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile("device_issuer.pem", pubPem, 0644); err != nil {
		log.Fatal(err)
	}
	log.Println("Wrote device_issuer.pem and device_issuer_private.pem")
}
