package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Minimal light client: posts a pre-signed reading envelope (see
// cmd/genreading) to a running node. DEVICE_TOKEN and API_JWT_SECRET come
// from the environment; the envelope file defaults to signed_reading.json.
func main() {
	deviceToken := os.Getenv("DEVICE_TOKEN")
	if deviceToken == "" {
		fmt.Println("DEVICE_TOKEN not set in environment")
		os.Exit(1)
	}

	apiJwtSecret := os.Getenv("API_JWT_SECRET")
	if apiJwtSecret == "" {
		fmt.Println("API_JWT_SECRET not set in environment")
		os.Exit(1)
	}

	nodeURL := os.Getenv("NODE_URL")
	if nodeURL == "" {
		nodeURL = "http://localhost:8080"
	}
	envelopePath := "signed_reading.json"
	if len(os.Args) > 1 {
		envelopePath = os.Args[1]
	}

	jsonData, err := os.ReadFile(envelopePath)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", envelopePath, err)
		os.Exit(1)
	}

	req, err := http.NewRequest("POST", nodeURL+"/api/v1/submit-reading", bytes.NewBuffer(jsonData))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiJwtSecret)
	req.Header.Set("X-Device-Token", deviceToken)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println("Status:", resp.Status)
	fmt.Println("Response:", string(body))
}
