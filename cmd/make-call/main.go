package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/extractoseum/voice-agent/pkg/auth"
	"github.com/extractoseum/voice-agent/pkg/utils"
)

// make-call places an outbound call through the internal API. It mints
// its own access token from JWT_SECRET, so it must run with the same
// secret as the server.
func main() {
	baseURL := flag.String("api", envOr("API_URL", "http://localhost:8080"), "voice agent base URL")
	to := flag.String("to", "", "phone number to call (E.164 or local Mexican format)")
	flag.Parse()

	if *to == "" {
		log.Fatal("usage: make-call -to +5215512345678 [-api http://localhost:8080]")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required to mint an access token")
	}
	issuer := envOr("JWT_ISSUER", "extractoseum-voice")
	audience := envOr("JWT_AUDIENCE", "voice-internal-api")

	phone := utils.NormalizePhone(*to)
	if !utils.ValidateE164(phone) {
		log.Fatalf("%q does not normalize to an E.164 number", *to)
	}

	token, expiresAt, err := auth.GenerateAccessToken(
		"make-call-cli", "ops@extractoseum.com", "admin",
		secret, issuer, audience, 5,
	)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	payload, err := json.Marshal(map[string]string{"to": phone})
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, *baseURL+"/api/v1/calls", bytes.NewBuffer(payload))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	fmt.Printf("POST %s/api/v1/calls -> %d (token valid until %s)\n",
		*baseURL, resp.StatusCode, expiresAt.Format(time.RFC3339))

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Println(string(body))
		return
	}

	if resp.StatusCode == http.StatusCreated {
		fmt.Printf("Call placed: call_sid=%v status=%v\n", result["call_sid"], result["status"])
		return
	}

	fmt.Printf("Call not placed: %s\n", string(body))
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
