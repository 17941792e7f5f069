package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"insightstox/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	log     = logrus.New()
	baseURL = "http://localhost:8080"
	token   string
)

func main() {
	_ = godotenv.Load()
	if v := os.Getenv("E2E_BASE_URL"); v != "" {
		baseURL = v
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required to mint a test token")
	}
	email := fmt.Sprintf("e2e-%d@insightstox.test", time.Now().Unix())
	token = mint(secret, email)

	// Wait for server to start
	time.Sleep(2 * time.Second)

	checkEndpoint("GET", "/health", nil, 200)

	// empty portfolio
	checkEndpoint("GET", "/api/portfolio/summary", nil, 200)
	checkEndpoint("GET", "/api/portfolio/fundamentals", nil, 404)

	// buy, then oversell, then sell down to zero
	checkEndpoint("POST", "/api/transactions", map[string]interface{}{"symbol": "INFY.NS", "quantity": "10", "type": "BUY"}, 201)
	checkEndpoint("POST", "/api/transactions", map[string]interface{}{"symbol": "INFY.NS", "quantity": "11", "type": "SELL"}, 400)
	checkEndpoint("POST", "/api/transactions", map[string]interface{}{"symbol": "INFY.NS", "quantity": "10", "type": "SELL"}, 201)

	checkEndpoint("GET", "/api/portfolio/holdings", nil, 200)
	checkEndpoint("GET", "/api/portfolio/transactions", nil, 200)
	checkEndpoint("GET", "/api/portfolio/summary", nil, 200)
	checkEndpoint("GET", "/api/dashboard/stocks", nil, 200)
	checkEndpoint("GET", "/api/portfolio/fundamentals", nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func mint(secret, email string) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	return s
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
}
