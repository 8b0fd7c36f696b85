package main

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
)

// requireAPIKey validates the Bearer token in the Authorization header
// before letting a request through.
func requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expectedKey := os.Getenv("API_SECRET_KEY")

		// A missing key locks the server down. 500 rather than 401 makes
		// it obvious during deployment that this is a server
		// misconfiguration, not a bad token.
		if expectedKey == "" {
			http.Error(w, "Server configuration error: API_SECRET_KEY not set", http.StatusInternalServerError)
			return
		}

		authHeader := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		// Constant-time compare: response latency carries no information
		// about how much of the guess was correct.
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedKey)) != 1 {
			http.Error(w, `{"error": "Unauthorized: Invalid or missing API Key"}`, http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}
