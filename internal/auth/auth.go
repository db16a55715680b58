// Package auth validates API keys against configured SHA-256 hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/devgenius/artifact-gateway/internal/config"
)

// Client identifies the holder of a valid key.
type Client struct {
	KeyHash     string
	Description string
}

// Authenticator validates API keys.
type Authenticator struct {
	clients map[string]*Client // keyhash -> client
}

// NewAuthenticator returns nil when keys is empty, which disables auth.
func NewAuthenticator(keys []config.APIKeyConfig) *Authenticator {
	if len(keys) == 0 {
		return nil
	}
	a := &Authenticator{clients: make(map[string]*Client, len(keys))}
	for _, k := range keys {
		h := strings.ToLower(strings.TrimSpace(k.KeyHash))
		a.clients[h] = &Client{KeyHash: h, Description: k.Description}
	}
	return a
}

// ValidateAPIKey returns the client owning apiKey.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Client, error) {
	keyHash := HashAPIKey(apiKey)

	c, ok := a.clients[keyHash]
	if !ok {
		return nil, fmt.Errorf("invalid API key")
	}
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(c.KeyHash)) != 1 {
		return nil, fmt.Errorf("invalid API key")
	}
	return c, nil
}

// ExtractAPIKey reads a bearer token from the Authorization header, falling
// back to X-API-Key.
func ExtractAPIKey(r *http.Request) (string, error) {
	if key := r.Header.Get("X-API-Key"); key != "" && r.Header.Get("Authorization") == "" {
		return key, nil
	}
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}
	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
