package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/devgenius/artifact-gateway/internal/auth"
)

type clientKey struct{}

// AuthMiddleware rejects requests without a valid API key and stores the
// authenticated client in the request context.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				writeAuthError(w, err.Error())
				return
			}
			c, err := authenticator.ValidateAPIKey(apiKey)
			if err != nil {
				writeAuthError(w, "Invalid API key")
				return
			}
			AddLogField(r.Context(), "client", c.Description)
			ctx := context.WithValue(r.Context(), clientKey{}, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClient returns the authenticated client, or nil when auth is disabled.
func GetClient(ctx context.Context) *auth.Client {
	if c, ok := ctx.Value(clientKey{}).(*auth.Client); ok {
		return c
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": msg},
	})
}
