// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"taskplane/internal/auth"
	"taskplane/pkg/api"
)

// RequireAPIKey rejects requests whose X-API-Key header does not match the
// configured key. A verifier without a key lets every request through.
func RequireAPIKey(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(api.APIKeyHeader)
			if key == "" {
				unauthorized(w, "Missing API key")
				return
			}
			if !v.Verify(key) {
				unauthorized(w, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(api.ErrorResponse{
		Error: msg,
		Code:  strconv.Itoa(http.StatusUnauthorized),
	})
}
