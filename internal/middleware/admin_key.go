package middleware

import (
	"net/http"
	"strings"

	"trust_gateway/internal/auth"
	"trust_gateway/internal/utils"
)

// RequireAdminKey guards operator endpoints with the configured admin key.
// The key is presented in the X-Admin-Key header or as a Bearer token. An
// empty configured hash locks the endpoints entirely.
func RequireAdminKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Admin-Key")
			if key == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					key = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if key == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing admin key")
				return
			}

			if !auth.VerifyAdminKey(keyHash, key) {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid admin key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
