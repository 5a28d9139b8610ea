package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Assamir/kiro-demo-sub001/pkg/problem"
)

// SimpleAPIKey guards the back-office API with a shared key. Auth is an
// external collaborator's concern; this is the thin wiring for it.
func SimpleAPIKey(apiKey string) func(http.Handler) http.Handler {
	apiKeyBytes := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health probes stay open.
			if strings.HasPrefix(r.URL.Path, "/health") ||
				strings.HasPrefix(r.URL.Path, "/readyz") {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(key), apiKeyBytes) != 1 {
				problem.Write(w, http.StatusUnauthorized, "Unauthorized", "Invalid or missing API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
