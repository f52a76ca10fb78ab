package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"bling-mirror/pkg/apierror"
	"bling-mirror/pkg/response"
)

// AdminKey protects admin routes with a static key sent as X-API-Key or as a
// bearer token. An empty key disables the check.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				response.Error(w, r, apierror.Unauthorized("Authentication required. Use X-API-Key header."))
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) != 1 {
				response.Error(w, r, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
