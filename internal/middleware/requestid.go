package middleware

import (
	"context"
	"net/http"
	"regexp"

	"bling-mirror/internal/logging"
	"bling-mirror/pkg/uid"
)

// Client ids end up in logs and error bodies, so only short token-like
// values are trusted.
var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID takes the caller's X-Request-ID when it looks like an id, or
// generates one, echoes it back and scopes the request logger to it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if !requestIDRe.MatchString(requestID) {
			requestID = uid.New()
		}

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	return logging.RequestID(ctx)
}
