package middleware

import (
	"net/http"
	"runtime/debug"

	"bling-mirror/internal/logging"
	"bling-mirror/pkg/apierror"
	"bling-mirror/pkg/response"
)

// Recovery is a middleware that recovers from panics.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log := logging.Ctx(r.Context())
				log.Error().
					Interface("panic", err).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Msg("PANIC")

				response.Error(w, r, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
