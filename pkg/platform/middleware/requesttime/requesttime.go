// Package requesttime provides middleware for request-scoped time.
// Every decision taken while serving one request (registration window checks,
// accepted-at stamps) observes the same "now".
package requesttime

import (
	"net/http"
	"time"

	"registrar/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock.
func MiddlewareWithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
