// Package requesttime provides middleware for request-scoped time.
// All operations within a single HTTP request observe the same "now", which
// keeps rate-limit windows, session checks, and audit timestamps consistent
// across one request.
package requesttime

import (
	"net/http"
	"time"

	"palisade/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context for consistent time references throughout the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		ctx := requestcontext.WithTime(r.Context(), now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
