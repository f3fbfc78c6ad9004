// Package request assigns every request a correlation ID. Inbound X-Request-ID
// values from clients are accepted when well-formed so IDs survive proxy
// hops; otherwise a fresh UUID is generated. The ID is echoed on the
// response and stored in the context for log and audit correlation.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"palisade/pkg/requestcontext"
)

// HeaderRequestID is the correlation header read from and written to.
const HeaderRequestID = "X-Request-ID"

// Middleware ensures every request carries a request ID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if !validID(requestID) {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

// validID bounds inbound IDs so hostile clients cannot inject log noise.
// Accepts 1-64 characters drawn from [A-Za-z0-9._-].
func validID(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
