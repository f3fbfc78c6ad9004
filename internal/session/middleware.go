package session

import (
	"net/http"

	"palisade/pkg/requestcontext"
)

// TrackActivity signals user activity to the session's manager. Mount it
// after authentication so the session ID is already on the context; requests
// without one pass through untouched.
func TrackActivity(registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessionID := requestcontext.SessionID(r.Context()); !sessionID.IsZero() {
				registry.Touch(r.Context(), sessionID)
			}
			next.ServeHTTP(w, r)
		})
	}
}
