package request

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	t.Run("generates ID when absent", func(t *testing.T) {
		var captured string
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, captured)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err, "generated IDs are UUIDs")
		assert.Equal(t, captured, w.Header().Get(HeaderRequestID), "ID echoed on response")
	})

	t.Run("preserves well-formed inbound ID", func(t *testing.T) {
		var captured string
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderRequestID, "edge-7f3a.21")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, "edge-7f3a.21", captured)
		assert.Equal(t, "edge-7f3a.21", w.Header().Get(HeaderRequestID))
	})

	t.Run("replaces hostile inbound ID", func(t *testing.T) {
		tests := []string{
			"id with spaces",
			"id\nnewline",
			strings.Repeat("x", 65),
			`{"json":"payload"}`,
		}
		for _, inbound := range tests {
			var captured string
			h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(HeaderRequestID, inbound)
			h.ServeHTTP(httptest.NewRecorder(), r)

			assert.NotEqual(t, inbound, captured)
			_, err := uuid.Parse(captured)
			assert.NoError(t, err)
		}
	})
}
