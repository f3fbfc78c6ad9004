package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	t.Run("mints cookie when absent", func(t *testing.T) {
		var gotID, gotFP string
		h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = GetDeviceID(r.Context())
			gotFP = GetDeviceFingerprint(r.Context())
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, gotID)
		_, err := uuid.Parse(gotID)
		assert.NoError(t, err)
		assert.Len(t, gotFP, 64, "fingerprint is hex sha256")

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, CookieName, c.Name)
		assert.Equal(t, gotID, c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	})

	t.Run("reuses existing cookie", func(t *testing.T) {
		existing := uuid.NewString()
		var gotID string
		h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = GetDeviceID(r.Context())
		}))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: existing})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, existing, gotID)
		assert.Empty(t, w.Result().Cookies(), "no new cookie set")
	})

	t.Run("replaces malformed cookie", func(t *testing.T) {
		var gotID string
		h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = GetDeviceID(r.Context())
		}))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-uuid"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.NotEqual(t, "not-a-uuid", gotID)
		require.Len(t, w.Result().Cookies(), 1)
	})
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("dev-1", "Mozilla/5.0", "en-US")
	b := Fingerprint("dev-1", "Mozilla/5.0", "en-US")
	assert.Equal(t, a, b, "deterministic")

	c := Fingerprint("dev-1", "curl/8.0", "en-US")
	assert.NotEqual(t, a, c, "user agent changes fingerprint")

	// Field boundaries matter: moving a character across the separator must
	// change the hash.
	d := Fingerprint("dev-1x", "", "")
	e := Fingerprint("dev-1", "x", "")
	assert.NotEqual(t, d, e)
}
