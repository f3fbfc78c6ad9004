package csrf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/pkg/requestcontext"
)

const testOrigin = "https://app.example.com"

func newTestGuard(t *testing.T, opts ...Option) *Guard {
	t.Helper()
	g, err := New(Config{
		SigningSecret:  "test-master-secret",
		AllowedOrigins: []string{testOrigin},
	}, opts...)
	require.NoError(t, err)
	return g
}

// issueToken issues a token at the given instant and returns it with the
// signed cookie that was set.
func issueToken(t *testing.T, g *Guard, at time.Time) (*TokenData, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	data, err := g.Issue(requestcontext.WithTime(context.Background(), at), rec)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return data, cookies[0]
}

// mutatingRequest builds a POST carrying whichever validation factors the
// test supplies. Empty token, nil cookie, or empty origin leaves that factor
// off the request.
func mutatingRequest(token string, cookie *http.Cookie, origin string, at time.Time) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	if token != "" {
		req.Header.Set(defaultHeaderName, token)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}

func TestNew(t *testing.T) {
	t.Run("requires signing secret", func(t *testing.T) {
		_, err := New(Config{AllowedOrigins: []string{testOrigin}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signing secret")
	})

	t.Run("requires allowed origins", func(t *testing.T) {
		_, err := New(Config{SigningSecret: "secret"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "allowed origin")
	})

	t.Run("rejects malformed origins", func(t *testing.T) {
		_, err := New(Config{
			SigningSecret:  "secret",
			AllowedOrigins: []string{"not-an-origin"},
		})
		require.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		g := newTestGuard(t)
		assert.Equal(t, defaultTokenLifetime, g.lifetime)
		assert.Equal(t, defaultCookieName, g.cookieName)
		assert.Equal(t, defaultHeaderName, g.headerName)
	})

	t.Run("normalizes allowed origins", func(t *testing.T) {
		g, err := New(Config{
			SigningSecret:  "secret",
			AllowedOrigins: []string{"HTTPS://App.Example.COM/"},
		})
		require.NoError(t, err)
		_, ok := g.origins[testOrigin]
		assert.True(t, ok)
	})
}

func TestIssue(t *testing.T) {
	g := newTestGuard(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, cookie := issueToken(t, g, issuedAt)

	t.Run("token is 64 hex characters", func(t *testing.T) {
		assert.Len(t, data.Token, tokenLength)
		assert.True(t, validTokenFormat(data.Token))
	})

	t.Run("validity window is the configured lifetime", func(t *testing.T) {
		assert.Equal(t, issuedAt, data.IssuedAt)
		assert.Equal(t, issuedAt.Add(time.Hour), data.ExpiresAt)
	})

	t.Run("cookie attributes", func(t *testing.T) {
		assert.Equal(t, defaultCookieName, cookie.Name)
		assert.True(t, cookie.HttpOnly, "cookie must not be script-readable")
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		assert.Equal(t, "/", cookie.Path)
		assert.Equal(t, 3600, cookie.MaxAge)
		assert.False(t, cookie.Secure, "secure flag follows config")
	})

	t.Run("cookie payload matches the issued token", func(t *testing.T) {
		payload, err := g.signer.verify(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, data.Token, payload.Token)
		assert.Equal(t, issuedAt.Unix(), payload.IssuedAt)
	})

	t.Run("secure flag from config", func(t *testing.T) {
		secureGuard, err := New(Config{
			SigningSecret:  "secret",
			AllowedOrigins: []string{testOrigin},
			CookieSecure:   true,
		})
		require.NoError(t, err)
		_, secureCookie := issueToken(t, secureGuard, issuedAt)
		assert.True(t, secureCookie.Secure)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		other, _ := issueToken(t, g, issuedAt)
		assert.NotEqual(t, data.Token, other.Token)
	})
}

func TestRequiresProtection(t *testing.T) {
	g := newTestGuard(t)

	protected := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	for _, method := range protected {
		assert.True(t, g.RequiresProtection(method), method)
	}

	safe := []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	for _, method := range safe {
		assert.False(t, g.RequiresProtection(method), method)
	}
}

func TestValidate(t *testing.T) {
	g := newTestGuard(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, cookie := issueToken(t, g, issuedAt)

	t.Run("accepts a valid token pair", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, testOrigin, issuedAt.Add(time.Minute))
		assert.NoError(t, g.Validate(req))
	})

	// Flipping any single factor of a previously valid request must deny it.
	t.Run("denies when one factor flips", func(t *testing.T) {
		later := issuedAt.Add(time.Minute)
		otherToken, _ := issueToken(t, g, issuedAt)

		req := mutatingRequest(otherToken.Token, cookie, testOrigin, later)
		assert.Equal(t, ReasonTokenMismatch, ReasonOf(g.Validate(req)), "flipped header")

		req = mutatingRequest(data.Token, nil, testOrigin, later)
		assert.Equal(t, ReasonMissingCookie, ReasonOf(g.Validate(req)), "flipped cookie")

		req = mutatingRequest(data.Token, cookie, "https://evil.example.com", later)
		assert.Equal(t, ReasonBadOrigin, ReasonOf(g.Validate(req)), "flipped origin")
	})
}

func TestValidate_HeaderFormat(t *testing.T) {
	g := newTestGuard(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, cookie := issueToken(t, g, issuedAt)
	later := issuedAt.Add(time.Minute)

	t.Run("missing header", func(t *testing.T) {
		req := mutatingRequest("", cookie, testOrigin, later)
		assert.Equal(t, ReasonMissingToken, ReasonOf(g.Validate(req)))
	})

	t.Run("short junk token", func(t *testing.T) {
		req := mutatingRequest("abc", cookie, testOrigin, later)
		assert.Equal(t, ReasonMalformedToken, ReasonOf(g.Validate(req)))
	})

	t.Run("wrong length", func(t *testing.T) {
		req := mutatingRequest(strings.Repeat("a", 63), cookie, testOrigin, later)
		assert.Equal(t, ReasonMalformedToken, ReasonOf(g.Validate(req)))
	})

	t.Run("non hex characters", func(t *testing.T) {
		req := mutatingRequest(strings.Repeat("g", tokenLength), cookie, testOrigin, later)
		assert.Equal(t, ReasonMalformedToken, ReasonOf(g.Validate(req)))
	})

	t.Run("uppercase hex is not what this guard issues", func(t *testing.T) {
		req := mutatingRequest(strings.Repeat("A", tokenLength), cookie, testOrigin, later)
		assert.Equal(t, ReasonMalformedToken, ReasonOf(g.Validate(req)))
	})

	// The format check runs before any cookie work: a junk header is
	// reported as malformed even when the cookie would have failed its own
	// checks afterwards.
	t.Run("format rejection is independent of cookie state", func(t *testing.T) {
		garbage := &http.Cookie{Name: defaultCookieName, Value: "garbage-that-fails-verification"}
		req := mutatingRequest("abc", garbage, testOrigin, later)
		assert.Equal(t, ReasonMalformedToken, ReasonOf(g.Validate(req)))

		req = mutatingRequest("abc", nil, testOrigin, later)
		assert.Equal(t, ReasonMalformedToken, ReasonOf(g.Validate(req)))
	})
}

func TestValidate_Cookie(t *testing.T) {
	g := newTestGuard(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, cookie := issueToken(t, g, issuedAt)
	later := issuedAt.Add(time.Minute)

	t.Run("unsigned cookie value", func(t *testing.T) {
		forged := &http.Cookie{Name: defaultCookieName, Value: "no-signature-here"}
		req := mutatingRequest(data.Token, forged, testOrigin, later)
		assert.Equal(t, ReasonBadSignature, ReasonOf(g.Validate(req)))
	})

	t.Run("tampered payload", func(t *testing.T) {
		payloadPart, macPart, ok := strings.Cut(cookie.Value, ".")
		require.True(t, ok)
		tampered := &http.Cookie{
			Name:  defaultCookieName,
			Value: flipChar(payloadPart) + "." + macPart,
		}
		req := mutatingRequest(data.Token, tampered, testOrigin, later)
		assert.Equal(t, ReasonBadSignature, ReasonOf(g.Validate(req)))
	})

	t.Run("cookie signed with a different key", func(t *testing.T) {
		otherGuard, err := New(Config{
			SigningSecret:  "a-different-master-secret",
			AllowedOrigins: []string{testOrigin},
		})
		require.NoError(t, err)
		otherData, otherCookie := issueToken(t, otherGuard, issuedAt)

		req := mutatingRequest(otherData.Token, otherCookie, testOrigin, later)
		assert.Equal(t, ReasonBadSignature, ReasonOf(g.Validate(req)))
	})
}

func TestValidate_Expiry(t *testing.T) {
	g := newTestGuard(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, cookie := issueToken(t, g, issuedAt)

	t.Run("valid just inside the lifetime", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, testOrigin, issuedAt.Add(59*time.Minute))
		assert.NoError(t, g.Validate(req))
	})

	t.Run("expired exactly at the lifetime boundary", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, testOrigin, issuedAt.Add(time.Hour))
		assert.Equal(t, ReasonExpiredToken, ReasonOf(g.Validate(req)))
	})

	t.Run("expired past the lifetime", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, testOrigin, issuedAt.Add(2*time.Hour))
		assert.Equal(t, ReasonExpiredToken, ReasonOf(g.Validate(req)))
	})
}

func TestValidate_Origin(t *testing.T) {
	g := newTestGuard(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, cookie := issueToken(t, g, issuedAt)
	later := issuedAt.Add(time.Minute)

	t.Run("referer origin fallback", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, "", later)
		req.Header.Set("Referer", testOrigin+"/orders/new")
		assert.NoError(t, g.Validate(req))
	})

	t.Run("disallowed referer", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, "", later)
		req.Header.Set("Referer", "https://evil.example.com/orders/new")
		assert.Equal(t, ReasonBadOrigin, ReasonOf(g.Validate(req)))
	})

	t.Run("neither origin nor referer", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, "", later)
		assert.Equal(t, ReasonBadOrigin, ReasonOf(g.Validate(req)))
	})

	t.Run("origin matching ignores case and trailing slash", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, "HTTPS://APP.Example.com/", later)
		assert.NoError(t, g.Validate(req))
	})

	t.Run("origin with different port", func(t *testing.T) {
		req := mutatingRequest(data.Token, cookie, testOrigin+":8443", later)
		assert.Equal(t, ReasonBadOrigin, ReasonOf(g.Validate(req)))
	})
}

func TestRefresh(t *testing.T) {
	g := newTestGuard(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, _ := issueToken(t, g, issuedAt)

	rec := httptest.NewRecorder()
	refreshed, err := g.Refresh(requestcontext.WithTime(context.Background(), issuedAt.Add(30*time.Minute)), rec)
	require.NoError(t, err)
	require.Len(t, rec.Result().Cookies(), 1)
	newCookie := rec.Result().Cookies()[0]

	assert.NotEqual(t, data.Token, refreshed.Token, "refresh must mint a new token")

	// The old token no longer matches the replaced cookie.
	req := mutatingRequest(data.Token, newCookie, testOrigin, issuedAt.Add(31*time.Minute))
	assert.Equal(t, ReasonTokenMismatch, ReasonOf(g.Validate(req)))

	req = mutatingRequest(refreshed.Token, newCookie, testOrigin, issuedAt.Add(31*time.Minute))
	assert.NoError(t, g.Validate(req))
}

// flipChar changes the first character to a different base64url character so
// the string decodes differently but stays well-formed.
func flipChar(s string) string {
	if s == "" {
		return s
	}
	replacement := byte('A')
	if s[0] == 'A' {
		replacement = 'B'
	}
	return string(replacement) + s[1:]
}
