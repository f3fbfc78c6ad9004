package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/pkg/domain"
)

type fakeValidator struct {
	claims *Claims
	err    error
}

func (f *fakeValidator) ValidateToken(string) (*Claims, error) {
	return f.claims, f.err
}

type fakeSessionChecker struct {
	revoked bool
	err     error
	calls   int
}

func (f *fakeSessionChecker) IsSessionRevoked(context.Context, domain.SessionID) (bool, error) {
	f.calls++
	return f.revoked, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validClaims() *Claims {
	return &Claims{
		UserID:    domain.NewUserID(),
		SessionID: domain.NewSessionID(),
		Role:      domain.RoleCustomer,
		JTI:       "jti-1",
	}
}

func TestRequireAuth(t *testing.T) {
	t.Run("missing header rejected", func(t *testing.T) {
		h := RequireAuth(&fakeValidator{claims: validClaims()}, nil, discardLogger())(okHandler())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		h := RequireAuth(&fakeValidator{claims: validClaims()}, nil, discardLogger())(okHandler())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		h := RequireAuth(&fakeValidator{err: errors.New("expired")}, nil, discardLogger())(okHandler())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest())

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token populates context", func(t *testing.T) {
		claims := validClaims()
		var gotUser domain.UserID
		var gotSession domain.SessionID
		var gotRole domain.Role
		h := RequireAuth(&fakeValidator{claims: claims}, nil, discardLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
				gotSession = GetSessionID(r.Context())
				gotRole = GetRole(r.Context())
			}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest())

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, claims.UserID, gotUser)
		assert.Equal(t, claims.SessionID, gotSession)
		assert.Equal(t, claims.Role, gotRole)
	})

	t.Run("revoked session rejected", func(t *testing.T) {
		checker := &fakeSessionChecker{revoked: true}
		h := RequireAuth(&fakeValidator{claims: validClaims()}, checker, discardLogger())(okHandler())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest())

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 1, checker.calls)
		assert.Contains(t, w.Body.String(), "revoked")
	})

	t.Run("revocation check failure is server error", func(t *testing.T) {
		checker := &fakeSessionChecker{err: errors.New("redis down")}
		h := RequireAuth(&fakeValidator{claims: validClaims()}, checker, discardLogger())(okHandler())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest())

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("token without session id rejected when checker configured", func(t *testing.T) {
		claims := validClaims()
		claims.SessionID = domain.SessionID{}
		checker := &fakeSessionChecker{}
		h := RequireAuth(&fakeValidator{claims: claims}, checker, discardLogger())(okHandler())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest())

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, checker.calls, "revocation store not consulted for malformed claims")
	})
}

func TestOptional(t *testing.T) {
	t.Run("invalid token passes through anonymously", func(t *testing.T) {
		var gotUser domain.UserID
		h := Optional(&fakeValidator{err: errors.New("bad")}, discardLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
			}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, gotUser.IsZero())
	})

	t.Run("valid token populates context", func(t *testing.T) {
		claims := validClaims()
		var gotUser domain.UserID
		h := Optional(&fakeValidator{claims: claims}, discardLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
			}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, bearerRequest())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, claims.UserID, gotUser)
	})

	t.Run("no header passes through anonymously", func(t *testing.T) {
		h := Optional(&fakeValidator{claims: validClaims()}, discardLogger())(okHandler())

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	claims := validClaims()
	claims.Role = domain.RoleCustomer

	chain := func(roles ...domain.Role) http.Handler {
		return RequireAuth(&fakeValidator{claims: claims}, nil, discardLogger())(
			RequireRole(discardLogger(), roles...)(okHandler()))
	}

	t.Run("allowed role passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		chain(domain.RoleCustomer, domain.RoleAdmin).ServeHTTP(w, bearerRequest())
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disallowed role forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		chain(domain.RoleAdmin).ServeHTTP(w, bearerRequest())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func bearerRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer token-under-test")
	return r
}
