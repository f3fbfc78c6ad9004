package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"palisade/pkg/domain"
	request "palisade/pkg/platform/middleware/request"
	"palisade/pkg/requestcontext"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// SessionChecker reports whether the session a token points at has been
// revoked. Tokens outlive server-side revocation, so the check runs on every
// authenticated request.
type SessionChecker interface {
	IsSessionRevoked(ctx context.Context, sessionID domain.SessionID) (bool, error)
}

// Claims represents the claims we expect from the token validator.
type Claims struct {
	UserID    domain.UserID
	SessionID domain.SessionID
	Role      domain.Role
	JTI       string
}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) domain.UserID {
	return requestcontext.UserID(ctx)
}

// GetSessionID retrieves the session ID from the context.
func GetSessionID(ctx context.Context) domain.SessionID {
	return requestcontext.SessionID(ctx)
}

// GetRole retrieves the authenticated role from the context.
func GetRole(ctx context.Context) domain.Role {
	return requestcontext.Role(ctx)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token. On success the
// user ID, session ID, and role are stored in the request context.
func RequireAuth(validator TokenValidator, sessions SessionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if after, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				token := after
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					requestID := request.GetRequestID(ctx)
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
					return
				}

				ctx := r.Context()

				if sessions != nil {
					if claims.SessionID.IsZero() {
						requestID := request.GetRequestID(ctx)
						logger.WarnContext(ctx, "unauthorized access - token missing session id",
							"request_id", requestID,
						)
						writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
						return
					}

					revoked, err := sessions.IsSessionRevoked(ctx, claims.SessionID)
					if err != nil {
						requestID := request.GetRequestID(ctx)
						logger.ErrorContext(ctx, "failed to check session revocation",
							"error", err,
							"request_id", requestID,
						)
						writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to validate token")
						return
					}
					if revoked {
						requestID := request.GetRequestID(ctx)
						logger.WarnContext(ctx, "unauthorized access - session revoked",
							"session_id", claims.SessionID.String(),
							"request_id", requestID,
						)
						writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Session has been revoked")
						return
					}
				}

				ctx = requestcontext.WithUserID(ctx, claims.UserID)
				ctx = requestcontext.WithSessionID(ctx, claims.SessionID)
				ctx = requestcontext.WithRole(ctx, claims.Role)

				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", requestID,
			)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
		})
	}
}

// Optional populates auth context when a valid bearer token is present but
// never rejects. Public endpoints use it so the rate limiter can key on the
// user instead of the IP when the client happens to be signed in.
func Optional(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok {
				if claims, err := validator.ValidateToken(after); err == nil {
					ctx := requestcontext.WithUserID(r.Context(), claims.UserID)
					ctx = requestcontext.WithSessionID(ctx, claims.SessionID)
					ctx = requestcontext.WithRole(ctx, claims.Role)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				logger.DebugContext(r.Context(), "optional auth - ignoring invalid token")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows only the listed roles through. Mount after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := requestcontext.Role(r.Context())
			if !allowed[role] {
				ctx := r.Context()
				logger.WarnContext(ctx, "forbidden - role not allowed",
					"role", role.String(),
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
