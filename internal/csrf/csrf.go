// Package csrf implements double-submit cookie CSRF protection for
// cookie-authenticated browser sessions. The server issues a random token
// twice: once in the response body for the client to echo back in a header,
// and once inside an HMAC-signed, http-only cookie. A mutating request is
// accepted only when both tokens exist, match, and the request origin is
// allow-listed.
package csrf

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/secrets"
	"palisade/pkg/requestcontext"
)

const (
	// tokenBytes of entropy per token; hex-encoded to tokenLength chars.
	tokenBytes  = 32
	tokenLength = 64

	defaultTokenLifetime = time.Hour
	defaultCookieName    = "csrf_token"
	defaultHeaderName    = "X-CSRF-Token"

	signingPurpose = "csrf-cookie-signing"
)

// TokenData is an issued token with its validity window. The token itself is
// returned to the client in the response body, never readable from the cookie.
type TokenData struct {
	Token     string    `json:"csrf_token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Config carries the operator-tunable guard settings.
type Config struct {
	TokenLifetime  time.Duration
	CookieName     string
	HeaderName     string
	AllowedOrigins []string
	SigningSecret  string
	CookieSecure   bool
}

// SecurityAuditor records CSRF denials on the durable audit trail.
type SecurityAuditor interface {
	LogSecurityEvent(ctx context.Context, action string, attrs ...any)
}

// Guard validates the double-submit token pair on mutating requests.
type Guard struct {
	lifetime     time.Duration
	cookieName   string
	headerName   string
	cookieSecure bool
	origins      map[string]struct{}
	signer       *signer
	logger       *slog.Logger
	auditor      SecurityAuditor
	metrics      *Metrics
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithSecurityAuditor(auditor SecurityAuditor) Option {
	return func(g *Guard) {
		g.auditor = auditor
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// New creates a Guard. The signing secret and at least one allowed origin
// are required; lifetime and names fall back to defaults.
func New(cfg Config, opts ...Option) (*Guard, error) {
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("at least one allowed origin is required")
	}

	key, err := secrets.DeriveKey([]byte(cfg.SigningSecret), signingPurpose)
	if err != nil {
		return nil, fmt.Errorf("could not derive cookie signing key: %w", err)
	}

	g := &Guard{
		lifetime:     cfg.TokenLifetime,
		cookieName:   cfg.CookieName,
		headerName:   cfg.HeaderName,
		cookieSecure: cfg.CookieSecure,
		origins:      make(map[string]struct{}, len(cfg.AllowedOrigins)),
		signer:       newSigner(key),
		logger:       slog.Default(),
	}
	if g.lifetime <= 0 {
		g.lifetime = defaultTokenLifetime
	}
	if g.cookieName == "" {
		g.cookieName = defaultCookieName
	}
	if g.headerName == "" {
		g.headerName = defaultHeaderName
	}
	for _, origin := range cfg.AllowedOrigins {
		normalized, err := normalizeOrigin(origin)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed origin %q: %w", origin, err)
		}
		g.origins[normalized] = struct{}{}
	}

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Issue mints a fresh token, sets the signed cookie on the response, and
// returns the token for the response body.
func (g *Guard) Issue(ctx context.Context, w http.ResponseWriter) (*TokenData, error) {
	raw, err := secrets.RandomBytes(tokenBytes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate csrf token")
	}

	now := requestcontext.Now(ctx)
	data := &TokenData{
		Token:     hex.EncodeToString(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(g.lifetime),
	}

	value, err := g.signer.sign(cookiePayload{
		Token:     data.Token,
		IssuedAt:  data.IssuedAt.Unix(),
		ExpiresAt: data.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign csrf cookie")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(g.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   g.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})

	if g.metrics != nil {
		g.metrics.RecordIssued()
	}
	return data, nil
}

// Refresh replaces the current token. A refresh is an Issue that happens to
// overwrite an existing cookie; older tokens stop validating immediately
// because the cookie they must match is gone.
func (g *Guard) Refresh(ctx context.Context, w http.ResponseWriter) (*TokenData, error) {
	return g.Issue(ctx, w)
}

// RequiresProtection reports whether a method mutates state and therefore
// needs a valid token pair.
func (g *Guard) RequiresProtection(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Validate runs the ordered token checks against a request. The header
// format check runs before any cookie work, so junk headers are rejected
// without touching cookie parsing or signature verification.
func (g *Guard) Validate(r *http.Request) error {
	header := r.Header.Get(g.headerName)
	if header == "" {
		return &ValidationError{Reason: ReasonMissingToken}
	}
	if !validTokenFormat(header) {
		return &ValidationError{Reason: ReasonMalformedToken}
	}

	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return &ValidationError{Reason: ReasonMissingCookie}
	}
	payload, err := g.signer.verify(cookie.Value)
	if err != nil {
		return &ValidationError{Reason: ReasonBadSignature}
	}
	if !requestcontext.Now(r.Context()).Before(time.Unix(payload.ExpiresAt, 0)) {
		return &ValidationError{Reason: ReasonExpiredToken}
	}

	if subtle.ConstantTimeCompare([]byte(header), []byte(payload.Token)) != 1 {
		return &ValidationError{Reason: ReasonTokenMismatch}
	}

	if !g.originAllowed(r) {
		return &ValidationError{Reason: ReasonBadOrigin}
	}
	return nil
}

// originAllowed checks the Origin header, falling back to the Referer's
// origin when absent. Requests that present neither are denied; a browser
// sending a cookie-authenticated mutation always sends at least one.
func (g *Guard) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		referer := r.Header.Get("Referer")
		if referer == "" {
			return false
		}
		u, err := url.Parse(referer)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		origin = u.Scheme + "://" + u.Host
	}

	normalized, err := normalizeOrigin(origin)
	if err != nil {
		return false
	}
	_, ok := g.origins[normalized]
	return ok
}

// validTokenFormat requires exactly 64 lowercase hex characters, the only
// shape this guard ever issues.
func validTokenFormat(token string) bool {
	if len(token) != tokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func normalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("origin must be scheme://host")
	}
	return u.Scheme + "://" + u.Host, nil
}
