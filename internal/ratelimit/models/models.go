package models

import (
	"time"

	"github.com/google/uuid"

	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
// Each class keeps an independent counter, so exhausting one budget never
// consumes another.
type EndpointClass string

const (
	// ClassAuth: Authentication endpoints - /auth/login, /auth/refresh
	ClassAuth EndpointClass = "auth"
	// ClassAPI: General authenticated API traffic
	ClassAPI EndpointClass = "api"
	// ClassSensitive: Sensitive operations - profile changes, user management
	ClassSensitive EndpointClass = "sensitive"
	// ClassPublic: Public read endpoints - product catalog, health
	ClassPublic EndpointClass = "public"
	// ClassOrder: Order submission
	ClassOrder EndpointClass = "order"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassAuth, ClassAPI, ClassSensitive, ClassPublic, ClassOrder:
		return true
	}
	return false
}

// String returns the string representation.
func (c EndpointClass) String() string {
	return string(c)
}

// ParseEndpointClass creates an EndpointClass from a string, validating it.
// Returns error if the class is empty or not one of the allowed values.
func ParseEndpointClass(s string) (EndpointClass, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "endpoint class cannot be empty")
	}
	c := EndpointClass(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid endpoint class")
	}
	return c, nil
}

// IdentifierTier records how a request was identified for limiting.
type IdentifierTier string

const (
	TierUser      IdentifierTier = "user"
	TierIP        IdentifierTier = "ip"
	TierAnonymous IdentifierTier = "anonymous"
)

// Identifier is the subject a rate limit counter is keyed on. Authenticated
// requests identify by user ID, unauthenticated ones by client IP, and
// requests with neither share a single anonymous bucket.
type Identifier struct {
	Tier  IdentifierTier `json:"tier"`
	Value string         `json:"value"`
}

// UserIdentifier builds an identifier for an authenticated user.
func UserIdentifier(userID id.UserID) Identifier {
	return Identifier{Tier: TierUser, Value: userID.String()}
}

// IPIdentifier builds an identifier for a client IP. An empty IP degrades to
// the anonymous tier.
func IPIdentifier(ip string) Identifier {
	if ip == "" || ip == "unknown" {
		return AnonymousIdentifier()
	}
	return Identifier{Tier: TierIP, Value: ip}
}

// AnonymousIdentifier builds the shared identifier for requests with no
// usable identity.
func AnonymousIdentifier() Identifier {
	return Identifier{Tier: TierAnonymous, Value: "anonymous"}
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitStatus is the observed counter state for one identifier and
// class, used by the operational endpoints.
type RateLimitStatus struct {
	Identifier    Identifier    `json:"identifier"`
	EndpointClass EndpointClass `json:"endpoint_class"`
	Count         int           `json:"count"`
	Limit         int           `json:"limit"`
	Remaining     int           `json:"remaining"`
	ResetAt       *time.Time    `json:"reset_at,omitempty"`
}

// RateLimitViolation represents a recorded rate limit violation for audit.
type RateLimitViolation struct {
	ID            string        `json:"id"`
	Identifier    string        `json:"identifier"`
	Tier          string        `json:"tier"`
	EndpointClass EndpointClass `json:"endpoint_class"`
	Limit         int           `json:"limit"`
	WindowSeconds int           `json:"window_seconds"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewRateLimitViolation creates a RateLimitViolation with domain invariant validation.
func NewRateLimitViolation(identifier Identifier, class EndpointClass, limit, windowSeconds int, occurredAt time.Time) (*RateLimitViolation, error) {
	if identifier.Value == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identifier cannot be empty")
	}
	if !class.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid endpoint class")
	}
	if limit <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "limit must be positive")
	}
	if windowSeconds <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "window_seconds must be positive")
	}

	return &RateLimitViolation{
		ID:            uuid.NewString(),
		Identifier:    identifier.Value,
		Tier:          string(identifier.Tier),
		EndpointClass: class,
		Limit:         limit,
		WindowSeconds: windowSeconds,
		OccurredAt:    occurredAt,
	}, nil
}
