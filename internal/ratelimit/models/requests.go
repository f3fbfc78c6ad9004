package models

import (
	"strings"

	dErrors "palisade/pkg/domain-errors"
)

// IsValid checks if the identifier tier is one of the supported enum values.
func (t IdentifierTier) IsValid() bool {
	switch t {
	case TierUser, TierIP, TierAnonymous:
		return true
	}
	return false
}

type ResetRateLimitRequest struct {
	Tier       IdentifierTier `json:"tier"`
	Identifier string         `json:"identifier"`
	Class      EndpointClass  `json:"class,omitempty"` // optional: specific endpoint class to reset
}

func (r *ResetRateLimitRequest) Normalize() {
	if r == nil {
		return
	}
	r.Tier = IdentifierTier(strings.TrimSpace(strings.ToLower(string(r.Tier))))
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.Class = EndpointClass(strings.TrimSpace(strings.ToLower(string(r.Class))))
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *ResetRateLimitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.Identifier) > 255 {
		return dErrors.New(dErrors.CodeValidation, "identifier must be 255 characters or less")
	}

	if r.Tier == "" {
		return dErrors.New(dErrors.CodeValidation, "tier is required")
	}
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier is required")
	}

	if !r.Tier.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "tier must be 'user', 'ip', or 'anonymous'")
	}

	if r.Class != "" {
		if !r.Class.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "class must be 'auth', 'api', 'sensitive', 'public', or 'order'")
		}
	}

	return nil
}

// ToIdentifier converts the validated request into a counter identifier.
func (r *ResetRateLimitRequest) ToIdentifier() Identifier {
	return Identifier{Tier: r.Tier, Value: r.Identifier}
}

// RateLimitStatusRequest carries the query parameters of a status lookup.
// Class is optional; when omitted the lookup covers every configured class.
type RateLimitStatusRequest struct {
	Tier       IdentifierTier `json:"tier"`
	Identifier string         `json:"identifier"`
	Class      EndpointClass  `json:"class,omitempty"`
}

func (r *RateLimitStatusRequest) Normalize() {
	if r == nil {
		return
	}
	r.Tier = IdentifierTier(strings.TrimSpace(strings.ToLower(string(r.Tier))))
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.Class = EndpointClass(strings.TrimSpace(strings.ToLower(string(r.Class))))
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *RateLimitStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.Identifier) > 255 {
		return dErrors.New(dErrors.CodeValidation, "identifier must be 255 characters or less")
	}

	if r.Tier == "" {
		return dErrors.New(dErrors.CodeValidation, "tier is required")
	}
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier is required")
	}

	if !r.Tier.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "tier must be 'user', 'ip', or 'anonymous'")
	}

	if r.Class != "" {
		if !r.Class.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "class must be 'auth', 'api', 'sensitive', 'public', or 'order'")
		}
	}

	return nil
}

// ToIdentifier converts the validated request into a counter identifier.
func (r *RateLimitStatusRequest) ToIdentifier() Identifier {
	return Identifier{Tier: r.Tier, Value: r.Identifier}
}
