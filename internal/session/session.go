// Package session manages the lifecycle of authenticated sessions: idle
// timeout, an absolute duration ceiling, periodic token rotation, and a
// pre-expiry warning. A Manager owns one session's in-memory state and is
// its sole writer; the durable Record lives behind the Store interface so
// sign-out and token refresh survive process restarts.
package session

import (
	"fmt"
	"time"

	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/sentinel"
)

// ErrAlreadyRevoked reports a write against a session that was already
// revoked. Stores return it directly so callers can distinguish "someone
// beat us to it" from a missing record; it wraps sentinel.ErrRevoked for
// callers matching on the sentinel.
var ErrAlreadyRevoked = fmt.Errorf("session already revoked: %w", sentinel.ErrRevoked)

// Status is the durable standing of a session record.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// State identifies where a managed session sits in its lifecycle. Only the
// Manager moves a session between states.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateActive        State = "active"
	StateWarned        State = "warned"
	StateExpired       State = "expired"
)

// ExpiryReason labels why a managed session ended.
type ExpiryReason string

const (
	// ReasonIdleTimeout means no activity arrived within the idle window.
	ReasonIdleTimeout ExpiryReason = "idle_timeout"
	// ReasonMaxDuration means the session outlived its expiry ceiling.
	ReasonMaxDuration ExpiryReason = "max_duration"
	// ReasonRefreshFailed means token rotation found the session revoked.
	ReasonRefreshFailed ExpiryReason = "refresh_failed"
	// ReasonNoSession means token rotation found no session record at all.
	ReasonNoSession ExpiryReason = "no_session"
	// ReasonRefreshError means token rotation failed for any other cause.
	ReasonRefreshError ExpiryReason = "refresh_error"
)

// Record is the durable session row. LastActivityAt moves on activity only;
// ExpiresAt moves on explicit extension only.
type Record struct {
	ID               id.SessionID `json:"id"`
	UserID           id.UserID    `json:"user_id"`
	Role             id.Role      `json:"role"`
	DeviceID         string       `json:"device_id,omitempty"`
	DeviceLabel      string       `json:"device_label,omitempty"`
	IPAddress        string       `json:"ip_address,omitempty"`
	UserAgent        string       `json:"user_agent,omitempty"`
	Status           Status       `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	LastActivityAt   time.Time    `json:"last_activity_at"`
	ExpiresAt        time.Time    `json:"expires_at"`
	TokenRefreshedAt time.Time    `json:"token_refreshed_at"`
	RevokedAt        *time.Time   `json:"revoked_at,omitempty"`
}

// NewRecordParams carries the request-scoped inputs for a fresh session.
type NewRecordParams struct {
	UserID    id.UserID
	Role      id.Role
	DeviceID  string
	IPAddress string
	UserAgent string
}

// NewRecord builds an active session record expiring one idle window from
// now. The device label is derived from the user agent at creation so audit
// entries never need to re-parse it.
func NewRecord(params NewRecordParams, now time.Time, idleTimeout time.Duration) (*Record, error) {
	if params.UserID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	if !params.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "role is invalid")
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	return &Record{
		ID:               id.NewSessionID(),
		UserID:           params.UserID,
		Role:             params.Role,
		DeviceID:         params.DeviceID,
		DeviceLabel:      ParseUserAgent(params.UserAgent),
		IPAddress:        params.IPAddress,
		UserAgent:        params.UserAgent,
		Status:           StatusActive,
		CreatedAt:        now,
		LastActivityAt:   now,
		ExpiresAt:        now.Add(idleTimeout),
		TokenRefreshedAt: now,
	}, nil
}

// Clone returns a deep copy so stores and managers never share a Record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.RevokedAt != nil {
		revokedAt := *r.RevokedAt
		clone.RevokedAt = &revokedAt
	}
	return &clone
}

// Summary is the user-facing view of one session for "manage my sessions"
// listings.
type Summary struct {
	SessionID    string    `json:"session_id"`
	Device       string    `json:"device"`
	IPAddress    string    `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IsCurrent    bool      `json:"is_current"`
}

// Summarize reduces a record to its listing view. current marks the session
// the caller is browsing from.
func (r *Record) Summarize(current bool) Summary {
	return Summary{
		SessionID:    r.ID.String(),
		Device:       r.DeviceLabel,
		IPAddress:    r.IPAddress,
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivityAt,
		IsCurrent:    current,
	}
}

// Snapshot is a point-in-time copy of a managed session's state, safe to
// hand to callers without exposing the Manager's internals.
type Snapshot struct {
	SessionID        id.SessionID `json:"session_id"`
	UserID           id.UserID    `json:"user_id"`
	DeviceID         string       `json:"device_id,omitempty"`
	State            State        `json:"state"`
	CreatedAt        time.Time    `json:"created_at"`
	LastActivityAt   time.Time    `json:"last_activity_at"`
	ExpiresAt        time.Time    `json:"expires_at"`
	TokenRefreshedAt time.Time    `json:"token_refreshed_at"`
}
