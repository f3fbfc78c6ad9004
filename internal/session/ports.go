package session

import (
	"context"
	"time"

	id "palisade/pkg/domain"
)

// Store is the durable persistence surface for session records. Missing
// records surface sentinel.ErrNotFound; revoking an already-revoked record
// surfaces ErrAlreadyRevoked.
type Store interface {
	// Create persists a new record. The record must still be ahead of its
	// own expiry.
	Create(ctx context.Context, record *Record) error
	// FindByID returns a copy of the record.
	FindByID(ctx context.Context, sessionID id.SessionID) (*Record, error)
	// ListByUser returns every live record for a user.
	ListByUser(ctx context.Context, userID id.UserID) ([]*Record, error)
	// Touch moves LastActivityAt without changing anything else.
	Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error
	// Extend moves ExpiresAt to the given instant.
	Extend(ctx context.Context, sessionID id.SessionID, expiresAt time.Time) error
	// MarkRotated stamps TokenRefreshedAt and returns the updated record.
	MarkRotated(ctx context.Context, sessionID id.SessionID, at time.Time) (*Record, error)
	// RevokeIfActive marks the record revoked exactly once.
	RevokeIfActive(ctx context.Context, sessionID id.SessionID, at time.Time) error
	// DeleteByUser removes every record for a user, for account deletion.
	DeleteByUser(ctx context.Context, userID id.UserID) error
}

// Refresher rotates the credential backing a session. The Manager calls it
// once the token crosses the rotation interval; any error ends the session.
type Refresher interface {
	Refresh(ctx context.Context, sessionID id.SessionID) (*Record, error)
}

// Terminator performs the external sign-out when a session expires or is
// revoked.
type Terminator interface {
	SignOut(ctx context.Context, sessionID id.SessionID) error
}

// SecurityAuditor records authentication-category audit events. Mirrors the
// audit service wrapper so the Manager does not import it directly.
type SecurityAuditor interface {
	LogAuth(ctx context.Context, action string, attributes ...any)
}

// Clock supplies the Manager's notion of now. Production uses the system
// clock; tests inject a fake to drive timing checks deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
