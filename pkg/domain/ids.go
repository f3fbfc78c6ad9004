package domain

import (
	"github.com/google/uuid"

	dErrors "palisade/pkg/domain-errors"
)

// UserID uniquely identifies a user account.
// Invariant: never the nil UUID.
//
// Usage: construct via ParseUserID at trust boundaries (token claims, request
// paths); direct casting bypasses validation.
type UserID uuid.UUID

// SessionID uniquely identifies a single session instance. A user may hold
// several concurrent sessions, each with its own SessionID.
// Invariant: never the nil UUID.
type SessionID uuid.UUID

// NewUserID generates a random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewSessionID generates a random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, not a UUID, or
// the nil UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	id, err := parseID(s, "user id")
	return UserID(id), err
}

// ParseSessionID constructs a SessionID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, not a UUID, or
// the nil UUID; no other errors are expected.
func ParseSessionID(s string) (SessionID, error) {
	id, err := parseID(s, "session id")
	return SessionID(id), err
}

func parseID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }

func (id SessionID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the nil UUID.
func (id UserID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// IsZero reports whether the ID is the nil UUID.
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
