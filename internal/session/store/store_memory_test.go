package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"palisade/internal/session"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// Justification for unit tests: store invariants (not-found, revocation
// idempotency, copy-on-read, newest-first listing) are not covered by the
// manager tests, which run against fakes.
type SessionStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = New()
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func newRecord(userID id.UserID) *session.Record {
	now := time.Now()
	return &session.Record{
		ID:               id.SessionID(uuid.New()),
		UserID:           userID,
		Role:             id.RoleCustomer,
		DeviceLabel:      "Chrome on Mac OS X",
		IPAddress:        "203.0.113.7",
		Status:           session.StatusActive,
		CreatedAt:        now,
		LastActivityAt:   now,
		ExpiresAt:        now.Add(30 * time.Minute),
		TokenRefreshedAt: now,
	}
}

// TestLookup tests record retrieval behavior.
func (s *SessionStoreSuite) TestLookup() {
	s.Run("returns stored record when found", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))

		found, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		s.Equal(record, found)
	})

	s.Run("returns a copy, not the stored record", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))

		found, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		found.Status = session.StatusRevoked

		again, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		s.Equal(session.StatusActive, again.Status)
	})

	s.Run("returns ErrNotFound when record does not exist", func() {
		_, err := s.store.FindByID(context.Background(), id.SessionID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestCreate tests the duplicate-ID guard.
func (s *SessionStoreSuite) TestCreate() {
	s.Run("duplicate session ID returns ErrConflict", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))

		err := s.store.Create(context.Background(), record)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

// TestTouchAndExtend tests that activity and extension move independent
// timestamps.
func (s *SessionStoreSuite) TestTouchAndExtend() {
	s.Run("touch moves last activity and nothing else", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))

		at := record.LastActivityAt.Add(5 * time.Minute)
		s.Require().NoError(s.store.Touch(context.Background(), record.ID, at))

		found, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		s.Equal(at, found.LastActivityAt)
		s.Equal(record.ExpiresAt, found.ExpiresAt)
	})

	s.Run("extend moves expiry and nothing else", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))

		expiresAt := record.ExpiresAt.Add(30 * time.Minute)
		s.Require().NoError(s.store.Extend(context.Background(), record.ID, expiresAt))

		found, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		s.Equal(expiresAt, found.ExpiresAt)
		s.Equal(record.LastActivityAt, found.LastActivityAt)
	})

	s.Run("touch on revoked record returns ErrAlreadyRevoked", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))
		s.Require().NoError(s.store.RevokeIfActive(context.Background(), record.ID, time.Now()))

		err := s.store.Touch(context.Background(), record.ID, time.Now())
		s.Require().ErrorIs(err, session.ErrAlreadyRevoked)
	})

	s.Run("touch on missing record returns ErrNotFound", func() {
		err := s.store.Touch(context.Background(), id.SessionID(uuid.New()), time.Now())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestRotation tests the token rotation stamp.
func (s *SessionStoreSuite) TestRotation() {
	s.Run("mark rotated stamps token time and returns the updated record", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))

		at := record.TokenRefreshedAt.Add(time.Hour)
		updated, err := s.store.MarkRotated(context.Background(), record.ID, at)
		s.Require().NoError(err)
		s.Equal(at, updated.TokenRefreshedAt)

		found, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		s.Equal(at, found.TokenRefreshedAt)
	})

	s.Run("mark rotated on revoked record returns ErrAlreadyRevoked", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))
		s.Require().NoError(s.store.RevokeIfActive(context.Background(), record.ID, time.Now()))

		_, err := s.store.MarkRotated(context.Background(), record.ID, time.Now())
		s.Require().ErrorIs(err, session.ErrAlreadyRevoked)
	})
}

// TestRevocation tests the revocation behavior and idempotency.
func (s *SessionStoreSuite) TestRevocation() {
	s.Run("revokes active record and sets RevokedAt timestamp", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))

		at := time.Now()
		s.Require().NoError(s.store.RevokeIfActive(context.Background(), record.ID, at))

		found, err := s.store.FindByID(context.Background(), record.ID)
		s.Require().NoError(err)
		s.Equal(session.StatusRevoked, found.Status)
		s.Require().NotNil(found.RevokedAt)
		s.Equal(at, *found.RevokedAt)
	})

	s.Run("revoking already-revoked record returns ErrAlreadyRevoked", func() {
		record := newRecord(id.UserID(uuid.New()))
		s.Require().NoError(s.store.Create(context.Background(), record))
		s.Require().NoError(s.store.RevokeIfActive(context.Background(), record.ID, time.Now()))

		err := s.store.RevokeIfActive(context.Background(), record.ID, time.Now())
		s.Require().ErrorIs(err, session.ErrAlreadyRevoked)
		s.Require().ErrorIs(err, sentinel.ErrRevoked)
	})

	s.Run("revoking non-existent record returns ErrNotFound", func() {
		err := s.store.RevokeIfActive(context.Background(), id.SessionID(uuid.New()), time.Now())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestListByUser tests the per-user listing.
func (s *SessionStoreSuite) TestListByUser() {
	s.Run("lists the user's sessions newest first", func() {
		userID := id.UserID(uuid.New())
		base := time.Now()

		oldest := newRecord(userID)
		oldest.CreatedAt = base.Add(-2 * time.Hour)
		middle := newRecord(userID)
		middle.CreatedAt = base.Add(-time.Hour)
		newest := newRecord(userID)
		newest.CreatedAt = base

		for _, record := range []*session.Record{middle, oldest, newest} {
			s.Require().NoError(s.store.Create(context.Background(), record))
		}

		records, err := s.store.ListByUser(context.Background(), userID)
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		s.Equal(newest.ID, records[0].ID)
		s.Equal(middle.ID, records[1].ID)
		s.Equal(oldest.ID, records[2].ID)
	})

	s.Run("unknown user lists empty without error", func() {
		records, err := s.store.ListByUser(context.Background(), id.UserID(uuid.New()))
		s.Require().NoError(err)
		s.Empty(records)
	})
}

// TestDeleteByUser tests bulk deletion for account cleanup.
func (s *SessionStoreSuite) TestDeleteByUser() {
	s.Run("deletes all sessions for user and leaves others intact", func() {
		userID := id.UserID(uuid.New())
		otherUserID := id.UserID(uuid.New())
		matching := newRecord(userID)
		other := newRecord(otherUserID)

		s.Require().NoError(s.store.Create(context.Background(), matching))
		s.Require().NoError(s.store.Create(context.Background(), other))

		s.Require().NoError(s.store.DeleteByUser(context.Background(), userID))

		_, err := s.store.FindByID(context.Background(), matching.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		fetched, err := s.store.FindByID(context.Background(), other.ID)
		s.Require().NoError(err)
		s.Equal(other, fetched)
	})

	s.Run("deleting sessions for user with no sessions returns ErrNotFound", func() {
		err := s.store.DeleteByUser(context.Background(), id.UserID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
