// Package store provides the durable backends for session records: an
// in-memory map for tests and single-instance deployments, and a Redis
// variant for anything that scales past one process.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"palisade/internal/session"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// InMemoryStore keeps session records in process memory. Records are copied
// on the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.SessionID]*session.Record
	byUser  map[id.UserID]map[id.SessionID]struct{}
}

func New() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.SessionID]*session.Record),
		byUser:  make(map[id.UserID]map[id.SessionID]struct{}),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, record *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
	}

	s.records[record.ID] = record.Clone()
	if s.byUser[record.UserID] == nil {
		s.byUser[record.UserID] = make(map[id.SessionID]struct{})
	}
	s.byUser[record.UserID][record.ID] = struct{}{}
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, sessionID id.SessionID) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return record.Clone(), nil
}

// ListByUser returns the user's sessions newest first.
func (s *InMemoryStore) ListByUser(ctx context.Context, userID id.UserID) ([]*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*session.Record, 0, len(s.byUser[userID]))
	for sessionID := range s.byUser[userID] {
		if record, ok := s.records[sessionID]; ok {
			records = append(records, record.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *InMemoryStore) Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	return s.update(sessionID, func(record *session.Record) {
		record.LastActivityAt = at
	})
}

func (s *InMemoryStore) Extend(ctx context.Context, sessionID id.SessionID, expiresAt time.Time) error {
	return s.update(sessionID, func(record *session.Record) {
		record.ExpiresAt = expiresAt
	})
}

func (s *InMemoryStore) MarkRotated(ctx context.Context, sessionID id.SessionID, at time.Time) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if record.Status == session.StatusRevoked {
		return nil, session.ErrAlreadyRevoked
	}

	record.TokenRefreshedAt = at
	return record.Clone(), nil
}

func (s *InMemoryStore) RevokeIfActive(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if record.Status == session.StatusRevoked {
		return session.ErrAlreadyRevoked
	}

	record.Status = session.StatusRevoked
	revokedAt := at
	record.RevokedAt = &revokedAt
	return nil
}

func (s *InMemoryStore) DeleteByUser(ctx context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[userID]
	if len(ids) == 0 {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}

	for sessionID := range ids {
		delete(s.records, sessionID)
	}
	delete(s.byUser, userID)
	return nil
}

// update applies a mutation to an active record under the write lock.
func (s *InMemoryStore) update(sessionID id.SessionID, mutate func(*session.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if record.Status == session.StatusRevoked {
		return session.ErrAlreadyRevoked
	}

	mutate(record)
	return nil
}
