// Package store provides the persistent backends for audit events: an
// in-memory store for tests and single-instance deployments, and a postgres
// store for durable querying.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"palisade/internal/audit"
)

// InMemoryStore keeps events in an append-only slice guarded by a RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	seen   map[uuid.UUID]struct{}
}

func New() *InMemoryStore {
	return &InMemoryStore{seen: make(map[uuid.UUID]struct{})}
}

// AppendWithID stores the event under eventID. Duplicate IDs are silently
// ignored, matching the postgres ON CONFLICT behavior.
func (s *InMemoryStore) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[eventID]; ok {
		return nil
	}
	event.ID = eventID
	s.seen[eventID] = struct{}{}
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]audit.Event, 0)
	for _, event := range s.events {
		if filter.Matches(event) {
			matched = append(matched, event)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *InMemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, event := range s.events {
		if event.OccurredAt.Before(cutoff) {
			delete(s.seen, event.ID)
			deleted++
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return deleted, nil
}
