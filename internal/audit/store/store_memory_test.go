package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"palisade/internal/audit"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.base = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
}

// seed appends n events one minute apart, oldest first, returning them in
// insertion order.
func (s *InMemoryStoreSuite) seed(n int) []audit.Event {
	events := make([]audit.Event, 0, n)
	for i := range n {
		event := audit.Event{
			ID:         uuid.New(),
			Type:       audit.EventOrderCreated,
			Category:   audit.CategoryOrders,
			Severity:   audit.SeverityInfo,
			ActorID:    fmt.Sprintf("user-%d", i%2),
			Action:     "order_created",
			Success:    true,
			OccurredAt: s.base.Add(time.Duration(i) * time.Minute),
		}
		s.Require().NoError(s.store.AppendWithID(s.ctx, event.ID, event))
		events = append(events, event)
	}
	return events
}

func (s *InMemoryStoreSuite) TestAppendWithID() {
	s.Run("append then query round-trips the event", func() {
		event := audit.Event{
			ID:         uuid.New(),
			Type:       audit.EventLoginSuccess,
			Category:   audit.CategoryAuthentication,
			Severity:   audit.SeverityInfo,
			ActorID:    "user-1",
			Action:     "login_success",
			Details:    map[string]any{"method": "password"},
			Success:    true,
			OccurredAt: s.base,
			IP:         "203.0.113.7",
		}
		s.Require().NoError(s.store.AppendWithID(s.ctx, event.ID, event))

		got, err := s.store.Query(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(event, got[0])
	})

	s.Run("duplicate id is a silent no-op", func() {
		eventID := uuid.New()
		first := audit.Event{ID: eventID, Action: "first", OccurredAt: s.base}
		second := audit.Event{ID: eventID, Action: "second", OccurredAt: s.base.Add(time.Hour)}

		s.Require().NoError(s.store.AppendWithID(s.ctx, eventID, first))
		s.Require().NoError(s.store.AppendWithID(s.ctx, eventID, second))

		got, err := s.store.Query(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("first", got[0].Action)
	})

	s.Run("event id is overwritten by the append id", func() {
		eventID := uuid.New()
		event := audit.Event{ID: uuid.New(), Action: "mismatched", OccurredAt: s.base}

		s.Require().NoError(s.store.AppendWithID(s.ctx, eventID, event))

		got, err := s.store.Query(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(eventID, got[0].ID)
	})
}

func (s *InMemoryStoreSuite) TestQuery() {
	s.Run("returns newest first", func() {
		events := s.seed(5)

		got, err := s.store.Query(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(got, 5)
		for i, event := range got {
			s.Equal(events[len(events)-1-i].ID, event.ID)
		}
	})

	s.Run("applies the limit after sorting", func() {
		events := s.seed(5)

		got, err := s.store.Query(s.ctx, audit.Filter{Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(events[4].ID, got[0].ID)
		s.Equal(events[3].ID, got[1].ID)
	})

	s.Run("filters by actor", func() {
		s.seed(4)

		got, err := s.store.Query(s.ctx, audit.Filter{ActorID: "user-0"})
		s.Require().NoError(err)
		s.Len(got, 2)
		for _, event := range got {
			s.Equal("user-0", event.ActorID)
		}
	})

	s.Run("filters by time range", func() {
		events := s.seed(5)

		got, err := s.store.Query(s.ctx, audit.Filter{
			From: s.base.Add(time.Minute),
			To:   s.base.Add(3 * time.Minute),
		})
		s.Require().NoError(err)
		s.Require().Len(got, 3)
		s.Equal(events[3].ID, got[0].ID)
		s.Equal(events[1].ID, got[2].ID)
	})

	s.Run("no match returns empty slice", func() {
		s.seed(3)

		got, err := s.store.Query(s.ctx, audit.Filter{ActorID: "nobody"})
		s.Require().NoError(err)
		s.NotNil(got)
		s.Empty(got)
	})
}

func (s *InMemoryStoreSuite) TestDeleteOlderThan() {
	s.Run("deletes strictly older events", func() {
		events := s.seed(5)

		deleted, err := s.store.DeleteOlderThan(s.ctx, s.base.Add(2*time.Minute))
		s.Require().NoError(err)
		s.Equal(int64(2), deleted)

		got, err := s.store.Query(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(got, 3)
		s.Equal(events[4].ID, got[0].ID)
		s.Equal(events[2].ID, got[2].ID)
	})

	s.Run("cutoff boundary event survives", func() {
		event := audit.Event{ID: uuid.New(), OccurredAt: s.base}
		s.Require().NoError(s.store.AppendWithID(s.ctx, event.ID, event))

		deleted, err := s.store.DeleteOlderThan(s.ctx, s.base)
		s.Require().NoError(err)
		s.Zero(deleted)
	})

	s.Run("repeating a cutoff deletes nothing further", func() {
		s.store = New()
		s.seed(4)
		cutoff := s.base.Add(3 * time.Minute)

		deleted, err := s.store.DeleteOlderThan(s.ctx, cutoff)
		s.Require().NoError(err)
		s.Equal(int64(3), deleted)

		deleted, err = s.store.DeleteOlderThan(s.ctx, cutoff)
		s.Require().NoError(err)
		s.Zero(deleted)
	})

	s.Run("deleted id can be appended again", func() {
		eventID := uuid.New()
		event := audit.Event{ID: eventID, Action: "first", OccurredAt: s.base}
		s.Require().NoError(s.store.AppendWithID(s.ctx, eventID, event))

		_, err := s.store.DeleteOlderThan(s.ctx, s.base.Add(time.Hour))
		s.Require().NoError(err)

		event.Action = "second"
		s.Require().NoError(s.store.AppendWithID(s.ctx, eventID, event))

		got, err := s.store.Query(s.ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("second", got[0].Action)
	})
}

func (s *InMemoryStoreSuite) TestConcurrentAccess() {
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			event := audit.Event{
				ID:         uuid.New(),
				Action:     fmt.Sprintf("action-%d", n),
				OccurredAt: s.base.Add(time.Duration(n) * time.Second),
			}
			s.NoError(s.store.AppendWithID(s.ctx, event.ID, event))
			_, err := s.store.Query(s.ctx, audit.Filter{Limit: 5})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	got, err := s.store.Query(s.ctx, audit.Filter{Limit: 100})
	s.Require().NoError(err)
	s.Len(got, 20)
}
