package counter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const testWindow = time.Minute

type MemoryCounterStoreSuite struct {
	suite.Suite
	store *MemoryCounterStore
	clock *fakeClock
	ctx   context.Context
}

func TestMemoryCounterStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryCounterStoreSuite))
}

func (s *MemoryCounterStoreSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.store = New(withTimeProvider(s.clock.Now))
	s.ctx = context.Background()
}

func (s *MemoryCounterStoreSuite) TestIncr() {
	s.Run("first increment opens a window at one", func() {
		count, resetAt, err := s.store.Incr(s.ctx, "test:key:incr:first", testWindow)
		s.Require().NoError(err)
		s.Equal(1, count)
		s.Equal(s.clock.Now().Add(testWindow), resetAt)
	})

	s.Run("increments within the window accumulate", func() {
		var count int
		var err error
		for range 5 {
			count, _, err = s.store.Incr(s.ctx, "test:key:incr:series", testWindow)
			s.Require().NoError(err)
		}
		s.Equal(5, count)
	})

	s.Run("reset time is stable within one window", func() {
		_, first, err := s.store.Incr(s.ctx, "test:key:incr:stable", testWindow)
		s.Require().NoError(err)

		s.clock.Advance(10 * time.Second)
		_, second, err := s.store.Incr(s.ctx, "test:key:incr:stable", testWindow)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("keys count independently", func() {
		count, _, err := s.store.Incr(s.ctx, "test:key:incr:a", testWindow)
		s.Require().NoError(err)
		s.Equal(1, count)

		count, _, err = s.store.Incr(s.ctx, "test:key:incr:b", testWindow)
		s.Require().NoError(err)
		s.Equal(1, count)
	})
}

func (s *MemoryCounterStoreSuite) TestWindowExpiry() {
	key := "test:key:expiry"

	for range 4 {
		_, _, err := s.store.Incr(s.ctx, key, testWindow)
		s.Require().NoError(err)
	}

	s.clock.Advance(testWindow)

	count, resetAt, err := s.store.Incr(s.ctx, key, testWindow)
	s.Require().NoError(err)
	s.Equal(1, count, "expired window should restart the count")
	s.Equal(s.clock.Now().Add(testWindow), resetAt)
}

func (s *MemoryCounterStoreSuite) TestReset() {
	key := "test:key:reset"

	for range 3 {
		_, _, err := s.store.Incr(s.ctx, key, testWindow)
		s.Require().NoError(err)
	}

	err := s.store.Reset(s.ctx, key)
	s.Require().NoError(err)

	count, resetAt, err := s.store.Count(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(0, count)
	s.True(resetAt.IsZero())

	count, _, err = s.store.Incr(s.ctx, key, testWindow)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *MemoryCounterStoreSuite) TestCount() {
	s.Run("missing key reports zero", func() {
		count, resetAt, err := s.store.Count(s.ctx, "test:key:count:missing")
		s.Require().NoError(err)
		s.Equal(0, count)
		s.True(resetAt.IsZero())
	})

	s.Run("does not increment", func() {
		key := "test:key:count:observe"
		_, _, err := s.store.Incr(s.ctx, key, testWindow)
		s.Require().NoError(err)

		for range 3 {
			count, _, err := s.store.Count(s.ctx, key)
			s.Require().NoError(err)
			s.Equal(1, count)
		}
	})

	s.Run("expired window reports zero", func() {
		key := "test:key:count:expired"
		_, _, err := s.store.Incr(s.ctx, key, testWindow)
		s.Require().NoError(err)

		s.clock.Advance(testWindow)

		count, resetAt, err := s.store.Count(s.ctx, key)
		s.Require().NoError(err)
		s.Equal(0, count)
		s.True(resetAt.IsZero())
	})
}

func (s *MemoryCounterStoreSuite) TestConcurrent() {
	key := "test:key:concurrent"
	const goroutines = 200

	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			_, _, err := s.store.Incr(s.ctx, key, testWindow)
			s.Require().NoError(err)
		})
	}
	wg.Wait()

	count, _, err := s.store.Count(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(goroutines, count, "no increments should be lost")
}

func (s *MemoryCounterStoreSuite) TestEviction() {
	store := New(withTimeProvider(s.clock.Now), WithMaxCountersPerShard(2))

	for i := range 100 {
		_, _, err := store.Incr(s.ctx, fmt.Sprintf("test:key:evict:%d", i), testWindow)
		s.Require().NoError(err)
	}

	total, perShard := store.Stats()
	s.LessOrEqual(total, shardCount*2)
	for _, n := range perShard {
		s.LessOrEqual(n, 2)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
