package counter

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	shardCount = 16

	// defaultMaxCountersPerShard bounds memory per shard. When a shard is
	// full the least recently touched counter is evicted, which effectively
	// resets the limit for that one identifier. Sized so eviction only
	// happens under identifier-flooding abuse, not normal traffic.
	defaultMaxCountersPerShard = 8192
)

// MemoryCounterStore implements CounterStore with sharded in-memory fixed
// windows. Counters are per-process, so limits multiply by instance count in
// multi-instance deployments. Use the Redis store when counters must be
// shared; this store backs single-instance setups and the degraded-mode
// fallback.
type MemoryCounterStore struct {
	shards       [shardCount]*shard
	maxPerShard  int
	timeProvider func() time.Time
}

type shard struct {
	mu       sync.Mutex
	max      int
	counters map[string]*list.Element
	lru      *list.List // front = most recently touched
}

// window is one fixed counting window for a single key.
type window struct {
	key     string
	count   int
	resetAt time.Time
}

// Option configures a MemoryCounterStore.
type Option func(*MemoryCounterStore)

// WithMaxCountersPerShard overrides the per-shard counter bound.
func WithMaxCountersPerShard(n int) Option {
	return func(s *MemoryCounterStore) {
		if n > 0 {
			s.maxPerShard = n
		}
	}
}

// withTimeProvider injects a clock for tests.
func withTimeProvider(now func() time.Time) Option {
	return func(s *MemoryCounterStore) {
		s.timeProvider = now
	}
}

// New creates an in-memory fixed window counter store.
func New(opts ...Option) *MemoryCounterStore {
	s := &MemoryCounterStore{
		maxPerShard:  defaultMaxCountersPerShard,
		timeProvider: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			max:      s.maxPerShard,
			counters: make(map[string]*list.Element),
			lru:      list.New(),
		}
	}
	return s
}

// Incr increments the counter for a key, opening a new window when none is
// active or the active one has expired.
func (s *MemoryCounterStore) Incr(ctx context.Context, key string, windowSize time.Duration) (int, time.Time, error) {
	now := s.timeProvider()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if elem, ok := sh.counters[key]; ok {
		w := elem.Value.(*window)
		if now.Before(w.resetAt) {
			w.count++
			sh.lru.MoveToFront(elem)
			return w.count, w.resetAt, nil
		}
		// Window expired, start a fresh one in place.
		w.count = 1
		w.resetAt = now.Add(windowSize)
		sh.lru.MoveToFront(elem)
		return w.count, w.resetAt, nil
	}

	w := &window{key: key, count: 1, resetAt: now.Add(windowSize)}
	sh.counters[key] = sh.lru.PushFront(w)
	sh.evictLocked()
	return w.count, w.resetAt, nil
}

// Reset clears the counter for a key.
func (s *MemoryCounterStore) Reset(ctx context.Context, key string) error {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if elem, ok := sh.counters[key]; ok {
		sh.lru.Remove(elem)
		delete(sh.counters, key)
	}
	return nil
}

// Count returns the current count and reset time without incrementing.
func (s *MemoryCounterStore) Count(ctx context.Context, key string) (int, time.Time, error) {
	now := s.timeProvider()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	elem, ok := sh.counters[key]
	if !ok {
		return 0, time.Time{}, nil
	}
	w := elem.Value.(*window)
	if !now.Before(w.resetAt) {
		return 0, time.Time{}, nil
	}
	return w.count, w.resetAt, nil
}

// Stats reports the total number of tracked counters and the count per shard.
func (s *MemoryCounterStore) Stats() (total int, perShard []int) {
	perShard = make([]int, shardCount)
	for i, sh := range s.shards {
		sh.mu.Lock()
		perShard[i] = len(sh.counters)
		sh.mu.Unlock()
		total += perShard[i]
	}
	return total, perShard
}

func (s *MemoryCounterStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// evictLocked drops least recently touched counters until the shard is back
// under its bound. Must be called while holding the shard lock.
func (sh *shard) evictLocked() {
	for len(sh.counters) > sh.max {
		tail := sh.lru.Back()
		if tail == nil {
			return
		}
		w := tail.Value.(*window)
		sh.lru.Remove(tail)
		delete(sh.counters, w.key)
	}
}
