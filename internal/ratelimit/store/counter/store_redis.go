package counter

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	incrDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "palisade_counter_incr_duration_ms",
		Help:    "Latency of counter increments in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

// RedisCounterStore is a Redis-backed implementation of CounterStore.
// This is the production-recommended implementation for distributed
// deployments where multiple instances need to share counters.
//
// A window is a plain string key: INCR opens or advances it, the key TTL is
// the window boundary. Redis expiry removes idle counters on its own, so
// there is no cleanup worker.
type RedisCounterStore struct {
	client *redis.Client
}

// RedisOption configures a RedisCounterStore instance.
type RedisOption func(*RedisCounterStore)

// NewRedis constructs a Redis-backed counter store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisCounterStore {
	s := &RedisCounterStore{
		client: client,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Incr increments the counter for a key. The first increment of a window
// sets the key TTL to the window size; later increments read the remaining
// TTL to report the reset time.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	start := time.Now()
	defer func() {
		incrDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return int(count), time.Now().Add(window), nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// The key has no expiry, meaning a previous first increment set the
		// count but crashed before PEXPIRE. Heal it so the counter cannot
		// deny forever.
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}

// Reset clears the counter for a key.
func (s *RedisCounterStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Count returns the current count and reset time without incrementing.
// Returns zero if the key doesn't exist (no active window).
func (s *RedisCounterStore) Count(ctx context.Context, key string) (int, time.Time, error) {
	count, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, err
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		return count, time.Time{}, nil
	}
	return count, time.Now().Add(ttl), nil
}

// Close is a no-op for RedisCounterStore since the client lifecycle is managed externally.
func (s *RedisCounterStore) Close() {
	// Client lifecycle managed externally
}
