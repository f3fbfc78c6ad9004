package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"palisade/internal/session"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
)

// keepTTL tells execute to leave the key's expiry untouched.
const keepTTL time.Duration = redis.KeepTTL

// RedisStore persists session records in Redis. Each record is a JSON value
// under "session:<id>" whose TTL tracks the record's expiry; a set under
// "user_sessions:<user id>" indexes the user's sessions.
//
// Updates run inside WATCH so concurrent writers conflict instead of losing
// writes. A conflict surfaces as redis.TxFailedErr and the caller decides
// whether to retry.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create writes the record and its user-index entry in one transaction. The
// key TTL matches the record's expiry so Redis reclaims dead sessions on
// its own.
func (s *RedisStore) Create(ctx context.Context, record *session.Record) error {
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already past expiry: %w", sentinel.ErrInvalidState)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(record.ID), data, ttl)
		pipe.SAdd(ctx, userSessionsKey(record.UserID), record.ID.String())
		return nil
	})
	return err
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*session.Record, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var record session.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &record, nil
}

// ListByUser returns the user's sessions newest first. Index entries whose
// session key already expired are dropped from the set on the way past.
func (s *RedisStore) ListByUser(ctx context.Context, userID id.UserID) ([]*session.Record, error) {
	userKey := userSessionsKey(userID)
	members, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*session.Record, 0, len(members))
	var stale []any
	for _, member := range members {
		sessionID, err := id.ParseSessionID(member)
		if err != nil {
			stale = append(stale, member)
			continue
		}
		record, err := s.FindByID(ctx, sessionID)
		if errors.Is(err, sentinel.ErrNotFound) {
			stale = append(stale, member)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if len(stale) > 0 {
		s.client.SRem(ctx, userKey, stale...)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *RedisStore) Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	_, err := s.execute(ctx, sessionID, keepTTL, requireActive, func(record *session.Record) {
		record.LastActivityAt = at
	})
	return err
}

// Extend moves the record's expiry and re-aligns the key TTL with it.
func (s *RedisStore) Extend(ctx context.Context, sessionID id.SessionID, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("expiry already past: %w", sentinel.ErrInvalidState)
	}

	_, err := s.execute(ctx, sessionID, ttl, requireActive, func(record *session.Record) {
		record.ExpiresAt = expiresAt
	})
	return err
}

func (s *RedisStore) MarkRotated(ctx context.Context, sessionID id.SessionID, at time.Time) (*session.Record, error) {
	return s.execute(ctx, sessionID, keepTTL, requireActive, func(record *session.Record) {
		record.TokenRefreshedAt = at
	})
}

// RevokeIfActive keeps the key TTL so the revoked record remains readable
// until its natural expiry.
func (s *RedisStore) RevokeIfActive(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	_, err := s.execute(ctx, sessionID, keepTTL, requireActive, func(record *session.Record) {
		record.Status = session.StatusRevoked
		revokedAt := at
		record.RevokedAt = &revokedAt
	})
	return err
}

func (s *RedisStore) DeleteByUser(ctx context.Context, userID id.UserID) error {
	userKey := userSessionsKey(userID)
	members, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}

	keys := make([]string, 0, len(members)+1)
	for _, member := range members {
		keys = append(keys, sessionKeyPrefix+member)
	}
	keys = append(keys, userKey)
	return s.client.Del(ctx, keys...).Err()
}

// Close is a no-op for RedisStore since the client lifecycle is managed externally.
func (s *RedisStore) Close() {
	// Client lifecycle managed externally
}

// execute loads a record under WATCH, validates it, applies the mutation,
// and writes it back in a transaction. A concurrent write between load and
// commit fails the transaction with redis.TxFailedErr, returned to the
// caller unchanged. Validation errors abort before anything persists.
func (s *RedisStore) execute(ctx context.Context, sessionID id.SessionID, ttl time.Duration, validate func(*session.Record) error, mutate func(*session.Record)) (*session.Record, error) {
	key := sessionKey(sessionID)
	var updated *session.Record

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return err
		}

		var record session.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if err := validate(&record); err != nil {
			return err
		}
		mutate(&record)

		data, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &record
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func requireActive(record *session.Record) error {
	if record.Status == session.StatusRevoked {
		return session.ErrAlreadyRevoked
	}
	return nil
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func userSessionsKey(userID id.UserID) string {
	return userSessionsKeyPrefix + userID.String()
}
