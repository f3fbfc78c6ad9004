package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	rlconfig "palisade/internal/ratelimit/config"
	"palisade/internal/ratelimit/models"
	"palisade/internal/ratelimit/store/counter"
	"palisade/pkg/attrs"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/requestcontext"
)

// =============================================================================
// Rate Limit Service Test Suite
// =============================================================================
// Justification for unit tests: denial boundaries, fail-closed config handling,
// and audit emission are timing-sensitive behaviors that are hard to pin down
// through the HTTP middleware alone.

type RateLimitServiceSuite struct {
	suite.Suite
	store   *counter.MemoryCounterStore
	auditor *fakeAuditor
	service *Service
	ctx     context.Context
}

func TestRateLimitServiceSuite(t *testing.T) {
	suite.Run(t, new(RateLimitServiceSuite))
}

func (s *RateLimitServiceSuite) SetupTest() {
	s.store = counter.New()
	s.auditor = &fakeAuditor{}

	var err error
	s.service, err = New(s.store, WithSecurityAuditor(s.auditor))
	s.Require().NoError(err)

	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *RateLimitServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "counter store is required")
	})

	s.Run("valid store returns configured service", func() {
		svc, err := New(s.store)
		s.NoError(err)
		s.NotNil(svc)
	})
}

// =============================================================================
// Check Tests
// =============================================================================

func (s *RateLimitServiceSuite) TestCheck() {
	ident := models.IPIdentifier("203.0.113.7")

	s.Run("requests up to the limit are allowed", func() {
		var result *models.RateLimitResult
		var err error
		for range 5 {
			result, err = s.service.Check(s.ctx, ident, models.ClassAuth)
			s.Require().NoError(err)
			s.True(result.Allowed)
		}
		s.Equal(5, result.Limit)
		s.Equal(0, result.Remaining)
	})

	s.Run("request over the limit is denied with retry information", func() {
		result, err := s.service.Check(s.ctx, ident, models.ClassAuth)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.GreaterOrEqual(result.RetryAfter, 1)
		s.False(result.ResetAt.IsZero())
	})

	s.Run("classes count independently", func() {
		result, err := s.service.Check(s.ctx, ident, models.ClassAPI)
		s.Require().NoError(err)
		s.True(result.Allowed, "denial in auth class must not consume the api budget")
		s.Equal(60, result.Limit)
		s.Equal(59, result.Remaining)
	})

	s.Run("identifiers count independently", func() {
		result, err := s.service.Check(s.ctx, models.IPIdentifier("198.51.100.9"), models.ClassAuth)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *RateLimitServiceSuite) TestCheck_UnconfiguredClassFailsClosed() {
	cfg := &rlconfig.Config{}
	svc, err := New(s.store, WithConfig(cfg), WithSecurityAuditor(s.auditor))
	s.Require().NoError(err)

	result, err := svc.Check(s.ctx, models.IPIdentifier("203.0.113.7"), models.ClassAuth)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(60, result.RetryAfter)
	s.Equal("rate_limit_config_missing", s.auditor.lastEvent())
}

func (s *RateLimitServiceSuite) TestCheck_StoreErrorSurfaces() {
	svc, err := New(&failingCounterStore{}, WithSecurityAuditor(s.auditor))
	s.Require().NoError(err)

	_, err = svc.Check(s.ctx, models.IPIdentifier("203.0.113.7"), models.ClassAuth)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *RateLimitServiceSuite) TestCheck_UserTier() {
	ident := models.UserIdentifier(id.NewUserID())

	for range 5 {
		result, err := s.service.Check(s.ctx, ident, models.ClassOrder)
		s.Require().NoError(err)
		s.True(result.Allowed)
	}

	result, err := s.service.Check(s.ctx, ident, models.ClassOrder)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.GreaterOrEqual(result.RetryAfter, 1)
	s.LessOrEqual(result.RetryAfter, 60, "retry after a one-minute window cannot exceed the window")
}

// =============================================================================
// Audit Emission Tests
// =============================================================================

func (s *RateLimitServiceSuite) TestCheck_DenialEmitsAudit() {
	ident := models.IPIdentifier("203.0.113.77")

	for range 6 {
		_, err := s.service.Check(s.ctx, ident, models.ClassAuth)
		s.Require().NoError(err)
	}

	s.Require().NotEmpty(s.auditor.events)
	event := s.auditor.events[len(s.auditor.events)-1]
	s.Equal("ip_rate_limit_exceeded", event.action)
	s.NotEmpty(attrs.ExtractString(event.attrs, "violation_id"))

	logged := attrs.ExtractString(event.attrs, "identifier")
	s.Equal("203.0.113.0", logged, "audited IPs must be anonymized")
}

func (s *RateLimitServiceSuite) TestCheck_AllowedEmitsNoAudit() {
	_, err := s.service.Check(s.ctx, models.IPIdentifier("203.0.113.7"), models.ClassPublic)
	s.Require().NoError(err)
	s.Empty(s.auditor.events)
}

// =============================================================================
// Reset Tests
// =============================================================================

func (s *RateLimitServiceSuite) TestReset() {
	ident := models.IPIdentifier("203.0.113.7")

	s.Run("clears a single class", func() {
		for range 5 {
			_, err := s.service.Check(s.ctx, ident, models.ClassAuth)
			s.Require().NoError(err)
		}

		err := s.service.Reset(s.ctx, &models.ResetRateLimitRequest{
			Tier:       models.TierIP,
			Identifier: ident.Value,
			Class:      models.ClassAuth,
		})
		s.Require().NoError(err)
		s.Equal("rate_limit_reset", s.auditor.lastEvent())

		result, err := s.service.Check(s.ctx, ident, models.ClassAuth)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(4, result.Remaining)
	})

	s.Run("clears every class when none is named", func() {
		for _, class := range []models.EndpointClass{models.ClassAuth, models.ClassAPI} {
			_, err := s.service.Check(s.ctx, ident, class)
			s.Require().NoError(err)
		}

		err := s.service.Reset(s.ctx, &models.ResetRateLimitRequest{
			Tier:       models.TierIP,
			Identifier: ident.Value,
		})
		s.Require().NoError(err)

		status, err := s.service.StatusAll(s.ctx, ident)
		s.Require().NoError(err)
		for _, st := range status {
			s.Equal(0, st.Count, "class %s should be cleared", st.EndpointClass)
		}
	})

	s.Run("invalid request is rejected", func() {
		err := s.service.Reset(s.ctx, &models.ResetRateLimitRequest{Tier: models.TierIP})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Status Tests
// =============================================================================

func (s *RateLimitServiceSuite) TestStatus() {
	ident := models.IPIdentifier("203.0.113.7")

	s.Run("untouched identifier reports zero", func() {
		status, err := s.service.Status(s.ctx, ident, models.ClassAuth)
		s.Require().NoError(err)
		s.Equal(0, status.Count)
		s.Equal(5, status.Limit)
		s.Equal(5, status.Remaining)
		s.Nil(status.ResetAt)
	})

	s.Run("reflects consumption without consuming", func() {
		for range 3 {
			_, err := s.service.Check(s.ctx, ident, models.ClassAuth)
			s.Require().NoError(err)
		}

		for range 2 {
			status, err := s.service.Status(s.ctx, ident, models.ClassAuth)
			s.Require().NoError(err)
			s.Equal(3, status.Count)
			s.Equal(2, status.Remaining)
			s.NotNil(status.ResetAt)
		}
	})

	s.Run("unknown class is not found", func() {
		_, err := s.service.Status(s.ctx, ident, models.EndpointClass("bogus"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RateLimitServiceSuite) TestStatusAll() {
	ident := models.IPIdentifier("203.0.113.7")

	statuses, err := s.service.StatusAll(s.ctx, ident)
	s.Require().NoError(err)
	s.Len(statuses, 5)

	// Stable ordering by class name.
	s.Equal(models.ClassAPI, statuses[0].EndpointClass)
	s.Equal(models.ClassAuth, statuses[1].EndpointClass)
	s.Equal(models.ClassOrder, statuses[2].EndpointClass)
	s.Equal(models.ClassPublic, statuses[3].EndpointClass)
	s.Equal(models.ClassSensitive, statuses[4].EndpointClass)
}

// =============================================================================
// Test Doubles
// =============================================================================

type capturedEvent struct {
	action string
	attrs  []any
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakeAuditor) LogSecurityEvent(ctx context.Context, action string, kv ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{action: action, attrs: kv})
}

func (f *fakeAuditor) lastEvent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].action
}

type failingCounterStore struct{}

func (f *failingCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func (f *failingCounterStore) Reset(ctx context.Context, key string) error {
	return errors.New("store down")
}

func (f *failingCounterStore) Count(ctx context.Context, key string) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}
