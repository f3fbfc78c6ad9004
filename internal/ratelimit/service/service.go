package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"palisade/internal/ratelimit/config"
	"palisade/internal/ratelimit/metrics"
	"palisade/internal/ratelimit/models"
	"palisade/internal/ratelimit/ports"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/privacy"
	"palisade/pkg/requestcontext"
)

// Service enforces fixed window rate limits per identifier and endpoint
// class. It owns nothing but counting; identifier resolution happens in the
// middleware and limit presets live in config.
type Service struct {
	counters CounterStore
	auditor  SecurityAuditor
	logger   *slog.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithSecurityAuditor(auditor SecurityAuditor) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(counters CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter store is required")
	}

	svc := &Service{
		counters: counters,
		config:   config.DefaultConfig(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Check consumes one request from the window for this identifier and class.
// A denied result is not an error; errors mean the counter store could not
// answer and the caller decides how to degrade.
func (s *Service) Check(ctx context.Context, identifier models.Identifier, class models.EndpointClass) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)

	requests, window, ok := s.config.GetLimit(class)
	if !ok {
		// Fail closed: a class without a configured limit gets no traffic.
		ports.LogAudit(ctx, s.logger, s.auditor, "rate_limit_config_missing",
			"identifier", s.logIdentifier(identifier),
			"tier", identifier.Tier,
			"endpoint_class", class,
		)
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      0,
			Remaining:  0,
			ResetAt:    now,
			RetryAfter: 60,
		}, nil
	}

	key := models.CounterKey(class, identifier)
	count, resetAt, err := s.counters.Incr(ctx, key, window)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError()
			s.metrics.RecordCheck(string(class), string(identifier.Tier), "error")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if count > requests {
		result := &models.RateLimitResult{
			Allowed:    false,
			Limit:      requests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}
		if s.metrics != nil {
			s.metrics.RecordCheck(string(class), string(identifier.Tier), "denied")
		}
		s.auditDenial(ctx, identifier, class, requests, window, now)
		return result, nil
	}

	if s.metrics != nil {
		s.metrics.RecordCheck(string(class), string(identifier.Tier), "allowed")
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     requests,
		Remaining: requests - count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for an identifier, either for one class or for
// every configured class when the request names none.
func (s *Service) Reset(ctx context.Context, req *models.ResetRateLimitRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	identifier := req.ToIdentifier()
	classes := []models.EndpointClass{req.Class}
	if req.Class == "" {
		classes = s.config.Classes()
	}

	for _, class := range classes {
		if err := s.counters.Reset(ctx, models.CounterKey(class, identifier)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
		}
	}

	scope := string(req.Class)
	if scope == "" {
		scope = "all"
	}
	ports.LogAudit(ctx, s.logger, s.auditor, "rate_limit_reset",
		"identifier", s.logIdentifier(identifier),
		"tier", identifier.Tier,
		"endpoint_class", scope,
	)
	return nil
}

// Status reports the counter state for one identifier and class without
// consuming from the window.
func (s *Service) Status(ctx context.Context, identifier models.Identifier, class models.EndpointClass) (*models.RateLimitStatus, error) {
	requests, _, ok := s.config.GetLimit(class)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "no limit configured for endpoint class")
	}

	count, resetAt, err := s.counters.Count(ctx, models.CounterKey(class, identifier))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rate limit status")
	}

	status := &models.RateLimitStatus{
		Identifier:    identifier,
		EndpointClass: class,
		Count:         count,
		Limit:         requests,
		Remaining:     max(0, requests-count),
	}
	if !resetAt.IsZero() {
		status.ResetAt = &resetAt
	}
	return status, nil
}

// StatusAll reports the counter state for an identifier across every
// configured class, ordered by class name for stable output.
func (s *Service) StatusAll(ctx context.Context, identifier models.Identifier) ([]*models.RateLimitStatus, error) {
	classes := s.config.Classes()
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	statuses := make([]*models.RateLimitStatus, 0, len(classes))
	for _, class := range classes {
		status, err := s.Status(ctx, identifier, class)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// auditDenial records a violation on the audit trail. Counting already
// happened, so a failure here must not turn into a denial error.
func (s *Service) auditDenial(ctx context.Context, identifier models.Identifier, class models.EndpointClass, limit int, window time.Duration, now time.Time) {
	attrs := []any{
		"identifier", s.logIdentifier(identifier),
		"tier", identifier.Tier,
		"endpoint_class", class,
		"limit", limit,
		"window_seconds", int(window.Seconds()),
	}
	if violation, err := models.NewRateLimitViolation(identifier, class, limit, int(window.Seconds()), now); err == nil {
		attrs = append(attrs, "violation_id", violation.ID)
	}
	ports.LogAudit(ctx, s.logger, s.auditor, string(identifier.Tier)+"_rate_limit_exceeded", attrs...)
}

// logIdentifier anonymizes IP identifiers before they reach logs.
func (s *Service) logIdentifier(identifier models.Identifier) string {
	if identifier.Tier == models.TierIP {
		return privacy.AnonymizeIP(identifier.Value)
	}
	return identifier.Value
}

// retryAfterSeconds converts the distance to the window reset into whole
// seconds, rounded up so clients never retry early, and at least one.
func retryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
