// Package ports defines shared interfaces for the ratelimit module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"log/slog"
	"time"

	"palisade/internal/ratelimit/models"
	"palisade/pkg/requestcontext"
)

// SecurityAuditor records security-relevant events on the durable audit trail.
type SecurityAuditor interface {
	LogSecurityEvent(ctx context.Context, action string, attrs ...any)
}

// CounterStore manages fixed window rate limit counters.
type CounterStore interface {
	// Incr increments the counter for a key, starting a new window sized
	// by 'window' when none is active. Returns the count after the
	// increment and when the active window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)

	// Reset clears the rate limit counter for a key.
	Reset(ctx context.Context, key string) error

	// Count returns the current count and reset time without incrementing.
	// A key with no active window reports zero and a zero reset time.
	Count(ctx context.Context, key string) (count int, resetAt time.Time, err error)
}

// RateLimiter decides whether one request is admitted. Implemented by the
// rate limit service and by the in-memory fallback used during store outages.
type RateLimiter interface {
	Check(ctx context.Context, identifier models.Identifier, class models.EndpointClass) (*models.RateLimitResult, error)
}

// LogAudit is a shared helper for logging audit events across ratelimit services.
// It logs to both the structured logger and the security auditor if available.
func LogAudit(ctx context.Context, logger *slog.Logger, auditor SecurityAuditor, event string, attrs ...any) {
	// Add request ID for traceability
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}

	// Add standard audit fields
	args := append(attrs, "event", event, "log_type", "audit")

	// Log to structured logger
	if logger != nil {
		logger.InfoContext(ctx, event, args...)
	}

	// Record on the durable audit trail
	if auditor == nil {
		return
	}
	auditor.LogSecurityEvent(ctx, event, attrs...)
}
