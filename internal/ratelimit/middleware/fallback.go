package middleware

import (
	"log/slog"

	"palisade/internal/ratelimit/config"
	"palisade/internal/ratelimit/service"
	"palisade/internal/ratelimit/store/counter"
)

// NewFallbackLimiter creates a fallback rate limiter backed by process
// memory, used by the circuit breaker to keep limits enforceable during
// counter store outages. It shares the primary's config so degraded mode
// applies the same budgets per instance.
// Returns nil if cfg is nil, logging an error if a logger is provided.
func NewFallbackLimiter(cfg *config.Config, logger *slog.Logger) RateLimiter {
	if cfg == nil {
		if logger != nil {
			logger.Error("fallback limiter requires config")
		}
		return nil
	}
	svc, err := service.New(
		counter.New(),
		service.WithLogger(logger),
		service.WithConfig(cfg),
	)
	if err != nil {
		if logger != nil {
			logger.Error("failed to initialize fallback rate limiter", "error", err)
		}
		return nil
	}
	return svc
}
