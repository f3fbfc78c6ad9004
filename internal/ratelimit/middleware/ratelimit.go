package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"palisade/internal/ratelimit/metrics"
	"palisade/internal/ratelimit/models"
	"palisade/internal/ratelimit/ports"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/platform/privacy"
	"palisade/pkg/requestcontext"
)

// RateLimiter decides whether one request is admitted.
type RateLimiter = ports.RateLimiter

type Middleware struct {
	limiter      RateLimiter
	fallback     RateLimiter
	breaker      *CircuitBreaker
	metrics      *metrics.Metrics
	logger       *slog.Logger
	disabled     bool
	degradedMode atomic.Bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback installs an in-memory limiter used while the circuit breaker
// is open. Without one, primary failures fail open.
func WithFallback(fallback RateLimiter) Option {
	return func(m *Middleware) {
		m.fallback = fallback
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		breaker: newCircuitBreaker(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests for one endpoint class. Authenticated requests
// count per user, unauthenticated ones per client IP, and requests with
// neither share the anonymous bucket. Limiter outages never deny requests.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			identifier := identifierFromContext(ctx)

			result, degraded := m.check(ctx, identifier, class)
			if result == nil {
				// No limiter could answer. Admit the request rather than
				// letting the limiter take the service down with it.
				next.ServeHTTP(w, r)
				return
			}

			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}

			// Add headers regardless of outcome
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check runs the primary limiter behind the circuit breaker. While the
// breaker is open, or until a reopening primary has proven itself, decisions
// come from the fallback. A nil result means nobody could answer.
func (m *Middleware) check(ctx context.Context, identifier models.Identifier, class models.EndpointClass) (*models.RateLimitResult, bool) {
	if m.breaker.Allow() {
		result, err := m.limiter.Check(ctx, identifier, class)
		if err == nil {
			if m.breaker.RecordSuccess() {
				if m.degradedMode.CompareAndSwap(true, false) {
					m.logger.Info("rate limit primary store restored")
					if m.metrics != nil {
						m.metrics.SetFallbackActive(false)
					}
				}
				return result, false
			}
		} else {
			m.logger.Error("failed to check rate limit",
				"error", err,
				"identifier", logIdentifier(identifier),
				"endpoint_class", class,
			)
			if m.breaker.RecordFailure() {
				m.logger.Warn("rate limit circuit breaker opened")
				if m.metrics != nil {
					m.metrics.RecordBreakerOpen()
				}
				if m.fallback != nil && m.degradedMode.CompareAndSwap(false, true) {
					if m.metrics != nil {
						m.metrics.SetFallbackActive(true)
					}
				}
			}
		}
	}

	if m.fallback == nil {
		return nil, false
	}

	result, err := m.fallback.Check(ctx, identifier, class)
	if err != nil {
		m.logger.Error("fallback rate limit check failed",
			"error", err,
			"endpoint_class", class,
		)
		return nil, true
	}
	return result, true
}

// identifierFromContext resolves who this request counts against. The user
// tier wins when authentication middleware has populated a user ID.
func identifierFromContext(ctx context.Context) models.Identifier {
	if userID := requestcontext.UserID(ctx); !userID.IsZero() {
		return models.UserIdentifier(userID)
	}
	return models.IPIdentifier(requestcontext.ClientIP(ctx))
}

func logIdentifier(identifier models.Identifier) string {
	if identifier.Tier == models.TierIP {
		return privacy.AnonymizeIP(identifier.Value)
	}
	return identifier.Value
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
