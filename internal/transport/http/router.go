// Package httptransport assembles the HTTP surface of the application: the
// chi router, one middleware chain per endpoint class, and thin handlers
// that delegate to the injected domain services. Business logic stays out of
// this package; it only translates between HTTP and the services.
package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"palisade/internal/audit"
	"palisade/internal/csrf"
	"palisade/internal/identity"
	"palisade/internal/platform/metrics"
	rlhandler "palisade/internal/ratelimit/handler"
	rlmiddleware "palisade/internal/ratelimit/middleware"
	"palisade/internal/ratelimit/models"
	"palisade/internal/session"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/httputil"
	adminmw "palisade/pkg/platform/middleware/admin"
	authmw "palisade/pkg/platform/middleware/auth"
	"palisade/pkg/platform/middleware/device"
	"palisade/pkg/platform/middleware/metadata"
	"palisade/pkg/platform/middleware/request"
	"palisade/pkg/platform/middleware/requesttime"
	"palisade/pkg/platform/middleware/tracing"
)

// DefaultAccessTokenTTL bounds a bearer token's life when the operator does
// not configure one. Token rotation replaces it well before then.
const DefaultAccessTokenTTL = time.Hour

// Deps carries everything the router needs. cmd/server constructs the
// concrete pieces and hands them over here.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Authenticator Authenticator
	Identity      *identity.Service

	SessionStore  session.Store
	SessionConfig session.Config
	Registry      *session.Registry
	// StartSession places a freshly created session under lifecycle
	// management. cmd/server binds it to the server's root context so
	// managers outlive the login request that created them.
	StartSession func(ctx context.Context, sessionID id.SessionID) error
	Terminator   session.Terminator

	Guard   *csrf.Guard
	Limiter *rlmiddleware.Middleware
	Limits  rlhandler.Service

	Audit *audit.Service

	Orders  OrderService
	Catalog CatalogService

	Extractor      *metadata.Extractor
	SecureCookies  bool
	AdminToken     string
	AccessTokenTTL time.Duration

	// Ready reports backing-store health for the readiness probe. A nil
	// Ready makes readiness unconditional.
	Ready func(ctx context.Context) error
}

// Handler is the thin HTTP layer over the domain services.
type Handler struct {
	logger       *slog.Logger
	auth         Authenticator
	identity     *identity.Service
	store        session.Store
	sessionCfg   session.Config
	registry     *session.Registry
	startSession func(ctx context.Context, sessionID id.SessionID) error
	terminator   session.Terminator
	guard        *csrf.Guard
	audit        *audit.Service
	orders       OrderService
	catalog      CatalogService
	tokenTTL     time.Duration
	ready        func(ctx context.Context) error
}

// NewRouter validates the dependencies and wires the full route table.
//
// Middleware ordering inside a group is load-bearing: authentication runs
// before the rate limiter so identified requests count against the user
// rather than the client IP, and the CSRF exemption marker runs before the
// guard so the guard can see it.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Authenticator == nil || deps.Identity == nil {
		return nil, fmt.Errorf("authenticator and identity service are required")
	}
	if deps.SessionStore == nil || deps.Registry == nil || deps.StartSession == nil || deps.Terminator == nil {
		return nil, fmt.Errorf("session dependencies are incomplete")
	}
	if deps.Guard == nil || deps.Limiter == nil || deps.Audit == nil {
		return nil, fmt.Errorf("csrf guard, rate limiter, and audit service are required")
	}
	if deps.Orders == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("order and catalog services are required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("metadata extractor is required")
	}
	if deps.AccessTokenTTL <= 0 {
		deps.AccessTokenTTL = DefaultAccessTokenTTL
	}

	h := &Handler{
		logger:       deps.Logger,
		auth:         deps.Authenticator,
		identity:     deps.Identity,
		store:        deps.SessionStore,
		sessionCfg:   deps.SessionConfig,
		registry:     deps.Registry,
		startSession: deps.StartSession,
		terminator:   deps.Terminator,
		guard:        deps.Guard,
		audit:        deps.Audit,
		orders:       deps.Orders,
		catalog:      deps.Catalog,
		tokenTTL:     deps.AccessTokenTTL,
		ready:        deps.Ready,
	}

	validator := identity.NewServiceAdapter(deps.Identity)
	requireAuth := authmw.RequireAuth(validator, session.NewStoreChecker(deps.SessionStore), deps.Logger)
	optionalAuth := authmw.Optional(validator, deps.Logger)
	requireStaff := authmw.RequireRole(deps.Logger, id.RoleManager, id.RoleAdmin)
	trackActivity := session.TrackActivity(deps.Registry)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(deps.Extractor.Middleware)
	r.Use(device.Middleware(deps.SecureCookies))
	r.Use(tracing.Middleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Login has no bearer token yet, so the limiter keys on the
		// client IP. The CSRF exemption is explicit: the session that
		// a forged login would ride does not exist yet.
		r.Group(func(r chi.Router) {
			r.Use(deps.Limiter.RateLimit(models.ClassAuth))
			r.Use(csrf.Exempt)
			r.Use(deps.Guard.Protect)
			r.Post("/auth/login", h.handleLogin)
		})

		// Logout is authenticated but exempt: a client whose CSRF
		// cookie already expired must still be able to sign out.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(deps.Limiter.RateLimit(models.ClassAuth))
			r.Use(csrf.Exempt)
			r.Use(deps.Guard.Protect)
			r.Post("/auth/logout", h.handleLogout)
		})

		// Authenticated reads and session upkeep.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(deps.Limiter.RateLimit(models.ClassAPI))
			r.Use(deps.Guard.Protect)
			r.Use(trackActivity)
			r.Get("/auth/csrf-token", h.handleCSRFToken)
			r.Get("/session", h.handleSessionSnapshot)
			r.Post("/session/extend", h.handleSessionExtend)
			r.Get("/sessions", h.handleListSessions)
			r.Get("/orders", h.handleListOrders)
		})

		// Order mutations get their own, tighter budget.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(deps.Limiter.RateLimit(models.ClassOrder))
			r.Use(deps.Guard.Protect)
			r.Use(trackActivity)
			r.Post("/orders", h.handleCreateOrder)
			r.Post("/orders/{orderID}/cancel", h.handleCancelOrder)
		})

		// Staff-only bulk and catalog mutations.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireStaff)
			r.Use(deps.Limiter.RateLimit(models.ClassSensitive))
			r.Use(deps.Guard.Protect)
			r.Use(trackActivity)
			r.Post("/orders/bulk-status", h.handleBulkOrderStatus)
			r.Get("/orders/export", h.handleExportOrders)
			r.Post("/products", h.handleCreateProduct)
			r.Put("/products/{productID}", h.handleUpdateProduct)
			r.Delete("/products/{productID}", h.handleDeleteProduct)
		})

		// Public catalog. Optional auth lets the limiter key signed-in
		// browsers on their user instead of a shared IP.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Use(deps.Limiter.RateLimit(models.ClassPublic))
			r.Get("/products", h.handleListProducts)
		})
	})

	// Operational surface. The shared-token gate is the only guard here;
	// operator tooling carries no session or CSRF state.
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(deps.AdminToken, deps.Logger))
		r.Get("/admin/audit/events", h.handleAuditQuery)
		r.Post("/admin/audit/cleanup", h.handleAuditCleanup)
		if deps.Limits != nil {
			rlhandler.New(deps.Limits, deps.Logger).RegisterAdmin(r)
		}
	})

	return r, nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.ready != nil {
		if err := h.ready(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed",
				"error", err.Error(),
			)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
