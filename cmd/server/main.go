// Command server wires the protection stack around a demo ordering API:
// rate limiting, CSRF, session lifecycle, and audit logging from
// environment configuration. Redis, Postgres, and Kafka are optional;
// when absent the server runs entirely on in-memory stores.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"palisade/internal/audit"
	auditpublisher "palisade/internal/audit/publisher"
	auditstore "palisade/internal/audit/store"
	"palisade/internal/csrf"
	"palisade/internal/identity"
	"palisade/internal/platform/config"
	"palisade/internal/platform/httpserver"
	"palisade/internal/platform/logger"
	"palisade/internal/platform/metrics"
	"palisade/internal/platform/postgres"
	"palisade/internal/platform/redis"
	rlconfig "palisade/internal/ratelimit/config"
	rlmetrics "palisade/internal/ratelimit/metrics"
	rlmiddleware "palisade/internal/ratelimit/middleware"
	"palisade/internal/ratelimit/models"
	rlservice "palisade/internal/ratelimit/service"
	"palisade/internal/ratelimit/store/counter"
	"palisade/internal/session"
	sessionstore "palisade/internal/session/store"
	httptransport "palisade/internal/transport/http"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/middleware/metadata"
)

const (
	tokenIssuer   = "palisade"
	tokenAudience = "palisade-api"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional backends. Constructors return nil when unconfigured and the
	// wiring below falls back to in-memory stores.
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	} else {
		log.Warn("redis not configured; counters and sessions are in-memory and correct for a single instance only")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if db != nil {
		defer db.Close()
		if _, err := db.ExecContext(ctx, auditstore.Schema); err != nil {
			return fmt.Errorf("apply audit schema: %w", err)
		}
		log.Info("postgres connected")
	} else {
		log.Warn("postgres not configured; audit events are in-memory and lost on restart")
	}

	publisher, err := auditpublisher.New(ctx, auditpublisher.Config{
		Brokers:    cfg.Kafka.Brokers,
		Topic:      cfg.Kafka.SecurityTopic,
		BufferSize: cfg.Kafka.BufferSize,
	}, auditpublisher.WithLogger(log), auditpublisher.WithMetrics(auditpublisher.NewMetrics()))
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	if publisher != nil {
		defer publisher.Close()
		log.Info("kafka security stream connected", "topic", cfg.Kafka.SecurityTopic)
	}

	var events audit.Store
	if db != nil {
		events = auditstore.NewPostgres(db)
	} else {
		events = auditstore.New()
	}
	auditOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(audit.NewMetrics()),
	}
	if publisher != nil {
		auditOpts = append(auditOpts, audit.WithSecurityStream(publisher))
	}
	auditSvc, err := audit.NewService(events, auditOpts...)
	if err != nil {
		return fmt.Errorf("build audit service: %w", err)
	}

	janitor := audit.NewJanitor(auditSvc,
		audit.WithJanitorLogger(log),
		audit.WithRetention(time.Duration(cfg.Audit.RetentionDays)*24*time.Hour),
		audit.WithCleanupInterval(cfg.Audit.CleanupInterval),
	)

	limitCfg := rlconfig.DefaultConfig()
	for name, preset := range cfg.RateLimit.Overrides {
		class, err := models.ParseEndpointClass(strings.ToLower(name))
		if err != nil {
			log.Warn("ignoring rate limit override for unknown class", "class", name)
			continue
		}
		limitCfg.SetLimit(class, preset.Requests, preset.Window)
	}

	var counters rlservice.CounterStore
	if redisClient != nil {
		counters = counter.NewRedis(redisClient.Client)
	} else {
		counters = counter.New()
	}
	limitMetrics := rlmetrics.New()
	limiter, err := rlservice.New(counters,
		rlservice.WithLogger(log),
		rlservice.WithConfig(limitCfg),
		rlservice.WithSecurityAuditor(auditSvc),
		rlservice.WithMetrics(limitMetrics),
	)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}
	limitMW := rlmiddleware.New(limiter, log,
		rlmiddleware.WithDisabled(cfg.RateLimit.Disabled),
		rlmiddleware.WithFallback(rlmiddleware.NewFallbackLimiter(limitCfg, log)),
		rlmiddleware.WithMetrics(limitMetrics),
	)

	guard, err := csrf.New(csrf.Config{
		TokenLifetime:  cfg.CSRF.TokenLifetime,
		AllowedOrigins: cfg.CSRF.AllowedOrigins,
		SigningSecret:  cfg.CSRF.SigningSecret,
		CookieSecure:   cfg.Server.SecureCookies,
	},
		csrf.WithLogger(log),
		csrf.WithSecurityAuditor(auditSvc),
		csrf.WithMetrics(csrf.NewMetrics()),
	)
	if err != nil {
		return fmt.Errorf("build csrf guard: %w", err)
	}

	var sessions session.Store
	if redisClient != nil {
		sessions = sessionstore.NewRedis(redisClient.Client)
	} else {
		sessions = sessionstore.New()
	}

	sessionCfg := session.Config{
		IdleTimeout:           cfg.Session.IdleTimeout,
		WarningLead:           cfg.Session.WarningThreshold,
		MaxDuration:           cfg.Session.MaxDuration,
		RotationInterval:      cfg.Session.RotationInterval,
		IdleCheckInterval:     cfg.Session.CheckInterval,
		RotationCheckInterval: cfg.Session.RotationCheckInterval,
	}

	sessionMetrics := session.NewMetrics()
	registry := session.NewRegistry(session.WithRegistryMetrics(sessionMetrics))
	defer registry.StopAll()

	// Managers spawned per login must outlive the request that created them,
	// so their run loops bind to the server context, not the request context.
	startSession := func(reqCtx context.Context, sessionID id.SessionID) error {
		m, err := session.NewManager(sessions, sessionCfg,
			session.WithLogger(log),
			session.WithRefresher(session.NewStoreRefresher(sessions)),
			session.WithTerminator(session.NewStoreTerminator(sessions)),
			session.WithSecurityAuditor(auditSvc),
			session.WithMetrics(sessionMetrics),
		)
		if err != nil {
			return err
		}
		if err := m.Start(reqCtx, sessionID); err != nil {
			return err
		}
		registry.Manage(ctx, m)
		return nil
	}

	extractor, err := metadata.NewExtractor(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("build metadata extractor: %w", err)
	}

	demo := seedDemoData()
	log.Info("demo accounts seeded", "accounts", demo.AccountCount())

	router, err := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        metrics.New(),
		Authenticator:  demo.Accounts,
		Identity:       identity.NewService(cfg.Auth.JWTSigningKey, tokenIssuer, tokenAudience),
		SessionStore:   sessions,
		SessionConfig:  sessionCfg,
		Registry:       registry,
		StartSession:   startSession,
		Terminator:     session.NewStoreTerminator(sessions),
		Guard:          guard,
		Limiter:        limitMW,
		Limits:         limiter,
		Audit:          auditSvc,
		Orders:         demo.Orders,
		Catalog:        demo.Catalog,
		Extractor:      extractor,
		SecureCookies:  cfg.Server.SecureCookies,
		AdminToken:     cfg.Admin.Token,
		AccessTokenTTL: cfg.Auth.TokenTTL,
		Ready:          readyProbe(db, redisClient),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// readyProbe reports readiness of whichever backends are configured. With no
// backends the server is always ready.
func readyProbe(db *sql.DB, redisClient *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
