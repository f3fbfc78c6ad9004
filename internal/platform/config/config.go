// Package config loads process configuration from environment variables so
// main stays lean. Feature packages receive their knobs from here; nothing
// below this package reads the environment directly.
package config

import (
	"os"
	"strconv"
	"time"

	pstrings "palisade/pkg/platform/strings"
)

// Config is the full configuration for the protection service.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
	CSRF      CSRFConfig
	Session   SessionConfig
	Audit     AuditConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	TrustedProxies  []string
	SecureCookies   bool
	ShutdownTimeout time.Duration
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig configures the shared Redis client. An empty URL disables
// Redis; counter and session stores then run on their in-memory backends.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the audit database. An empty DSN disables
// Postgres; the audit store then runs in memory.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the security event publisher. An empty broker list
// disables publishing.
type KafkaConfig struct {
	Brokers       []string
	SecurityTopic string
	BufferSize    int
}

// AuthConfig configures bearer token issuance and verification.
type AuthConfig struct {
	JWTSigningKey string
	TokenTTL      time.Duration
}

// AdminConfig configures the operational endpoints.
type AdminConfig struct {
	Token string
}

// Preset overrides the request budget for one endpoint class.
type Preset struct {
	Requests int
	Window   time.Duration
}

// RateLimitConfig controls the rate limiter. Overrides is keyed by endpoint
// class name and replaces the built-in preset for that class.
type RateLimitConfig struct {
	Disabled  bool
	Overrides map[string]Preset
}

// CSRFConfig controls token issuance and validation.
type CSRFConfig struct {
	TokenLifetime  time.Duration
	AllowedOrigins []string
	SigningSecret  string
}

// SessionConfig controls session lifecycle timing.
type SessionConfig struct {
	IdleTimeout           time.Duration
	MaxDuration           time.Duration
	RotationInterval      time.Duration
	RotationCheckInterval time.Duration
	WarningThreshold      time.Duration
	CheckInterval         time.Duration
}

// AuditConfig controls audit retention.
type AuditConfig struct {
	RetentionDays   int
	CleanupInterval time.Duration
}

// FromEnv builds the Config from environment variables, applying production
// defaults for anything unset. Malformed numeric or duration values fall
// back to their defaults rather than failing startup.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            getEnv("PALISADE_ADDR", ":8080"),
			TrustedProxies:  pstrings.SplitCSV(os.Getenv("PALISADE_TRUSTED_PROXIES")),
			SecureCookies:   getBool("PALISADE_SECURE_COOKIES", true),
			ShutdownTimeout: getDuration("PALISADE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("PALISADE_LOG_LEVEL", "info"),
			Format: getEnv("PALISADE_LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("PALISADE_REDIS_URL"),
			PoolSize:     getInt("PALISADE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("PALISADE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("PALISADE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("PALISADE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("PALISADE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("PALISADE_POSTGRES_DSN"),
			MaxOpenConns:    getInt("PALISADE_POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("PALISADE_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("PALISADE_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       pstrings.SplitCSV(os.Getenv("PALISADE_KAFKA_BROKERS")),
			SecurityTopic: getEnv("PALISADE_KAFKA_SECURITY_TOPIC", "palisade.audit.security"),
			BufferSize:    getInt("PALISADE_KAFKA_BUFFER_SIZE", 1024),
		},
		Auth: AuthConfig{
			JWTSigningKey: getEnv("PALISADE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TokenTTL:      getDuration("PALISADE_ACCESS_TOKEN_TTL", time.Hour),
		},
		Admin: AdminConfig{
			Token: os.Getenv("PALISADE_ADMIN_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			Disabled:  getBool("PALISADE_RATE_LIMIT_DISABLED", false),
			Overrides: rateLimitOverrides(),
		},
		CSRF: CSRFConfig{
			TokenLifetime:  getDuration("PALISADE_CSRF_TOKEN_LIFETIME", time.Hour),
			AllowedOrigins: pstrings.SplitCSV(os.Getenv("PALISADE_CSRF_ALLOWED_ORIGINS")),
			SigningSecret:  getEnv("PALISADE_CSRF_SIGNING_SECRET", "dev-csrf-secret-change-in-production"),
		},
		Session: SessionConfig{
			IdleTimeout:           getDuration("PALISADE_SESSION_IDLE_TIMEOUT", 30*time.Minute),
			MaxDuration:           getDuration("PALISADE_SESSION_MAX_DURATION", 24*time.Hour),
			RotationInterval:      getDuration("PALISADE_SESSION_ROTATION_INTERVAL", time.Hour),
			RotationCheckInterval: getDuration("PALISADE_SESSION_ROTATION_CHECK_INTERVAL", 5*time.Minute),
			WarningThreshold:      getDuration("PALISADE_SESSION_WARNING_THRESHOLD", 5*time.Minute),
			CheckInterval:         getDuration("PALISADE_SESSION_CHECK_INTERVAL", time.Minute),
		},
		Audit: AuditConfig{
			RetentionDays:   getInt("PALISADE_AUDIT_RETENTION_DAYS", 90),
			CleanupInterval: getDuration("PALISADE_AUDIT_CLEANUP_INTERVAL", 24*time.Hour),
		},
	}
}

// rateLimitOverrides reads optional per-class budget overrides of the form
// PALISADE_RATE_LIMIT_<CLASS>_REQUESTS and PALISADE_RATE_LIMIT_<CLASS>_WINDOW.
func rateLimitOverrides() map[string]Preset {
	classes := []string{"AUTH", "API", "SENSITIVE", "PUBLIC", "ORDER"}
	overrides := make(map[string]Preset)
	for _, class := range classes {
		requests := getInt("PALISADE_RATE_LIMIT_"+class+"_REQUESTS", 0)
		window := getDuration("PALISADE_RATE_LIMIT_"+class+"_WINDOW", 0)
		if requests > 0 && window > 0 {
			overrides[class] = Preset{Requests: requests, Window: window}
		}
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
