package audit

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const (
	DefaultRetention       = 90 * 24 * time.Hour
	DefaultCleanupInterval = 24 * time.Hour
)

// Janitor periodically deletes audit events older than the retention window.
type Janitor struct {
	cleaner   Cleaner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

type JanitorOption func(*Janitor)

func WithJanitorLogger(logger *slog.Logger) JanitorOption {
	return func(j *Janitor) {
		j.logger = logger
	}
}

func WithRetention(retention time.Duration) JanitorOption {
	return func(j *Janitor) {
		j.retention = retention
	}
}

func WithCleanupInterval(interval time.Duration) JanitorOption {
	return func(j *Janitor) {
		j.interval = interval
	}
}

func NewJanitor(cleaner Cleaner, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		cleaner:   cleaner,
		retention: DefaultRetention,
		interval:  DefaultCleanupInterval,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.retention <= 0 {
		j.retention = DefaultRetention
	}
	if j.interval <= 0 {
		j.interval = DefaultCleanupInterval
	}
	return j
}

// Run sweeps on the configured interval until ctx is cancelled. A failing
// sweep is logged by the cleaner and retried on the next tick.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.SweepAt(ctx, time.Now())
		}
	}
}

// SweepAt runs one cleanup pass against the retention cutoff derived from
// now. Exported for testability; Run passes wall-clock time.
func (j *Janitor) SweepAt(ctx context.Context, now time.Time) {
	cutoff := now.Add(-j.retention)
	deleted, err := j.cleaner.Cleanup(ctx, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "audit retention sweep failed",
			"error", err,
			"cutoff", cutoff,
		)
		return
	}
	if deleted > 0 {
		j.logger.InfoContext(ctx, "audit retention sweep completed",
			"deleted", deleted,
			"cutoff", cutoff,
		)
	}
}
