package audit

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists audit events. Implementations must keep AppendWithID
// idempotent on the event ID so retried writes never duplicate the trail.
type Store interface {
	// AppendWithID inserts the event under the given ID. Re-inserting an
	// existing ID is a silent no-op.
	AppendWithID(ctx context.Context, eventID uuid.UUID, event Event) error

	// Query returns events matching the filter, newest-first, at most
	// filter.Limit of them.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// DeleteOlderThan removes events that occurred before the cutoff and
	// reports how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SecurityStream receives security-category events for out-of-process
// consumers. Publish must never block the caller.
type SecurityStream interface {
	Publish(event Event)
}

// Cleaner deletes aged-out events. Satisfied by *Service; the janitor
// depends on this rather than the full service.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}
