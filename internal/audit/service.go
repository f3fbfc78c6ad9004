package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"palisade/pkg/attrs"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/requestcontext"
)

// Service is the audit trail front door. Logging is best-effort by contract:
// Log and the category wrappers never return errors and never block business
// logic on the outcome of a write.
type Service struct {
	store   Store
	logger  *slog.Logger
	stream  SecurityStream
	metrics *Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithSecurityStream wires the out-of-process consumer for security events.
func WithSecurityStream(stream SecurityStream) Option {
	return func(s *Service) {
		s.stream = stream
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	s := &Service{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Log records one event. The event is normalized (ID, severity, timestamp,
// request-scoped fields), appended to the store, and unconditionally written
// to the structured log; a persistence failure downgrades to a warning so
// the trail survives in the log stream even when the store is down.
func (s *Service) Log(ctx context.Context, event Event) {
	event = s.normalize(ctx, event)

	if err := s.store.AppendWithID(ctx, event.ID, event); err != nil {
		s.logger.WarnContext(ctx, "audit event persistence failed",
			"error", err,
			"event_id", event.ID.String(),
			"event_type", string(event.Type),
		)
		if s.metrics != nil {
			s.metrics.RecordPersistFailure()
		}
	}

	s.emitLog(ctx, event)

	if event.Category == CategorySecurity && s.stream != nil {
		s.stream.Publish(event)
	}
	if s.metrics != nil {
		s.metrics.RecordEvent(event.Category, event.Severity)
	}
}

// Category wrappers. Each pins the category and builds the event from a flat
// key-value attribute list, which is the shape the other subsystems emit.

func (s *Service) LogAuth(ctx context.Context, action string, attributes ...any) {
	s.Log(ctx, fromAttrs(CategoryAuthentication, action, attributes))
}

func (s *Service) LogUserEvent(ctx context.Context, action string, attributes ...any) {
	s.Log(ctx, fromAttrs(CategoryUserManagement, action, attributes))
}

func (s *Service) LogOrderEvent(ctx context.Context, action string, attributes ...any) {
	s.Log(ctx, fromAttrs(CategoryOrders, action, attributes))
}

func (s *Service) LogProductEvent(ctx context.Context, action string, attributes ...any) {
	s.Log(ctx, fromAttrs(CategoryProducts, action, attributes))
}

func (s *Service) LogSecurityEvent(ctx context.Context, action string, attributes ...any) {
	s.Log(ctx, fromAttrs(CategorySecurity, action, attributes))
}

func (s *Service) LogDataAccess(ctx context.Context, action string, attributes ...any) {
	s.Log(ctx, fromAttrs(CategoryDataAccess, action, attributes))
}

func (s *Service) LogSystemEvent(ctx context.Context, action string, attributes ...any) {
	s.Log(ctx, fromAttrs(CategorySystem, action, attributes))
}

// Query returns events matching the filter, newest-first. The limit is
// clamped to MaxQueryLimit and defaults to DefaultQueryLimit.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	events, err := s.store.Query(ctx, filter.withLimits())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit events")
	}
	return events, nil
}

// Cleanup deletes events older than the cutoff and reports how many went. A
// failing run reports zero deletions; it never panics into the caller.
func (s *Service) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	deleted, err := s.store.DeleteOlderThan(ctx, olderThan)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit cleanup failed", "error", err)
		if s.metrics != nil {
			s.metrics.RecordCleanupFailure()
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clean up audit events")
	}

	if s.metrics != nil {
		s.metrics.RecordCleanup(deleted)
	}
	s.logger.InfoContext(ctx, "audit cleanup completed",
		"deleted", deleted,
		"older_than", olderThan,
	)
	return deleted, nil
}

// normalize fills the derived and request-scoped fields. Severity is always
// recomputed here; whatever the caller set is discarded.
func (s *Service) normalize(ctx context.Context, event Event) Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Category == "" {
		event.Category = CategorySystem
	}
	if event.Action == "" {
		event.Action = string(event.Type)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	if event.ActorID == "" {
		if userID := requestcontext.UserID(ctx); !userID.IsZero() {
			event.ActorID = userID.String()
		}
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	event.Severity = severityFor(event.Category, event.Type, event.Success)
	return event
}

// emitLog writes the structured application-log copy of the event at a level
// matching its severity.
func (s *Service) emitLog(ctx context.Context, event Event) {
	args := []any{
		"log_type", "audit",
		"event_id", event.ID.String(),
		"event_type", string(event.Type),
		"category", string(event.Category),
		"severity", string(event.Severity),
		"success", event.Success,
	}
	if event.ActorID != "" {
		args = append(args, "actor_id", event.ActorID)
	}
	if event.ResourceType != "" {
		args = append(args, "resource_type", event.ResourceType, "resource_id", event.ResourceID)
	}
	if event.RequestID != "" {
		args = append(args, "request_id", event.RequestID)
	}
	for key, value := range event.Details {
		args = append(args, key, value)
	}

	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError, SeverityCritical:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, event.Action, args...)
}

// fromAttrs builds an event from a flat [key1, value1, ...] attribute list.
// The well-known keys actor_id (or user_id), resource_type, resource_id, ip,
// user_agent, and success are lifted onto the event itself; the rest stays
// in Details.
func fromAttrs(category Category, action string, attributes []any) Event {
	event := Event{
		Type:     EventType(action),
		Category: category,
		Action:   action,
		Success:  true,
	}

	details := attrs.Fold(attributes)
	if details == nil {
		return event
	}

	if v, ok := details["actor_id"].(string); ok {
		event.ActorID = v
		delete(details, "actor_id")
	} else if v, ok := details["user_id"].(string); ok {
		event.ActorID = v
		delete(details, "user_id")
	}
	if v, ok := details["resource_type"].(string); ok {
		event.ResourceType = v
		delete(details, "resource_type")
	}
	if v, ok := details["resource_id"].(string); ok {
		event.ResourceID = v
		delete(details, "resource_id")
	}
	if v, ok := details["ip"].(string); ok {
		event.IP = v
		delete(details, "ip")
	}
	if v, ok := details["user_agent"].(string); ok {
		event.UserAgent = v
		delete(details, "user_agent")
	}
	if v, ok := details["success"].(bool); ok {
		event.Success = v
		delete(details, "success")
	}
	if len(details) > 0 {
		event.Details = details
	}
	return event
}
