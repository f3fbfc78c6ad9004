// Package audit records categorized, severity-tagged events describing what
// happened in the system and who did it. Every event is dual-written: once
// to a persistent store for querying and once to the structured application
// log, so a persistence failure never silently drops the trail. Security
// events additionally stream to Kafka when a publisher is wired.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category groups events by the part of the system they describe. Each event
// belongs to exactly one category; the Log* wrappers pin it.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryUserManagement Category = "user_management"
	CategoryOrders         Category = "orders"
	CategoryProducts       Category = "products"
	CategorySecurity       Category = "security"
	CategoryDataAccess     Category = "data_access"
	CategorySystem         Category = "system"
)

// Severity ranks how much attention an event deserves. It is always derived
// from the event type and outcome, never taken from the caller.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// EventType names what happened. The catalog below covers the events this
// subsystem emits itself; callers may log types outside it and they classify
// by category alone.
type EventType string

const (
	// Authentication events.
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailed     EventType = "login_failed"
	EventLogout          EventType = "logout"
	EventSessionCreated  EventType = "session_created"
	EventSessionExpired  EventType = "session_expired"
	EventSessionExtended EventType = "session_extended"
	EventTokenRefreshed  EventType = "token_refreshed"

	// User management events.
	EventUserCreated EventType = "user_created"
	EventUserUpdated EventType = "user_updated"
	EventUserDeleted EventType = "user_deleted"
	EventRoleChanged EventType = "role_changed"

	// Order events.
	EventOrderCreated    EventType = "order_created"
	EventOrderUpdated    EventType = "order_updated"
	EventOrderCancelled  EventType = "order_cancelled"
	EventBulkOrderUpdate EventType = "bulk_order_update"

	// Product events.
	EventProductCreated EventType = "product_created"
	EventProductUpdated EventType = "product_updated"
	EventProductDeleted EventType = "product_deleted"

	// Security events.
	EventCSRFFailure            EventType = "csrf_failure"
	EventUnauthorizedAccess     EventType = "unauthorized_access"
	EventInjectionAttempt       EventType = "injection_attempt"
	EventScriptInjectionAttempt EventType = "script_injection_attempt"
	EventSuspiciousActivity     EventType = "suspicious_activity"

	// Data access events.
	EventDataExported    EventType = "data_exported"
	EventReportGenerated EventType = "report_generated"

	// System events.
	EventSystemStartup    EventType = "system_startup"
	EventSystemShutdown   EventType = "system_shutdown"
	EventCleanupCompleted EventType = "cleanup_completed"
)

// Event is one append-only audit record. Events are never mutated after
// creation; the service fills ID, Severity, OccurredAt, and the
// request-scoped fields during normalization.
type Event struct {
	ID           uuid.UUID      `json:"id"`
	Type         EventType      `json:"event_type"`
	Category     Category       `json:"category"`
	Severity     Severity       `json:"severity"`
	ActorID      string         `json:"actor_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Action       string         `json:"action"`
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	OccurredAt   time.Time      `json:"occurred_at"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
}

// severityFor derives the severity. Security severities hang off the event
// type alone so callers cannot downgrade an attack signal; everything else
// is informational unless the action failed.
func severityFor(category Category, eventType EventType, success bool) Severity {
	if category == CategorySecurity {
		switch eventType {
		case EventUnauthorizedAccess, EventInjectionAttempt:
			return SeverityCritical
		case EventCSRFFailure, EventScriptInjectionAttempt:
			return SeverityError
		default:
			return SeverityWarning
		}
	}
	if !success {
		return SeverityWarning
	}
	return SeverityInfo
}

// Query limits. A caller that asks for nothing gets DefaultQueryLimit; a
// caller that asks for too much gets MaxQueryLimit.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// Filter narrows a query. Zero-valued fields match everything; results are
// always newest-first.
type Filter struct {
	ActorID      string
	Types        []EventType
	Categories   []Category
	Severities   []Severity
	ResourceType string
	ResourceID   string
	From         time.Time
	To           time.Time
	Limit        int
}

// withLimits returns the filter with the limit clamped into range.
func (f Filter) withLimits() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	return f
}

// Matches reports whether the event passes every set filter field. Shared by
// the in-memory store; the postgres store compiles the same conditions to SQL.
func (f Filter) Matches(event Event) bool {
	if f.ActorID != "" && event.ActorID != f.ActorID {
		return false
	}
	if len(f.Types) > 0 && !containsValue(f.Types, event.Type) {
		return false
	}
	if len(f.Categories) > 0 && !containsValue(f.Categories, event.Category) {
		return false
	}
	if len(f.Severities) > 0 && !containsValue(f.Severities, event.Severity) {
		return false
	}
	if f.ResourceType != "" && event.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && event.ResourceID != f.ResourceID {
		return false
	}
	if !f.From.IsZero() && event.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && event.OccurredAt.After(f.To) {
		return false
	}
	return true
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
