package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"palisade/internal/audit"
)

// Schema creates the audit_events table. Integration suites apply it against
// a fresh container; deployments run it as a migration.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	event_type TEXT NOT NULL,
	category TEXT NOT NULL,
	severity TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	resource_type TEXT NOT NULL DEFAULT '',
	resource_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	details JSONB,
	success BOOLEAN NOT NULL DEFAULT TRUE,
	occurred_at TIMESTAMPTZ NOT NULL,
	ip TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at
	ON audit_events (occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_actor
	ON audit_events (actor_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_category
	ON audit_events (category, occurred_at DESC);
`

// PostgresStore persists audit events in the audit_events table. Details go
// into a jsonb column so typed payloads stay queryable.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendWithID inserts the event. Idempotent via ON CONFLICT DO NOTHING so a
// retried write never duplicates the trail.
func (s *PostgresStore) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, category, severity, actor_id, resource_type,
			resource_id, action, details, success, occurred_at, ip,
			user_agent, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Type),
		string(event.Category),
		string(event.Severity),
		event.ActorID,
		event.ResourceType,
		event.ResourceID,
		event.Action,
		details,
		event.Success,
		event.OccurredAt,
		event.IP,
		event.UserAgent,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	query := `
		SELECT id, event_type, category, severity, actor_id, resource_type,
		       resource_id, action, details, success, occurred_at, ip,
		       user_agent, request_id
		FROM audit_events`

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ActorID != "" {
		conditions = append(conditions, "actor_id = "+arg(filter.ActorID))
	}
	if len(filter.Types) > 0 {
		conditions = append(conditions, "event_type = ANY("+arg(pq.Array(asStrings(filter.Types)))+")")
	}
	if len(filter.Categories) > 0 {
		conditions = append(conditions, "category = ANY("+arg(pq.Array(asStrings(filter.Categories)))+")")
	}
	if len(filter.Severities) > 0 {
		conditions = append(conditions, "severity = ANY("+arg(pq.Array(asStrings(filter.Severities)))+")")
	}
	if filter.ResourceType != "" {
		conditions = append(conditions, "resource_type = "+arg(filter.ResourceType))
	}
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = "+arg(filter.ResourceID))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "occurred_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "occurred_at <= "+arg(filter.To))
	}

	if len(conditions) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\n\t\tORDER BY occurred_at DESC LIMIT " + arg(filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted audit events: %w", err)
	}
	return deleted, nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := make([]audit.Event, 0)

	for rows.Next() {
		var (
			event     audit.Event
			eventType string
			category  string
			severity  string
			details   []byte
		)
		err := rows.Scan(
			&event.ID,
			&eventType,
			&category,
			&severity,
			&event.ActorID,
			&event.ResourceType,
			&event.ResourceID,
			&event.Action,
			&details,
			&event.Success,
			&event.OccurredAt,
			&event.IP,
			&event.UserAgent,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Type = audit.EventType(eventType)
		event.Category = audit.Category(category)
		event.Severity = audit.Severity(severity)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func asStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
