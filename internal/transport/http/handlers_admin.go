package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"palisade/internal/audit"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// AuditQueryResponse is the body of an audit trail query.
type AuditQueryResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

// AuditCleanupRequest optionally overrides the retention window for one
// cleanup run. Zero days means the default retention.
type AuditCleanupRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// AuditCleanupResponse reports the outcome of a cleanup run.
type AuditCleanupResponse struct {
	Deleted int64     `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}

// handleAuditQuery filters the audit trail. Every query parameter is
// optional; repeatable parameters (type, category, severity) combine as a
// set within the parameter and AND across parameters.
func (h *Handler) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := auditFilterFromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.audit.Query(ctx, filter)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to query audit events", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &AuditQueryResponse{
		Events: events,
		Count:  len(events),
	})
}

// handleAuditCleanup purges events older than the retention window. An empty
// body runs with the default retention.
func (h *Handler) handleAuditCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AuditCleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.OlderThanDays < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "older_than_days must not be negative"))
		return
	}

	retention := audit.DefaultRetention
	if req.OlderThanDays > 0 {
		retention = time.Duration(req.OlderThanDays) * 24 * time.Hour
	}
	cutoff := requestcontext.Now(ctx).Add(-retention)

	deleted, err := h.audit.Cleanup(ctx, cutoff)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to clean up audit events", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &AuditCleanupResponse{
		Deleted: deleted,
		Cutoff:  cutoff,
	})
}

func auditFilterFromQuery(query url.Values) (audit.Filter, error) {
	filter := audit.Filter{
		ActorID:      query.Get("actor_id"),
		ResourceType: query.Get("resource_type"),
		ResourceID:   query.Get("resource_id"),
	}

	for _, raw := range query["type"] {
		filter.Types = append(filter.Types, audit.EventType(raw))
	}
	for _, raw := range query["category"] {
		filter.Categories = append(filter.Categories, audit.Category(raw))
	}
	for _, raw := range query["severity"] {
		filter.Severities = append(filter.Severities, audit.Severity(raw))
	}

	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "from must be an RFC 3339 timestamp")
		}
		filter.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "to must be an RFC 3339 timestamp")
		}
		filter.To = to
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "limit must be an integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}
