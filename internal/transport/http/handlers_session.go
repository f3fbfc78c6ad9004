package httptransport

import (
	"net/http"

	"palisade/internal/session"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// SessionListResponse is the body of the "my sessions" listing.
type SessionListResponse struct {
	Sessions []session.Summary `json:"sessions"`
	Count    int               `json:"count"`
}

// handleSessionSnapshot reports the lifecycle state of the caller's own
// session: expiry, last activity, and rotation timestamps.
func (h *Handler) handleSessionSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshot, err := h.registry.Snapshot(requestcontext.SessionID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// handleSessionExtend pushes the caller's expiry out by one idle window,
// capped at the session's absolute ceiling.
func (h *Handler) handleSessionExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshot, err := h.registry.Extend(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "session extension rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// handleListSessions lists every live session of the calling user, marking
// the one this request rode in on.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentID := requestcontext.SessionID(ctx)

	records, err := h.store.ListByUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeInternalError(ctx, w, "failed to list sessions", err)
		return
	}

	summaries := make([]session.Summary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.Summarize(record.ID == currentID))
	}

	httputil.WriteJSON(w, http.StatusOK, &SessionListResponse{
		Sessions: summaries,
		Count:    len(summaries),
	})
}
