// Package handler exposes the operator endpoints for the rate limiter:
// resetting counters and inspecting current usage. Admin authentication is
// the router's concern; these handlers assume it already happened.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"palisade/internal/ratelimit/models"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// Service defines the rate limit operations exposed to operators.
type Service interface {
	Reset(ctx context.Context, req *models.ResetRateLimitRequest) error
	Status(ctx context.Context, identifier models.Identifier, class models.EndpointClass) (*models.RateLimitStatus, error)
	StatusAll(ctx context.Context, identifier models.Identifier) ([]*models.RateLimitStatus, error)
}

// Handler handles rate limit admin endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a new rate limit admin Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// RegisterAdmin registers the admin routes with the chi router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/rate-limit/reset", h.handleResetRateLimit)
	r.Get("/admin/rate-limit/status", h.handleRateLimitStatus)
}

// handleResetRateLimit clears counters for one identifier, either for a
// single endpoint class or for all of them when class is omitted.
func (h *Handler) handleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ResetRateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid rate limit reset request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.service.Reset(ctx, &req); err != nil {
		h.writeServiceError(ctx, w, "failed to reset rate limit", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRateLimitStatus reports current usage for one identifier. With a
// class query parameter it returns that class's status, otherwise the
// status of every configured class.
func (h *Handler) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	req := models.RateLimitStatusRequest{
		Tier:       models.IdentifierTier(query.Get("tier")),
		Identifier: query.Get("identifier"),
		Class:      models.EndpointClass(query.Get("class")),
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "invalid rate limit status request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	if req.Class != "" {
		status, err := h.service.Status(ctx, req.ToIdentifier(), req.Class)
		if err != nil {
			h.writeServiceError(ctx, w, "failed to look up rate limit status", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, status)
		return
	}

	statuses, err := h.service.StatusAll(ctx, req.ToIdentifier())
	if err != nil {
		h.writeServiceError(ctx, w, "failed to look up rate limit status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statuses)
}

// writeServiceError maps a service error onto the response, logging at a
// level matching whose fault it was.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.Is(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
