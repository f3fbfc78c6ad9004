package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// OrderListResponse is the body of an order listing.
type OrderListResponse struct {
	Orders []*Order `json:"orders"`
	Count  int      `json:"count"`
}

// BulkOrderStatusResponse reports how many orders a batch update touched.
type BulkOrderStatusResponse struct {
	Updated int `json:"updated"`
}

// OrderExportResponse is the staff-facing dump of every order.
type OrderExportResponse struct {
	Orders     []*Order  `json:"orders"`
	Count      int       `json:"count"`
	ExportedAt time.Time `json:"exported_at"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create order request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	order, err := h.orders.Create(ctx, requestcontext.UserID(ctx), req.ToItems())
	if err != nil {
		h.writeOrderError(ctx, w, "failed to create order", err)
		return
	}

	h.audit.LogOrderEvent(ctx, "order_created",
		"resource_type", "order",
		"resource_id", order.ID.String(),
		"items", len(order.Items),
		"total_cents", order.TotalCents,
	)

	httputil.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orders, err := h.orders.ListByUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeInternalError(ctx, w, "failed to list orders", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &OrderListResponse{
		Orders: orders,
		Count:  len(orders),
	})
}

// handleCancelOrder cancels one order. Customers may only cancel their own;
// the order service enforces ownership against the acting principal.
func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "order id is not a valid UUID"))
		return
	}

	actor := Principal{UserID: requestcontext.UserID(ctx), Role: requestcontext.Role(ctx)}
	order, err := h.orders.Cancel(ctx, actor, orderID)
	if err != nil {
		h.writeOrderError(ctx, w, "failed to cancel order", err)
		return
	}

	h.audit.LogOrderEvent(ctx, "order_cancelled",
		"resource_type", "order",
		"resource_id", order.ID.String(),
	)

	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) handleBulkOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BulkOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid bulk status request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.orders.UpdateStatuses(ctx, req.ToOrderIDs(), req.Status)
	if err != nil {
		h.writeOrderError(ctx, w, "failed to update order statuses", err)
		return
	}

	h.audit.LogOrderEvent(ctx, "bulk_order_update",
		"status", string(req.Status),
		"requested", len(req.OrderIDs),
		"updated", updated,
	)

	httputil.WriteJSON(w, http.StatusOK, &BulkOrderStatusResponse{Updated: updated})
}

// handleExportOrders dumps every order for staff reporting. The export is
// recorded on the audit trail as a data access.
func (h *Handler) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orders, err := h.orders.ListAll(ctx)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to export orders", err)
		return
	}

	h.audit.LogDataAccess(ctx, "data_exported",
		"resource_type", "order",
		"count", len(orders),
	)

	httputil.WriteJSON(w, http.StatusOK, &OrderExportResponse{
		Orders:     orders,
		Count:      len(orders),
		ExportedAt: requestcontext.Now(ctx),
	})
}

// writeOrderError forwards expected domain errors and hides everything else
// behind an opaque 500.
func (h *Handler) writeOrderError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeForbidden, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeConflict:
		httputil.WriteError(w, err)
	default:
		h.writeInternalError(ctx, w, msg, err)
	}
}
