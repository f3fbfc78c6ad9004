package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// ProductListResponse is the body of the catalog listing.
type ProductListResponse struct {
	Products []*Product `json:"products"`
	Count    int        `json:"count"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.catalog.List(ctx)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to list products", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &ProductListResponse{
		Products: products,
		Count:    len(products),
	})
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.Create(ctx, &Product{
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, "failed to create product", err)
		return
	}

	h.audit.LogProductEvent(ctx, "product_created",
		"resource_type", "product",
		"resource_id", product.ID.String(),
		"name", product.Name,
	)

	httputil.WriteJSON(w, http.StatusCreated, product)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "product id is not a valid UUID"))
		return
	}

	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.Update(ctx, &Product{
		ID:         productID,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, "failed to update product", err)
		return
	}

	h.audit.LogProductEvent(ctx, "product_updated",
		"resource_type", "product",
		"resource_id", product.ID.String(),
	)

	httputil.WriteJSON(w, http.StatusOK, product)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "product id is not a valid UUID"))
		return
	}

	if err := h.catalog.Delete(ctx, productID); err != nil {
		h.writeCatalogError(ctx, w, "failed to delete product", err)
		return
	}

	h.audit.LogProductEvent(ctx, "product_deleted",
		"resource_type", "product",
		"resource_id", productID.String(),
	)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeProductRequest(w http.ResponseWriter, r *http.Request) (*ProductRequest, bool) {
	ctx := r.Context()

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid product request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return &req, true
}

func (h *Handler) writeCatalogError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeConflict:
		httputil.WriteError(w, err)
	default:
		h.writeInternalError(ctx, w, msg, err)
	}
}
