package httptransport

import (
	"strings"

	"github.com/google/uuid"

	dErrors "palisade/pkg/domain-errors"
)

// Size caps for request bodies. Anything above these is rejected before any
// service call happens.
const (
	MaxEmailLength    = 255
	MaxPasswordLength = 512
	MaxProductName    = 255
	MaxOrderItems     = 100
	MaxBulkOrders     = 100
	MaxItemQuantity   = 1000
)

// LoginRequest carries the credential pair of a login attempt.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.Email) > MaxEmailLength {
		return dErrors.New(dErrors.CodeValidation, "email must be 255 characters or less")
	}
	if len(r.Password) > MaxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be 512 characters or less")
	}

	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}

	if !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "email is not valid")
	}

	return nil
}

// OrderItemRequest is one line of a create-order request.
type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest carries the lines of a new order.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *CreateOrderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.Items) > MaxOrderItems {
		return dErrors.New(dErrors.CodeValidation, "order must have 100 items or less")
	}

	if len(r.Items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "order must have at least one item")
	}

	for _, item := range r.Items {
		if item.ProductID == "" {
			return dErrors.New(dErrors.CodeValidation, "item product_id is required")
		}
		if _, err := uuid.Parse(item.ProductID); err != nil {
			return dErrors.New(dErrors.CodeValidation, "item product_id is not a valid UUID")
		}
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			return dErrors.New(dErrors.CodeValidation, "item quantity must be between 1 and 1000")
		}
	}

	return nil
}

// ToItems converts the validated request lines into order items.
func (r *CreateOrderRequest) ToItems() []OrderItem {
	items := make([]OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, OrderItem{
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
		})
	}
	return items
}

// BulkOrderStatusRequest moves a batch of orders to one status.
type BulkOrderStatusRequest struct {
	OrderIDs []string    `json:"order_ids"`
	Status   OrderStatus `json:"status"`
}

func (r *BulkOrderStatusRequest) Normalize() {
	if r == nil {
		return
	}
	r.Status = OrderStatus(strings.TrimSpace(strings.ToLower(string(r.Status))))
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *BulkOrderStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.OrderIDs) > MaxBulkOrders {
		return dErrors.New(dErrors.CodeValidation, "at most 100 orders per batch")
	}

	if len(r.OrderIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "order_ids is required")
	}
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}

	for _, raw := range r.OrderIDs {
		if _, err := uuid.Parse(raw); err != nil {
			return dErrors.New(dErrors.CodeValidation, "order_ids must be valid UUIDs")
		}
	}

	if !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status must be 'pending', 'confirmed', 'shipped', or 'cancelled'")
	}

	return nil
}

// ToOrderIDs converts the validated id strings into UUIDs.
func (r *BulkOrderStatusRequest) ToOrderIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.OrderIDs))
	for _, raw := range r.OrderIDs {
		ids = append(ids, uuid.MustParse(raw))
	}
	return ids
}

// ProductRequest carries the mutable fields of a catalog entry. Create and
// update share it.
type ProductRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

func (r *ProductRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *ProductRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if len(r.Name) > MaxProductName {
		return dErrors.New(dErrors.CodeValidation, "name must be 255 characters or less")
	}

	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}

	if r.PriceCents < 0 {
		return dErrors.New(dErrors.CodeValidation, "price_cents must not be negative")
	}
	if r.Stock < 0 {
		return dErrors.New(dErrors.CodeValidation, "stock must not be negative")
	}

	return nil
}
