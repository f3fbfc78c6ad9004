package httptransport

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "palisade/pkg/domain"
)

// Principal is the identity a request acts as once authentication resolved.
type Principal struct {
	UserID id.UserID
	Role   id.Role
}

// Authenticator verifies login credentials. Invalid credentials surface
// CodeUnauthorized; the transport never learns whether the account exists.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*Principal, error)
}

// OrderStatus is the fulfillment standing of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid checks if the status is one of the supported enum values.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is one product line on an order.
type OrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Order is the transport view of one order.
type Order struct {
	ID         uuid.UUID   `json:"id"`
	UserID     id.UserID   `json:"user_id"`
	Status     OrderStatus `json:"status"`
	Items      []OrderItem `json:"items"`
	TotalCents int64       `json:"total_cents"`
	CreatedAt  time.Time   `json:"created_at"`
}

// OrderService is the ordering collaborator behind the order routes. Missing
// orders surface CodeNotFound; cancelling someone else's order as a customer
// surfaces CodeForbidden.
type OrderService interface {
	Create(ctx context.Context, userID id.UserID, items []OrderItem) (*Order, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Order, error)
	Cancel(ctx context.Context, actor Principal, orderID uuid.UUID) (*Order, error)
	UpdateStatuses(ctx context.Context, orderIDs []uuid.UUID, status OrderStatus) (int, error)
	ListAll(ctx context.Context) ([]*Order, error)
}

// Product is one catalog entry.
type Product struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
}

// CatalogService backs the product routes. Missing products surface
// CodeNotFound.
type CatalogService interface {
	List(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, product *Product) (*Product, error)
	Update(ctx context.Context, product *Product) (*Product, error)
	Delete(ctx context.Context, productID uuid.UUID) error
}
