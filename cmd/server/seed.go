package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	httptransport "palisade/internal/transport/http"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

// demoData bundles the in-memory collaborators behind the protected routes.
// The binary's job is the protection stack; orders and catalog are stand-ins
// that give the middleware real traffic to guard.
type demoData struct {
	Accounts *demoAccounts
	Orders   *demoOrders
	Catalog  *demoCatalog
}

// AccountCount reports how many demo accounts were seeded.
func (d *demoData) AccountCount() int {
	return len(d.Accounts.accounts)
}

// seedDemoData creates the demo accounts and a small product catalog so the
// server is usable immediately after startup.
func seedDemoData() *demoData {
	catalog := newDemoCatalog()
	for _, product := range []*httptransport.Product{
		{Name: "espresso beans 1kg", PriceCents: 1850, Stock: 120},
		{Name: "pour-over kettle", PriceCents: 6400, Stock: 35},
		{Name: "ceramic mug", PriceCents: 1200, Stock: 200},
	} {
		if _, err := catalog.Create(context.Background(), product); err != nil {
			panic(err)
		}
	}

	accounts := &demoAccounts{accounts: map[string]demoAccount{
		"admin@palisade.local": {
			password:  "admin-dev-password",
			principal: httptransport.Principal{UserID: id.NewUserID(), Role: id.RoleAdmin},
		},
		"manager@palisade.local": {
			password:  "manager-dev-password",
			principal: httptransport.Principal{UserID: id.NewUserID(), Role: id.RoleManager},
		},
		"customer@palisade.local": {
			password:  "customer-dev-password",
			principal: httptransport.Principal{UserID: id.NewUserID(), Role: id.RoleCustomer},
		},
	}}

	return &demoData{
		Accounts: accounts,
		Orders:   newDemoOrders(catalog),
		Catalog:  catalog,
	}
}

type demoAccount struct {
	password  string
	principal httptransport.Principal
}

// demoAccounts is a fixed credential table. Lookup failures and password
// mismatches return the same error so callers cannot probe for accounts.
type demoAccounts struct {
	accounts map[string]demoAccount
}

func (a *demoAccounts) Authenticate(_ context.Context, email, password string) (*httptransport.Principal, error) {
	account, ok := a.accounts[email]
	if !ok || account.password != password {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	principal := account.principal
	return &principal, nil
}

// demoOrders keeps orders in memory and prices them off the demo catalog.
type demoOrders struct {
	mu      sync.Mutex
	catalog *demoCatalog
	orders  map[uuid.UUID]*httptransport.Order
}

func newDemoOrders(catalog *demoCatalog) *demoOrders {
	return &demoOrders{
		catalog: catalog,
		orders:  make(map[uuid.UUID]*httptransport.Order),
	}
}

func (s *demoOrders) Create(ctx context.Context, userID id.UserID, items []httptransport.OrderItem) (*httptransport.Order, error) {
	total, err := s.catalog.priceItems(ctx, items)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	order := &httptransport.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     httptransport.OrderStatusPending,
		Items:      items,
		TotalCents: total,
		CreatedAt:  time.Now().UTC(),
	}
	s.orders[order.ID] = order
	return cloneOrder(order), nil
}

func (s *demoOrders) ListByUser(_ context.Context, userID id.UserID) ([]*httptransport.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]*httptransport.Order, 0)
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, cloneOrder(order))
		}
	}
	return orders, nil
}

func (s *demoOrders) Cancel(_ context.Context, actor httptransport.Principal, orderID uuid.UUID) (*httptransport.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
	}
	if actor.Role == id.RoleCustomer && order.UserID != actor.UserID {
		return nil, dErrors.New(dErrors.CodeForbidden, "order belongs to another user")
	}
	if order.Status == httptransport.OrderStatusShipped {
		return nil, dErrors.New(dErrors.CodeConflict, "shipped orders cannot be cancelled")
	}
	order.Status = httptransport.OrderStatusCancelled
	return cloneOrder(order), nil
}

func (s *demoOrders) UpdateStatuses(_ context.Context, orderIDs []uuid.UUID, status httptransport.OrderStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, orderID := range orderIDs {
		if order, ok := s.orders[orderID]; ok {
			order.Status = status
			updated++
		}
	}
	return updated, nil
}

func (s *demoOrders) ListAll(_ context.Context) ([]*httptransport.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]*httptransport.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, cloneOrder(order))
	}
	return orders, nil
}

func cloneOrder(order *httptransport.Order) *httptransport.Order {
	clone := *order
	clone.Items = append([]httptransport.OrderItem(nil), order.Items...)
	return &clone
}

// demoCatalog keeps products in memory.
type demoCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]*httptransport.Product
}

func newDemoCatalog() *demoCatalog {
	return &demoCatalog{products: make(map[uuid.UUID]*httptransport.Product)}
}

func (s *demoCatalog) List(_ context.Context) ([]*httptransport.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := make([]*httptransport.Product, 0, len(s.products))
	for _, product := range s.products {
		clone := *product
		products = append(products, &clone)
	}
	return products, nil
}

func (s *demoCatalog) Create(_ context.Context, product *httptransport.Product) (*httptransport.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *product
	created.ID = uuid.New()
	s.products[created.ID] = &created
	clone := created
	return &clone, nil
}

func (s *demoCatalog) Update(_ context.Context, product *httptransport.Product) (*httptransport.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "product not found")
	}
	updated := *product
	s.products[updated.ID] = &updated
	clone := updated
	return &clone, nil
}

func (s *demoCatalog) Delete(_ context.Context, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "product not found")
	}
	delete(s.products, productID)
	return nil
}

// priceItems totals an order against current catalog prices. Unknown product
// IDs fail validation rather than pricing at zero.
func (s *demoCatalog) priceItems(_ context.Context, items []httptransport.OrderItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, item := range items {
		product, ok := s.products[item.ProductID]
		if !ok {
			return 0, dErrors.New(dErrors.CodeValidation, "unknown product in order")
		}
		total += product.PriceCents * int64(item.Quantity)
	}
	return total, nil
}
