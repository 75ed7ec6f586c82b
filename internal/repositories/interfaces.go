package repositories

import (
	"context"
	"time"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository owns the product stock and sales counters. Only the inventory ledger calls the
// mutating methods.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// ReserveStock atomically decrements tracked stock when stock >= quantity and increments salesCount.
	// It fails with InventoryErrorInsufficientStock without mutating anything otherwise.
	ReserveStock(ctx context.Context, adj StockAdjustment) (domain.Product, error)
	// ReleaseStock is the arithmetic inverse of ReserveStock; salesCount is floored at zero.
	ReleaseStock(ctx context.Context, adj StockAdjustment) (domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) error
}

// StockAdjustment describes one ledger mutation against a product or one of its variants.
type StockAdjustment struct {
	ProductID string
	VariantID string
	Quantity  int
	// CountSales toggles salesCount bookkeeping for the adjustment.
	CountSales bool
	Now        time.Time
}

// CartRepository reads the active cart and clears it after checkout.
type CartRepository interface {
	FindActive(ctx context.Context, userID string) (domain.Cart, error)
	Clear(ctx context.Context, cartID string) error
	Upsert(ctx context.Context, cart domain.Cart) error
}

// OrderRepository persists order aggregates. Orders are never deleted.
type OrderRepository interface {
	// Insert fails with a conflict when the id or order number already exists.
	Insert(ctx context.Context, order domain.Order) error
	// Update persists order only when the stored version equals expectedVersion; order.Version must be
	// expectedVersion+1. A mismatch is reported as a conflict.
	Update(ctx context.Context, order domain.Order, expectedVersion int64) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.OffsetPage[domain.Order], error)
	CountInRange(ctx context.Context, from, to time.Time) (int64, error)
	Stats(ctx context.Context) (domain.OrderStats, error)
}

// CounterRepository issues monotonically increasing sequence values.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderSortField enumerates sortable order columns.
type OrderSortField string

const (
	OrderSortCreatedAt   OrderSortField = "createdAt"
	OrderSortTotalAmount OrderSortField = "totalAmount"
	OrderSortOrderNumber OrderSortField = "orderNumber"
)

// OrderListFilter is the enumerated query accepted by OrderRepository.List.
type OrderListFilter struct {
	CustomerID string
	Status     *domain.OrderStatus
	// Search matches order number or email, case-insensitively, as a substring.
	Search string
	// CreatedAt bounds are inclusive.
	CreatedAt domain.RangeQuery[time.Time]
	Page      int
	Limit     int
	SortBy    OrderSortField
	SortOrder domain.SortOrder
}
