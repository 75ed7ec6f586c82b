package services

import (
	"context"
	"time"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	PaymentStatus      = domain.PaymentStatus
	OrderLineItem      = domain.OrderLineItem
	OrderTotals        = domain.OrderTotals
	OrderStats         = domain.OrderStats
	OrderTracking      = domain.OrderTracking
	OrderSummary       = domain.OrderSummary
	Address            = domain.Address
	PageInfo           = domain.PageInfo
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService is the order lifecycle controller plus its read-only query surface.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	AddTrackingNumber(ctx context.Context, cmd AddTrackingNumberCommand) (Order, error)

	GetOrder(ctx context.Context, orderID, customerID string) (Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber, customerID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (OrderListResult, error)
	GetOrderStats(ctx context.Context) (OrderStats, error)
	GetOrderTracking(ctx context.Context, orderID, customerID string) (OrderTracking, error)
	GetUserOrderHistory(ctx context.Context, customerID string, limit int) ([]OrderSummary, error)
}

// CartTranslator turns the active cart into priced, stock-checked line items without mutating stock.
type CartTranslator interface {
	Translate(ctx context.Context, customerID string) (TranslatedCart, error)
}

// InventoryLedger is the only writer of product stock and salesCount.
type InventoryLedger interface {
	Reserve(ctx context.Context, line InventoryLine) error
	Release(ctx context.Context, line InventoryLine) error
	// ReserveAll reserves lines in order. On failure the lines already reserved are released in
	// reverse order before the error is returned.
	ReserveAll(ctx context.Context, lines []InventoryLine) error
	ReleaseAll(ctx context.Context, lines []InventoryLine) error
}

// OrderNumberGenerator issues ORD-YYYYMM-NNNNN identifiers.
type OrderNumberGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// SystemService backs the health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// TranslatedCart is the output of the cart snapshot translator.
type TranslatedCart struct {
	CartID string
	Items  []OrderLineItem
}

// InventoryLine identifies one stock mutation.
type InventoryLine struct {
	ProductID string
	VariantID string
	Quantity  int
}

// CheckoutDetails is the customer-supplied checkout payload.
type CheckoutDetails struct {
	Email           string
	Phone           string
	ShippingAddress Address
	BillingAddress  *Address
	ShippingMethod  string
	PaymentMethod   string
	Notes           string
	CouponCode      string
}

// CreateOrderCommand converts the customer's active cart into an order.
type CreateOrderCommand struct {
	CustomerID string
	Checkout   CheckoutDetails
	ActorID    string
}

// UpdateOrderStatusCommand requests a status change.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	ActorID string
}

// UpdatePaymentStatusCommand records the outcome reported by the payment collaborator.
type UpdatePaymentStatusCommand struct {
	OrderID         string
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	ActorID         string
}

// CancelOrderCommand cancels an order. A non-empty CustomerID restricts the lookup to that customer.
type CancelOrderCommand struct {
	OrderID    string
	CustomerID string
	ActorID    string
}

// AddTrackingNumberCommand attaches carrier tracking details.
type AddTrackingNumberCommand struct {
	OrderID        string
	TrackingNumber string
	ShippingMethod string
	ActorID        string
}

// OrderListFilter is the validated listing query.
type OrderListFilter struct {
	CustomerID string
	Status     *OrderStatus
	Search     string
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
	SortBy     string
	Desc       bool
}

// OrderListResult is one page of orders.
type OrderListResult struct {
	Orders     []Order
	Pagination PageInfo
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	ID             string
	Type           string
	OrderID        string
	OrderNumber    string
	CustomerID     string
	PreviousStatus string
	CurrentStatus  string
	PaymentStatus  string
	TotalAmount    int64
	Currency       string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

const (
	OrderEventCreated        = "order.created"
	OrderEventStatusChanged  = "order.status_changed"
	OrderEventCancelled      = "order.cancelled"
	OrderEventPaymentUpdated = "order.payment_updated"
	OrderEventTrackingAdded  = "order.tracking_added"
)
