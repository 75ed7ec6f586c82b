package domain

import "time"

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc orders results ascending.
	SortAsc SortOrder = "asc"
	// SortDesc orders results descending.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Product is the catalog entity whose stock and sales counters are owned by the order core.
type Product struct {
	ID            string
	SKU           string
	Name          string
	Price         int64
	Currency      string
	Stock         int
	SalesCount    int
	TrackQuantity bool
	Images        []string
	Variants      []ProductVariant
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductVariant carries a variant-level stock counter. A zero Price inherits the product price.
type ProductVariant struct {
	ID    string
	SKU   string
	Name  string
	Price int64
	Stock int
}

// Variant returns the variant with the given ID.
func (p Product) Variant(variantID string) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// PrimaryImage returns the first image reference or an empty string.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Cart aggregates the mutable shopping cart state for a user.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single product entry within a cart. Price is the unit price captured at add time.
type CartItem struct {
	ProductID string
	VariantID string
	Quantity  int
	Price     int64
	AddedAt   time.Time
}

// OrderStatus enumerates valid fulfilment states for orders.
type OrderStatus string

const (
	// OrderStatusPending marks a freshly created order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing marks an order accepted for fulfilment.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped marks an order handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered marks an order received by the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is terminal; stock has been restored.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// PaymentStatus is the billing axis, independent from OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Order is the aggregate root persisted once per checkout.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerID      string
	Email           string
	Phone           string
	Items           []OrderLineItem
	Currency        string
	Totals          OrderTotals
	ShippingAddress Address
	BillingAddress  *Address
	ShippingMethod  string
	PaymentMethod   string
	PaymentIntentID string
	CouponCode      string
	Notes           string
	TrackingNumber  string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// OrderTotals holds rolled-up monetary fields in the smallest currency unit.
type OrderTotals struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Discount int64
	Total    int64
}

// OrderLineItem is the immutable purchase snapshot captured at checkout.
type OrderLineItem struct {
	ProductID string
	VariantID string
	Name      string
	SKU       string
	UnitPrice int64
	Quantity  int
	Total     int64
	Image     string
}

// ItemCount sums the quantities across line items.
func (o Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// Address represents postal address structures shared by customer and order layers.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// OrderStats summarises order counts per status and revenue from non-cancelled orders.
type OrderStats struct {
	TotalOrders  int64
	Pending      int64
	Processing   int64
	Shipped      int64
	Delivered    int64
	Cancelled    int64
	TotalRevenue int64
	Currency     string
}

// Count returns the stat counter for the given status.
func (s OrderStats) Count(status OrderStatus) int64 {
	switch status {
	case OrderStatusPending:
		return s.Pending
	case OrderStatusProcessing:
		return s.Processing
	case OrderStatusShipped:
		return s.Shipped
	case OrderStatusDelivered:
		return s.Delivered
	case OrderStatusCancelled:
		return s.Cancelled
	default:
		return 0
	}
}

// Add increments the counter for status and folds the order total into revenue when not cancelled.
func (s *OrderStats) Add(status OrderStatus, total int64) {
	s.TotalOrders++
	switch status {
	case OrderStatusPending:
		s.Pending++
	case OrderStatusProcessing:
		s.Processing++
	case OrderStatusShipped:
		s.Shipped++
	case OrderStatusDelivered:
		s.Delivered++
	case OrderStatusCancelled:
		s.Cancelled++
		return
	}
	s.TotalRevenue += total
}

// OrderTracking projects the shipping-facing view of an order.
type OrderTracking struct {
	OrderID         string
	OrderNumber     string
	Status          OrderStatus
	TrackingNumber  string
	ShippingMethod  string
	ShippingAddress Address
	Timeline        OrderTimeline
}

// OrderTimeline lists lifecycle timestamps.
type OrderTimeline struct {
	Ordered   time.Time
	Shipped   *time.Time
	Delivered *time.Time
	Cancelled *time.Time
}

// OrderSummary is the compact projection used for order history.
type OrderSummary struct {
	ID          string
	OrderNumber string
	Status      OrderStatus
	TotalAmount int64
	Currency    string
	ItemCount   int
	CreatedAt   time.Time
}

// PageInfo describes offset pagination state.
type PageInfo struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewPageInfo derives page counters from the total row count.
func NewPageInfo(page, limit int, total int64) PageInfo {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return PageInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// OffsetPage is a page of results addressed by page number.
type OffsetPage[T any] struct {
	Items []T
	Info  PageInfo
}

// SystemHealthReport aggregates dependency checks for readiness probes.
type SystemHealthReport struct {
	Status      string
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}

// SystemHealthCheck stores the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
	Error     string
}

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)
