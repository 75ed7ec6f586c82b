package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/auth"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/httpx"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/pagination"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

const (
	defaultOrderPageSize = 10
	maxOrderPageSize     = 100
	dateOnlyLayout       = "2006-01-02"
)

var orderListOptions = pagination.Options{
	DefaultLimit: defaultOrderPageSize,
	MaxLimit:     maxOrderPageSize,
	SortFields:   []string{"createdAt", "totalAmount", "orderNumber"},
	DefaultDesc:  true,
}

// OrderHandlers exposes the /orders endpoints for customers and staff.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
	limiter     *checkoutLimiter
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithOrderIdempotency wraps order creation with the given idempotency middleware.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithCheckoutRateLimit caps order creation at limit attempts per customer per window.
func WithCheckoutRateLimit(limit int, window time.Duration) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.limiter = newCheckoutLimiter(limit, window, nil)
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints. Every route needs a verified Firebase token; stats and
// fulfilment mutations additionally need the staff or admin role.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Group(func(customer chi.Router) {
		if h.authn != nil {
			customer.Use(h.authn.Authenticate())
		}
		create := http.Handler(http.HandlerFunc(h.createOrder))
		if h.idempotency != nil {
			create = h.idempotency(create)
		}
		customer.Get("/", h.listOrders)
		customer.Method(http.MethodPost, "/", create)
		customer.Get("/number/{orderNumber}", h.getOrderByNumber)
		customer.Get("/user/{userId}/history", h.getUserHistory)
		customer.Get("/{orderID}", h.getOrder)
		customer.Get("/{orderID}/tracking", h.getTracking)
		customer.Post("/{orderID}/cancel", h.cancelOrder)
	})

	r.Group(func(staff chi.Router) {
		if h.authn != nil {
			staff.Use(h.authn.Authenticate(auth.RoleStaff, auth.RoleAdmin))
		}
		staff.Get("/stats", h.getStats)
		staff.Put("/{orderID}/status", h.updateStatus)
		staff.Put("/{orderID}/payment", h.updatePayment)
		staff.Put("/{orderID}/tracking", h.addTracking)
	})
}

type addressPayload struct {
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

type createOrderRequest struct {
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	ShippingAddress addressPayload  `json:"shippingAddress"`
	BillingAddress  *addressPayload `json:"billingAddress"`
	ShippingMethod  string          `json:"shippingMethod"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes"`
	CouponCode      string          `json:"couponCode"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updatePaymentRequest struct {
	PaymentStatus   string `json:"paymentStatus"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type trackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	ShippingMethod string `json:"shippingMethod"`
}

type lineItemPayload struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Name      string `json:"name"`
	SKU       string `json:"sku,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Total     int64  `json:"total"`
	Image     string `json:"image,omitempty"`
}

type totalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type orderPayload struct {
	ID              string            `json:"id"`
	OrderNumber     string            `json:"orderNumber"`
	CustomerID      string            `json:"customerId"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone,omitempty"`
	Items           []lineItemPayload `json:"items"`
	Currency        string            `json:"currency"`
	Totals          totalsPayload     `json:"totals"`
	ShippingAddress addressPayload    `json:"shippingAddress"`
	BillingAddress  *addressPayload   `json:"billingAddress,omitempty"`
	ShippingMethod  string            `json:"shippingMethod,omitempty"`
	PaymentMethod   string            `json:"paymentMethod"`
	PaymentIntentID string            `json:"paymentIntentId,omitempty"`
	CouponCode      string            `json:"couponCode,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	TrackingNumber  string            `json:"trackingNumber,omitempty"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"paymentStatus"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
	ShippedAt       *string           `json:"shippedAt,omitempty"`
	DeliveredAt     *string           `json:"deliveredAt,omitempty"`
	CancelledAt     *string           `json:"cancelledAt,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type paginationPayload struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

type orderListResponse struct {
	Orders     []orderPayload    `json:"orders"`
	Pagination paginationPayload `json:"pagination"`
}

type statsPayload struct {
	TotalOrders  int64  `json:"totalOrders"`
	Pending      int64  `json:"pendingOrders"`
	Processing   int64  `json:"processingOrders"`
	Shipped      int64  `json:"shippedOrders"`
	Delivered    int64  `json:"deliveredOrders"`
	Cancelled    int64  `json:"cancelledOrders"`
	TotalRevenue int64  `json:"totalRevenue"`
	Currency     string `json:"currency,omitempty"`
}

type timelinePayload struct {
	Ordered   string  `json:"ordered"`
	Shipped   *string `json:"shipped,omitempty"`
	Delivered *string `json:"delivered,omitempty"`
	Cancelled *string `json:"cancelled,omitempty"`
}

type trackingPayload struct {
	OrderID         string          `json:"orderId"`
	OrderNumber     string          `json:"orderNumber"`
	Status          string          `json:"status"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	ShippingMethod  string          `json:"shippingMethod,omitempty"`
	ShippingAddress addressPayload  `json:"shippingAddress"`
	Timeline        timelinePayload `json:"timeline"`
}

type summaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
	Currency    string `json:"currency"`
	ItemCount   int    `json:"itemCount"`
	CreatedAt   string `json:"createdAt"`
}

type historyResponse struct {
	Orders []summaryPayload `json:"orders"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if allowed, retryAfter := h.limiter.Allow(identity.UID); !allowed {
		seconds := int(retryAfter.Round(time.Second)/time.Second) + 1
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts, try again later", http.StatusTooManyRequests).
			WithDetails(map[string]any{"retryAfterSeconds": seconds}))
		return
	}

	var req createOrderRequest
	if apiErr := httpx.DecodeJSON(r, &req); apiErr != nil {
		httpx.WriteError(ctx, w, *apiErr)
		return
	}

	checkout := services.CheckoutDetails{
		Email:           strings.TrimSpace(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		ShippingAddress: req.ShippingAddress.toDomain(),
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		Notes:           req.Notes,
		CouponCode:      strings.TrimSpace(req.CouponCode),
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		checkout.BillingAddress = &billing
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		CustomerID: identity.UID,
		Checkout:   checkout,
		ActorID:    identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	params, err := pagination.Parse(query, orderListOptions)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		CustomerID: identity.CustomerScope(),
		Search:     strings.TrimSpace(query.Get("search")),
		Page:       params.Page,
		Limit:      params.Limit,
		SortBy:     params.SortBy,
		Desc:       params.Desc,
	}
	if identity.IsStaff() {
		filter.CustomerID = strings.TrimSpace(query.Get("userId"))
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := parseOrderStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not a known order status", http.StatusBadRequest))
			return
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("startDate")); raw != "" {
		ts, err := parseTimeParam(raw, false)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "startDate must be an RFC3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		filter.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("endDate")); raw != "" {
		ts, err := parseTimeParam(raw, true)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "endDate must be an RFC3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		filter.To = &ts
	}

	result, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	orders := make([]orderPayload, 0, len(result.Orders))
	for _, order := range result.Orders {
		orders = append(orders, buildOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: orders,
		Pagination: paginationPayload{
			Page:       result.Pagination.Page,
			Limit:      result.Pagination.Limit,
			Total:      result.Pagination.Total,
			TotalPages: result.Pagination.TotalPages,
			HasNext:    result.Pagination.HasNext,
			HasPrev:    result.Pagination.HasPrev,
		},
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, identity.CustomerScope())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	if number == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order number is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrderByNumber(ctx, number, identity.CustomerScope())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	tracking, err := h.orders.GetOrderTracking(ctx, orderID, identity.CustomerScope())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tracking": buildTrackingPayload(tracking)})
}

func (h *OrderHandlers) getUserHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}
	if !identity.IsStaff() && userID != identity.UID {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "cannot read another customer's order history", http.StatusForbidden))
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	summaries, err := h.orders.GetUserOrderHistory(ctx, userID, limit)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	items := make([]summaryPayload, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, summaryPayload{
			ID:          s.ID,
			OrderNumber: s.OrderNumber,
			Status:      string(s.Status),
			TotalAmount: s.TotalAmount,
			Currency:    s.Currency,
			ItemCount:   s.ItemCount,
			CreatedAt:   formatTimestamp(s.CreatedAt),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, historyResponse{Orders: items})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID:    orderID,
		CustomerID: identity.CustomerScope(),
		ActorID:    identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}
	stats, err := h.orders.GetOrderStats(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"stats": statsPayload{
		TotalOrders:  stats.TotalOrders,
		Pending:      stats.Pending,
		Processing:   stats.Processing,
		Shipped:      stats.Shipped,
		Delivered:    stats.Delivered,
		Cancelled:    stats.Cancelled,
		TotalRevenue: stats.TotalRevenue,
		Currency:     stats.Currency,
	}})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if apiErr := httpx.DecodeJSON(r, &req); apiErr != nil {
		httpx.WriteError(ctx, w, *apiErr)
		return
	}
	status, ok := parseOrderStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not a known order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: orderID,
		Status:  status,
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	applyPaymentUpdate(ctx, w, r, h.orders, orderID, identity.UID)
}

func (h *OrderHandlers) addTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	applyTracking(ctx, w, r, h.orders, orderID, identity.UID)
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// applyPaymentUpdate is shared by the staff route and the payment collaborator callback.
func applyPaymentUpdate(ctx context.Context, w http.ResponseWriter, r *http.Request, orders services.OrderService, orderID, actorID string) {
	var req updatePaymentRequest
	if apiErr := httpx.DecodeJSON(r, &req); apiErr != nil {
		httpx.WriteError(ctx, w, *apiErr)
		return
	}
	status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus)))
	if !status.Valid() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "paymentStatus must be one of pending, completed, failed, refunded", http.StatusBadRequest).
			WithDetails(map[string]any{"field": "paymentStatus"}))
		return
	}

	order, err := orders.UpdatePaymentStatus(ctx, services.UpdatePaymentStatusCommand{
		OrderID:         orderID,
		PaymentStatus:   status,
		PaymentIntentID: strings.TrimSpace(req.PaymentIntentID),
		ActorID:         actorID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// applyTracking is shared by the staff route and the carrier collaborator callback.
func applyTracking(ctx context.Context, w http.ResponseWriter, r *http.Request, orders services.OrderService, orderID, actorID string) {
	var req trackingRequest
	if apiErr := httpx.DecodeJSON(r, &req); apiErr != nil {
		httpx.WriteError(ctx, w, *apiErr)
		return
	}
	if strings.TrimSpace(req.TrackingNumber) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "trackingNumber is required", http.StatusBadRequest))
		return
	}

	order, err := orders.AddTrackingNumber(ctx, services.AddTrackingNumberCommand{
		OrderID:        orderID,
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
		ShippingMethod: strings.TrimSpace(req.ShippingMethod),
		ActorID:        actorID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func orderIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if svcErr, ok := services.AsError(err); ok {
		message := svcErr.Message
		if svcErr.Kind == services.KindInternal {
			message = "failed to process order request"
		}
		httpx.WriteError(ctx, w, httpx.NewError(svcErr.Code, message, svcErr.HTTPStatus()))
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "order request timed out", http.StatusGatewayTimeout))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// parseTimeParam accepts RFC3339 timestamps or plain dates. A plain end date covers the whole day.
func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{
		Recipient:  strings.TrimSpace(a.Recipient),
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      a.Line2,
		City:       strings.TrimSpace(a.City),
		State:      a.State,
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      a.Phone,
	}
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]lineItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemPayload{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Total:     item.Total,
			Image:     item.Image,
		})
	}

	payload := orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Email:       order.Email,
		Phone:       order.Phone,
		Items:       items,
		Currency:    order.Currency,
		Totals: totalsPayload{
			Subtotal: order.Totals.Subtotal,
			Tax:      order.Totals.Tax,
			Shipping: order.Totals.Shipping,
			Discount: order.Totals.Discount,
			Total:    order.Totals.Total,
		},
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		ShippingMethod:  order.ShippingMethod,
		PaymentMethod:   order.PaymentMethod,
		PaymentIntentID: order.PaymentIntentID,
		CouponCode:      order.CouponCode,
		Notes:           order.Notes,
		TrackingNumber:  order.TrackingNumber,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		CreatedAt:       formatTimestamp(order.CreatedAt),
		UpdatedAt:       formatTimestamp(order.UpdatedAt),
		ShippedAt:       formatOptionalTimestamp(order.ShippedAt),
		DeliveredAt:     formatOptionalTimestamp(order.DeliveredAt),
		CancelledAt:     formatOptionalTimestamp(order.CancelledAt),
	}
	if order.BillingAddress != nil {
		billing := buildAddressPayload(*order.BillingAddress)
		payload.BillingAddress = &billing
	}
	return payload
}

func buildTrackingPayload(tracking services.OrderTracking) trackingPayload {
	return trackingPayload{
		OrderID:         tracking.OrderID,
		OrderNumber:     tracking.OrderNumber,
		Status:          string(tracking.Status),
		TrackingNumber:  tracking.TrackingNumber,
		ShippingMethod:  tracking.ShippingMethod,
		ShippingAddress: buildAddressPayload(tracking.ShippingAddress),
		Timeline: timelinePayload{
			Ordered:   formatTimestamp(tracking.Timeline.Ordered),
			Shipped:   formatOptionalTimestamp(tracking.Timeline.Shipped),
			Delivered: formatOptionalTimestamp(tracking.Timeline.Delivered),
			Cancelled: formatOptionalTimestamp(tracking.Timeline.Cancelled),
		},
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTimestamp(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	formatted := formatTimestamp(*t)
	return &formatted
}
