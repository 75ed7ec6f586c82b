package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/auth"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/idempotency"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

type stubOrderService struct {
	createFn   func(context.Context, services.CreateOrderCommand) (services.Order, error)
	statusFn   func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
	paymentFn  func(context.Context, services.UpdatePaymentStatusCommand) (services.Order, error)
	cancelFn   func(context.Context, services.CancelOrderCommand) (services.Order, error)
	trackingFn func(context.Context, services.AddTrackingNumberCommand) (services.Order, error)
	getFn      func(context.Context, string, string) (services.Order, error)
	byNumberFn func(context.Context, string, string) (services.Order, error)
	listFn     func(context.Context, services.OrderListFilter) (services.OrderListResult, error)
	statsFn    func(context.Context) (services.OrderStats, error)
	trackFn    func(context.Context, string, string) (services.OrderTracking, error)
	historyFn  func(context.Context, string, int) ([]services.OrderSummary, error)
}

var errNotStubbed = errors.New("not stubbed")

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) UpdatePaymentStatus(ctx context.Context, cmd services.UpdatePaymentStatusCommand) (services.Order, error) {
	if s.paymentFn != nil {
		return s.paymentFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) AddTrackingNumber(ctx context.Context, cmd services.AddTrackingNumberCommand) (services.Order, error) {
	if s.trackingFn != nil {
		return s.trackingFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID, customerID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID, customerID)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) GetOrderByNumber(ctx context.Context, number, customerID string) (services.Order, error) {
	if s.byNumberFn != nil {
		return s.byNumberFn(ctx, number, customerID)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (services.OrderListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return services.OrderListResult{}, nil
}

func (s *stubOrderService) GetOrderStats(ctx context.Context) (services.OrderStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return services.OrderStats{}, nil
}

func (s *stubOrderService) GetOrderTracking(ctx context.Context, orderID, customerID string) (services.OrderTracking, error) {
	if s.trackFn != nil {
		return s.trackFn(ctx, orderID, customerID)
	}
	return services.OrderTracking{}, errNotStubbed
}

func (s *stubOrderService) GetUserOrderHistory(ctx context.Context, customerID string, limit int) ([]services.OrderSummary, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, customerID, limit)
	}
	return nil, nil
}

var _ services.OrderService = (*stubOrderService)(nil)

type tokenTable map[string]*firebaseauth.Token

func (t tokenTable) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	if token, ok := t[idToken]; ok {
		return token, nil
	}
	return nil, errors.New("token invalid")
}

var testTokens = tokenTable{
	"customer-token": {UID: "cust-1", Claims: map[string]any{"email": "c@example.com"}},
	"other-token":    {UID: "cust-2"},
	"staff-token":    {UID: "staff-1", Claims: map[string]any{"role": "staff"}},
}

func newOrderRouter(svc services.OrderService, opts ...OrderHandlerOption) http.Handler {
	handler := NewOrderHandlers(auth.NewAuthenticator(testTokens), svc, opts...)
	return NewRouter(WithOrderRoutes(handler.Routes))
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func sampleOrder() services.Order {
	created := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	return services.Order{
		ID:          "01HX0000000000000000000000",
		OrderNumber: "ORD-202405-00001",
		CustomerID:  "cust-1",
		Email:       "c@example.com",
		Items: []domain.OrderLineItem{
			{ProductID: "p1", Name: "Mug", UnitPrice: 1000, Quantity: 2, Total: 2000},
			{ProductID: "p2", Name: "Tee", UnitPrice: 500, Quantity: 1, Total: 500},
		},
		Currency: "USD",
		Totals:   domain.OrderTotals{Subtotal: 2500, Tax: 250, Shipping: 1000, Total: 3750},
		ShippingAddress: domain.Address{
			Recipient: "Ada", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
		PaymentMethod: "card",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

const checkoutBody = `{
	"email": "c@example.com",
	"shippingAddress": {"recipient": "Ada", "line1": "1 Main St", "city": "Springfield", "postalCode": "12345", "country": "US"},
	"paymentMethod": "card",
	"notes": "leave at door"
}`

func TestOrderHandlers_CreateOrder(t *testing.T) {
	var captured services.CreateOrderCommand
	svc := &stubOrderService{createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
		captured = cmd
		return sampleOrder(), nil
	}}

	rec := doRequest(t, newOrderRouter(svc), http.MethodPost, "/api/v1/orders", "customer-token", checkoutBody)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "cust-1", captured.CustomerID)
	assert.Equal(t, "cust-1", captured.ActorID)
	assert.Equal(t, "Springfield", captured.Checkout.ShippingAddress.City)
	assert.Nil(t, captured.Checkout.BillingAddress)
	assert.Equal(t, "leave at door", captured.Checkout.Notes)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ORD-202405-00001", resp.Order.OrderNumber)
	assert.Equal(t, int64(3750), resp.Order.Totals.Total)
	assert.Len(t, resp.Order.Items, 2)
	assert.Equal(t, "2024-05-02T10:00:00Z", resp.Order.CreatedAt)
}

func TestOrderHandlers_CreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty cart", &services.Error{Kind: services.KindValidation, Code: "empty_cart", Message: "cart is empty", Err: services.ErrEmptyCart}, http.StatusBadRequest, "empty_cart"},
		{"insufficient stock", &services.Error{Kind: services.KindConflict, Code: "insufficient_stock", Message: "only 1 left", Err: services.ErrInsufficientStock}, http.StatusConflict, "insufficient_stock"},
		{"product missing", &services.Error{Kind: services.KindNotFound, Code: "product_not_found", Message: "product p9 not found", Err: services.ErrProductNotFound}, http.StatusNotFound, "product_not_found"},
		{"internal", &services.Error{Kind: services.KindInternal, Code: "internal", Message: "order insert failed", Err: services.ErrInternal}, http.StatusInternalServerError, "internal"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "order_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
				return services.Order{}, tc.err
			}}
			rec := doRequest(t, newOrderRouter(svc), http.MethodPost, "/api/v1/orders", "customer-token", checkoutBody)
			require.Equal(t, tc.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tc.code, body["error"])
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "failed to process order request", body["message"])
			}
		})
	}
}

func TestOrderHandlers_CreateOrderRejectsUnknownFields(t *testing.T) {
	rec := doRequest(t, newOrderRouter(&stubOrderService{}), http.MethodPost, "/api/v1/orders", "customer-token", `{"email":"a@b.c","total":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
}

func TestOrderHandlers_CreateOrderIdempotentReplay(t *testing.T) {
	calls := 0
	svc := &stubOrderService{createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
		calls++
		return sampleOrder(), nil
	}}
	router := newOrderRouter(svc, WithOrderIdempotency(idempotency.Middleware(idempotency.NewMemoryStore())))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(checkoutBody))
		req.Header.Set("Authorization", "Bearer customer-token")
		req.Header.Set("Idempotency-Key", "checkout-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 1, calls)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestOrderHandlers_CheckoutRateLimit(t *testing.T) {
	svc := &stubOrderService{createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
		return sampleOrder(), nil
	}}
	router := newOrderRouter(svc, WithCheckoutRateLimit(1, time.Minute))

	require.Equal(t, http.StatusCreated, doRequest(t, router, http.MethodPost, "/api/v1/orders", "customer-token", checkoutBody).Code)
	limited := doRequest(t, router, http.MethodPost, "/api/v1/orders", "customer-token", checkoutBody)
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	body := decodeBody(t, limited)
	assert.Equal(t, "rate_limited", body["error"])
	assert.InDelta(t, 61, body["retryAfterSeconds"], 1)

	// other customers have their own window
	assert.Equal(t, http.StatusCreated, doRequest(t, router, http.MethodPost, "/api/v1/orders", "other-token", checkoutBody).Code)
}

func TestOrderHandlers_ListOrdersScopesCustomers(t *testing.T) {
	var captured services.OrderListFilter
	svc := &stubOrderService{listFn: func(_ context.Context, filter services.OrderListFilter) (services.OrderListResult, error) {
		captured = filter
		return services.OrderListResult{
			Orders:     []services.Order{sampleOrder()},
			Pagination: domain.NewPageInfo(filter.Page, filter.Limit, 21),
		}, nil
	}}
	router := newOrderRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders?userId=cust-9&status=Pending&page=2&limit=5&sortBy=totalAmount&sortOrder=asc&startDate=2024-05-01&endDate=2024-05-31&search=ORD-2024", "customer-token", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "cust-1", captured.CustomerID, "customers cannot list other customers' orders")
	require.NotNil(t, captured.Status)
	assert.Equal(t, domain.OrderStatusPending, *captured.Status)
	assert.Equal(t, 2, captured.Page)
	assert.Equal(t, 5, captured.Limit)
	assert.Equal(t, "totalAmount", captured.SortBy)
	assert.False(t, captured.Desc)
	assert.Equal(t, "ORD-2024", captured.Search)
	require.NotNil(t, captured.From)
	require.NotNil(t, captured.To)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *captured.From)
	assert.Equal(t, time.Date(2024, 5, 31, 23, 59, 59, 999999999, time.UTC), *captured.To)

	var resp orderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Orders, 1)
	assert.Equal(t, int64(21), resp.Pagination.Total)
	assert.Equal(t, 5, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasNext)
	assert.True(t, resp.Pagination.HasPrev)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/orders?userId=cust-9", "staff-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cust-9", captured.CustomerID)
	assert.Equal(t, "createdAt", captured.SortBy)
	assert.True(t, captured.Desc)
	assert.Equal(t, 10, captured.Limit)
}

func TestOrderHandlers_ListOrdersValidation(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	for _, query := range []string{"limit=0", "limit=101", "page=0", "sortBy=email", "sortOrder=up", "status=lost", "startDate=yesterday"} {
		t.Run(query, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, "/api/v1/orders?"+query, "customer-token", "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
		})
	}
}

func TestOrderHandlers_Authentication(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/orders", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/orders/stats", ""},
		{http.MethodPut, "/api/v1/orders/o1/status", `{"status":"shipped"}`},
		{http.MethodPut, "/api/v1/orders/o1/payment", `{"paymentStatus":"completed"}`},
		{http.MethodPut, "/api/v1/orders/o1/tracking", `{"trackingNumber":"1Z"}`},
	} {
		rec := doRequest(t, router, tc.method, tc.path, "customer-token", tc.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestOrderHandlers_GetOrderScopes(t *testing.T) {
	var scopes []string
	svc := &stubOrderService{getFn: func(_ context.Context, orderID, customerID string) (services.Order, error) {
		scopes = append(scopes, customerID)
		if customerID != "" && customerID != "cust-1" {
			return services.Order{}, &services.Error{Kind: services.KindNotFound, Code: "order_not_found", Message: "order not found", Err: services.ErrOrderNotFound}
		}
		return sampleOrder(), nil
	}}
	router := newOrderRouter(svc)

	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/api/v1/orders/o1", "customer-token", "").Code)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/o1", "other-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", decodeBody(t, rec)["error"])
	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/api/v1/orders/o1", "staff-token", "").Code)

	assert.Equal(t, []string{"cust-1", "cust-2", ""}, scopes)
}

func TestOrderHandlers_GetByNumberAndTracking(t *testing.T) {
	shipped := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	svc := &stubOrderService{
		byNumberFn: func(_ context.Context, number, customerID string) (services.Order, error) {
			assert.Equal(t, "ORD-202405-00001", number)
			assert.Equal(t, "cust-1", customerID)
			return sampleOrder(), nil
		},
		trackFn: func(_ context.Context, orderID, customerID string) (services.OrderTracking, error) {
			return services.OrderTracking{
				OrderID:        orderID,
				OrderNumber:    "ORD-202405-00001",
				Status:         domain.OrderStatusShipped,
				TrackingNumber: "1Z999",
				Timeline:       domain.OrderTimeline{Ordered: shipped.Add(-24 * time.Hour), Shipped: &shipped},
			}, nil
		},
	}
	router := newOrderRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/number/ORD-202405-00001", "customer-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/orders/o1/tracking", "customer-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Tracking trackingPayload `json:"tracking"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shipped", resp.Tracking.Status)
	assert.Equal(t, "1Z999", resp.Tracking.TrackingNumber)
	require.NotNil(t, resp.Tracking.Timeline.Shipped)
	assert.Equal(t, "2024-05-03T08:00:00Z", *resp.Tracking.Timeline.Shipped)
	assert.Nil(t, resp.Tracking.Timeline.Delivered)
}

func TestOrderHandlers_UserHistory(t *testing.T) {
	var gotLimit int
	svc := &stubOrderService{historyFn: func(_ context.Context, customerID string, limit int) ([]services.OrderSummary, error) {
		gotLimit = limit
		return []services.OrderSummary{{ID: "o1", OrderNumber: "ORD-202405-00001", Status: domain.OrderStatusPending, TotalAmount: 3750, Currency: "USD", ItemCount: 3}}, nil
	}}
	router := newOrderRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/user/cust-1/history?limit=5", "customer-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, 3, resp.Orders[0].ItemCount)

	assert.Equal(t, http.StatusForbidden, doRequest(t, router, http.MethodGet, "/api/v1/orders/user/cust-1/history", "other-token", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/api/v1/orders/user/cust-1/history", "staff-token", "").Code)
	assert.Equal(t, 0, gotLimit)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, router, http.MethodGet, "/api/v1/orders/user/cust-1/history?limit=x", "staff-token", "").Code)
}

func TestOrderHandlers_CancelOrder(t *testing.T) {
	var captured services.CancelOrderCommand
	svc := &stubOrderService{cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
		captured = cmd
		if cmd.OrderID == "shipped" {
			return services.Order{}, &services.Error{Kind: services.KindConflict, Code: "order_not_cancellable", Message: "order already shipped", Err: services.ErrOrderNotCancellable}
		}
		order := sampleOrder()
		order.Status = domain.OrderStatusCancelled
		return order, nil
	}}
	router := newOrderRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/orders/o1/cancel", "customer-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.CancelOrderCommand{OrderID: "o1", CustomerID: "cust-1", ActorID: "cust-1"}, captured)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/orders/shipped/cancel", "staff-token", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "order_not_cancellable", decodeBody(t, rec)["error"])
	assert.Empty(t, captured.CustomerID)
}

func TestOrderHandlers_StaffMutations(t *testing.T) {
	var statusCmd services.UpdateOrderStatusCommand
	var paymentCmd services.UpdatePaymentStatusCommand
	var trackingCmd services.AddTrackingNumberCommand
	svc := &stubOrderService{
		statusFn: func(_ context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
			statusCmd = cmd
			if cmd.Status == domain.OrderStatusPending {
				return services.Order{}, &services.Error{Kind: services.KindValidation, Code: "invalid_transition", Message: "cannot move", Err: services.ErrInvalidTransition}
			}
			return sampleOrder(), nil
		},
		paymentFn: func(_ context.Context, cmd services.UpdatePaymentStatusCommand) (services.Order, error) {
			paymentCmd = cmd
			return sampleOrder(), nil
		},
		trackingFn: func(_ context.Context, cmd services.AddTrackingNumberCommand) (services.Order, error) {
			trackingCmd = cmd
			return sampleOrder(), nil
		},
		statsFn: func(context.Context) (services.OrderStats, error) {
			return services.OrderStats{TotalOrders: 3, Pending: 1, Cancelled: 2, TotalRevenue: 3750, Currency: "USD"}, nil
		},
	}
	router := newOrderRouter(svc)

	rec := doRequest(t, router, http.MethodPut, "/api/v1/orders/o1/status", "staff-token", `{"status":"SHIPPED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusShipped, statusCmd.Status)
	assert.Equal(t, "staff-1", statusCmd.ActorID)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/o1/status", "staff-token", `{"status":"pending"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decodeBody(t, rec)["error"])

	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/o1/status", "staff-token", `{"status":"lost"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/o1/payment", "staff-token", `{"paymentStatus":"completed","paymentIntentId":"pi_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaymentStatusCompleted, paymentCmd.PaymentStatus)
	assert.Equal(t, "pi_1", paymentCmd.PaymentIntentID)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/o1/payment", "staff-token", `{"paymentStatus":"paid"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/o1/tracking", "staff-token", `{"trackingNumber":" 1Z999 ","shippingMethod":"express"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1Z999", trackingCmd.TrackingNumber)
	assert.Equal(t, "express", trackingCmd.ShippingMethod)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/orders/o1/tracking", "staff-token", `{"trackingNumber":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/orders/stats", "staff-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Stats statsPayload `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Stats.TotalOrders)
	assert.Equal(t, int64(3750), stats.Stats.TotalRevenue)
}

func TestInternalOrderHandlers_Callbacks(t *testing.T) {
	var paymentCmd services.UpdatePaymentStatusCommand
	var trackingCmd services.AddTrackingNumberCommand
	svc := &stubOrderService{
		paymentFn: func(_ context.Context, cmd services.UpdatePaymentStatusCommand) (services.Order, error) {
			paymentCmd = cmd
			return sampleOrder(), nil
		},
		trackingFn: func(_ context.Context, cmd services.AddTrackingNumberCommand) (services.Order, error) {
			trackingCmd = cmd
			return services.Order{}, &services.Error{Kind: services.KindValidation, Code: "invalid_transition", Message: "order is cancelled", Err: services.ErrInvalidTransition}
		},
	}
	internal := NewInternalOrderHandlers(nil, svc)
	router := NewRouter(WithInternalRoutes(internal.Routes))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/internal/orders/o1/payment", "", `{"paymentStatus":"failed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaymentStatusFailed, paymentCmd.PaymentStatus)
	assert.Equal(t, "service:payments", paymentCmd.ActorID)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/internal/orders/o1/tracking", "", `{"trackingNumber":"1Z"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "service:carrier", trackingCmd.ActorID)
}

func TestServiceActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	ctx := auth.WithServiceIdentity(req.Context(), &auth.ServiceIdentity{Collaborator: CollaboratorPayments, Email: "payments@proj.iam.gserviceaccount.com"})
	assert.Equal(t, "service:payments:payments@proj.iam.gserviceaccount.com", serviceActor(req.WithContext(ctx), CollaboratorPayments))

	ctx = auth.WithServiceIdentity(req.Context(), &auth.ServiceIdentity{Subject: "1234"})
	assert.Equal(t, "service:carrier:1234", serviceActor(req.WithContext(ctx), CollaboratorCarrier))
}

func TestCheckoutLimiterWindowResets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newCheckoutLimiter(2, time.Minute, func() time.Time { return now })

	ok, _ := limiter.Allow("c1")
	assert.True(t, ok)
	ok, _ = limiter.Allow("c1")
	assert.True(t, ok)
	ok, wait := limiter.Allow("c1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow("c1")
	assert.True(t, ok)

	var disabled *checkoutLimiter
	ok, _ = disabled.Allow("c1")
	assert.True(t, ok)
	assert.Nil(t, newCheckoutLimiter(0, time.Minute, nil))
}
