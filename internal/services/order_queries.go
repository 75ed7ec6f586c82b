package services

import (
	"context"
	"strings"
	"time"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

const maxSearchLength = 100

func (s *orderService) GetOrder(ctx context.Context, orderID, customerID string) (Order, error) {
	return s.findOrder(ctx, orderID, customerID)
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber, customerID string) (Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return Order{}, newError(ErrInvalidInput, "order number is required")
	}
	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return Order{}, s.mapRepositoryError("order lookup", err)
	}
	if customerID = strings.TrimSpace(customerID); customerID != "" && order.CustomerID != customerID {
		return Order{}, newError(ErrOrderNotFound, "order %s not found", orderNumber)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (OrderListResult, error) {
	repoFilter, err := buildOrderListFilter(filter)
	if err != nil {
		return OrderListResult{}, err
	}
	page, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return OrderListResult{}, s.mapRepositoryError("order list", err)
	}
	return OrderListResult{Orders: page.Items, Pagination: page.Info}, nil
}

func (s *orderService) GetOrderStats(ctx context.Context) (OrderStats, error) {
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return OrderStats{}, s.mapRepositoryError("order stats", err)
	}
	if stats.Currency == "" {
		stats.Currency = s.pricing.Currency
	}
	return stats, nil
}

func (s *orderService) GetOrderTracking(ctx context.Context, orderID, customerID string) (OrderTracking, error) {
	order, err := s.findOrder(ctx, orderID, customerID)
	if err != nil {
		return OrderTracking{}, err
	}
	return OrderTracking{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		TrackingNumber:  order.TrackingNumber,
		ShippingMethod:  order.ShippingMethod,
		ShippingAddress: order.ShippingAddress,
		Timeline: domain.OrderTimeline{
			Ordered:   order.CreatedAt,
			Shipped:   order.ShippedAt,
			Delivered: order.DeliveredAt,
			Cancelled: order.CancelledAt,
		},
	}, nil
}

// GetUserOrderHistory returns the newest orders of customerID. limit <= 0 selects the configured
// default; values above the maximum are clamped.
func (s *orderService) GetUserOrderHistory(ctx context.Context, customerID string, limit int) ([]OrderSummary, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, newError(ErrInvalidInput, "customer id is required")
	}
	switch {
	case limit <= 0:
		limit = s.historyLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		CustomerID: customerID,
		Page:       1,
		Limit:      limit,
		SortBy:     repositories.OrderSortCreatedAt,
		SortOrder:  domain.SortDesc,
	})
	if err != nil {
		return nil, s.mapRepositoryError("order history", err)
	}

	summaries := make([]OrderSummary, 0, len(page.Items))
	for _, order := range page.Items {
		summaries = append(summaries, OrderSummary{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			TotalAmount: order.Totals.Total,
			Currency:    order.Currency,
			ItemCount:   order.ItemCount(),
			CreatedAt:   order.CreatedAt,
		})
	}
	return summaries, nil
}

func buildOrderListFilter(filter OrderListFilter) (repositories.OrderListFilter, error) {
	if filter.Page < 0 {
		return repositories.OrderListFilter{}, newError(ErrInvalidInput, "page must be at least 1")
	}
	if filter.Limit < 0 || filter.Limit > repositories.MaxOrderPageSize {
		return repositories.OrderListFilter{}, newError(ErrInvalidInput, "limit must be between 1 and %d", repositories.MaxOrderPageSize)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return repositories.OrderListFilter{}, newError(ErrInvalidInput, "unknown order status %q", *filter.Status)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return repositories.OrderListFilter{}, newError(ErrInvalidInput, "date range start is after its end")
	}

	search := strings.TrimSpace(filter.Search)
	if len(search) > maxSearchLength {
		return repositories.OrderListFilter{}, newError(ErrInvalidInput, "search must be at most %d characters", maxSearchLength)
	}

	sortBy := repositories.OrderSortField(strings.TrimSpace(filter.SortBy))
	switch sortBy {
	case "":
		sortBy = repositories.OrderSortCreatedAt
	case repositories.OrderSortCreatedAt, repositories.OrderSortTotalAmount, repositories.OrderSortOrderNumber:
	default:
		return repositories.OrderListFilter{}, newError(ErrInvalidInput, "unsupported sort field %q", filter.SortBy)
	}

	order := domain.SortAsc
	if filter.Desc {
		order = domain.SortDesc
	}

	return repositories.OrderListFilter{
		CustomerID: strings.TrimSpace(filter.CustomerID),
		Status:     filter.Status,
		Search:     search,
		CreatedAt:  domain.RangeQuery[time.Time]{From: filter.From, To: filter.To},
		Page:       filter.Page,
		Limit:      filter.Limit,
		SortBy:     sortBy,
		SortOrder:  order,
	}.Normalized(), nil
}
