package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

type orderStore struct{ s *Store }

func (o orderStore) Insert(_ context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("orders.insert: order id is required")
	}
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	if _, exists := o.s.orders[order.ID]; exists {
		return repositories.NewConflictError("orders.insert", fmt.Errorf("order %s already exists", order.ID))
	}
	if _, exists := o.s.numbers[order.OrderNumber]; exists {
		return repositories.NewConflictError("orders.insert", fmt.Errorf("order number %s already exists", order.OrderNumber))
	}
	o.s.orders[order.ID] = cloneOrder(order)
	o.s.numbers[order.OrderNumber] = order.ID
	return nil
}

func (o orderStore) Update(_ context.Context, order domain.Order, expectedVersion int64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	current, ok := o.s.orders[order.ID]
	if !ok {
		return repositories.NewNotFoundError("orders.update", fmt.Errorf("order %s not found", order.ID))
	}
	if current.Version != expectedVersion {
		return repositories.NewConflictError("orders.update", fmt.Errorf("order %s version %d, expected %d", order.ID, current.Version, expectedVersion))
	}
	if current.OrderNumber != order.OrderNumber {
		return repositories.NewConflictError("orders.update", fmt.Errorf("order %s number is immutable", order.ID))
	}
	o.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (o orderStore) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	order, ok := o.s.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.find", fmt.Errorf("order %s not found", orderID))
	}
	return cloneOrder(order), nil
}

func (o orderStore) FindByOrderNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	id, ok := o.s.numbers[orderNumber]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.find_by_number", fmt.Errorf("order %s not found", orderNumber))
	}
	return cloneOrder(o.s.orders[id]), nil
}

func (o orderStore) List(_ context.Context, filter repositories.OrderListFilter) (domain.OffsetPage[domain.Order], error) {
	filter = filter.Normalized()

	o.s.mu.Lock()
	matched := make([]domain.Order, 0, len(o.s.orders))
	for _, order := range o.s.orders {
		if filter.Matches(order) && filter.MatchesSearch(order) {
			matched = append(matched, cloneOrder(order))
		}
	}
	o.s.mu.Unlock()

	return filter.PageOf(matched), nil
}

func (o orderStore) CountInRange(_ context.Context, from, to time.Time) (int64, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	var count int64
	for _, order := range o.s.orders {
		if !order.CreatedAt.Before(from) && order.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (o orderStore) Stats(_ context.Context) (domain.OrderStats, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	var stats domain.OrderStats
	for _, order := range o.s.orders {
		stats.Add(order.Status, order.Totals.Total)
		if stats.Currency == "" {
			stats.Currency = order.Currency
		}
	}
	return stats, nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	order.ShippingAddress = cloneAddress(order.ShippingAddress)
	if order.BillingAddress != nil {
		billing := cloneAddress(*order.BillingAddress)
		order.BillingAddress = &billing
	}
	order.ShippedAt = cloneTime(order.ShippedAt)
	order.DeliveredAt = cloneTime(order.DeliveredAt)
	order.CancelledAt = cloneTime(order.CancelledAt)
	return order
}

func cloneAddress(addr domain.Address) domain.Address {
	addr.Line2 = cloneString(addr.Line2)
	addr.State = cloneString(addr.State)
	addr.Phone = cloneString(addr.Phone)
	return addr
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
