package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	pfirestore "github.com/a2z-dev007/ecommerce-backend/internal/platform/firestore"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// OrderRepository persists orders. Order numbers are claimed through a companion document created
// in the same transaction as the order.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[domain.Order, orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection(provider, ordersCollection, orderCodec),
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" || strings.TrimSpace(order.OrderNumber) == "" {
		return errors.New("orders.insert: order id and number are required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderRef := client.Collection(ordersCollection).Doc(order.ID)
	numberRef := client.Collection(orderNumbersCollection).Doc(order.OrderNumber)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(numberRef, orderNumberDocument{OrderID: order.ID, CreatedAt: order.CreatedAt.UTC()}); err != nil {
			return err
		}
		return tx.Create(orderRef, encodeOrder(order))
	}, pfirestore.WithTxAttempts(1))
	if repositories.IsConflict(err) {
		return repositories.NewConflictError("orders.insert", fmt.Errorf("order %s or number %s already exists", order.ID, order.OrderNumber))
	}
	return err
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.Ref(ctx, order.ID)
		if err != nil {
			return err
		}
		current, err := r.orders.GetTx(tx, ref)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return repositories.NewConflictError("orders.update", fmt.Errorf("order %s version %d, expected %d", order.ID, current.Version, expectedVersion))
		}
		if current.OrderNumber != order.OrderNumber {
			return repositories.NewConflictError("orders.update", fmt.Errorf("order %s number is immutable", order.ID))
		}
		return r.orders.SetTx(tx, ref, order)
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.orders.Get(ctx, strings.TrimSpace(orderID))
}

func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	orders, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", orderNumber).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, repositories.NewNotFoundError("orders.find_by_number", fmt.Errorf("order %s not found", orderNumber))
	}
	return orders[0], nil
}

// List pushes equality and range predicates to Firestore. Search and sorts that Firestore cannot
// combine with a createdAt range are applied in process over the filtered set.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.OffsetPage[domain.Order], error) {
	filter = filter.Normalized()
	base := func(q firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			q = q.Where("customerId", "==", filter.CustomerID)
		}
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if from := filter.CreatedAt.From; from != nil {
			q = q.Where("createdAt", ">=", from.UTC())
		}
		if to := filter.CreatedAt.To; to != nil {
			q = q.Where("createdAt", "<=", to.UTC())
		}
		return q
	}

	hasRange := filter.CreatedAt.From != nil || filter.CreatedAt.To != nil
	serverSide := strings.TrimSpace(filter.Search) == "" &&
		(!hasRange || filter.SortBy == repositories.OrderSortCreatedAt)

	if !serverSide {
		all, err := r.orders.Query(ctx, base)
		if err != nil {
			return domain.OffsetPage[domain.Order]{}, err
		}
		matched := all[:0]
		for _, order := range all {
			if filter.MatchesSearch(order) {
				matched = append(matched, order)
			}
		}
		return filter.PageOf(matched), nil
	}

	total, err := r.orders.Count(ctx, base)
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, err
	}
	direction := firestore.Asc
	if filter.SortOrder == domain.SortDesc {
		direction = firestore.Desc
	}
	items, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return base(q).
			OrderBy(sortPath(filter.SortBy), direction).
			OrderBy(firestore.DocumentID, direction).
			Offset(filter.Offset()).
			Limit(filter.Limit)
	})
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, err
	}
	return domain.OffsetPage[domain.Order]{
		Items: items,
		Info:  domain.NewPageInfo(filter.Page, filter.Limit, total),
	}, nil
}

func (r *OrderRepository) CountInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return r.orders.Count(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("createdAt", ">=", from.UTC()).Where("createdAt", "<", to.UTC())
	})
}

// Stats runs one count aggregation per status and sums totals for the non-cancelled ones.
func (r *OrderRepository) Stats(ctx context.Context) (domain.OrderStats, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.OrderStats{}, err
	}
	var stats domain.OrderStats
	for _, status := range domain.OrderStatuses {
		byStatus := client.Collection(ordersCollection).Where("status", "==", string(status))
		result, err := byStatus.NewAggregationQuery().
			WithCount("count").
			WithSum("totals.total", "revenue").
			Get(ctx)
		if err != nil {
			return domain.OrderStats{}, pfirestore.WrapError("orders.stats", err)
		}
		count, err := aggregateValue(result["count"])
		if err != nil {
			return domain.OrderStats{}, err
		}
		revenue, err := aggregateValue(result["revenue"])
		if err != nil {
			return domain.OrderStats{}, err
		}
		addStatusTotals(&stats, status, count, revenue)
	}
	return stats, nil
}

func addStatusTotals(stats *domain.OrderStats, status domain.OrderStatus, count, revenue int64) {
	stats.TotalOrders += count
	switch status {
	case domain.OrderStatusPending:
		stats.Pending += count
	case domain.OrderStatusProcessing:
		stats.Processing += count
	case domain.OrderStatusShipped:
		stats.Shipped += count
	case domain.OrderStatusDelivered:
		stats.Delivered += count
	case domain.OrderStatusCancelled:
		stats.Cancelled += count
		return
	}
	stats.TotalRevenue += revenue
}

func sortPath(field repositories.OrderSortField) string {
	switch field {
	case repositories.OrderSortTotalAmount:
		return "totals.total"
	case repositories.OrderSortOrderNumber:
		return "orderNumber"
	default:
		return "createdAt"
	}
}

type integerValue interface{ GetIntegerValue() int64 }
type doubleValue interface{ GetDoubleValue() float64 }

// aggregateValue reads a count or sum. Sums over an empty set come back as a double zero.
func aggregateValue(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case integerValue:
		if d, ok := value.(doubleValue); ok && v.GetIntegerValue() == 0 {
			return int64(d.GetDoubleValue()), nil
		}
		return v.GetIntegerValue(), nil
	default:
		return 0, fmt.Errorf("orders.stats: unexpected aggregation value %T", value)
	}
}
