package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// OrderRepository stores orders with line items and addresses as JSONB snapshots.
type OrderRepository struct {
	db
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Postgres-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db{pool: pool}}
}

type lineItemRow struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Total     int64  `json:"total"`
	Image     string `json:"image,omitempty"`
}

type addressRow struct {
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

const orderColumns = `id, order_number, customer_id, email, phone, items, currency,
	subtotal, tax, shipping, discount, total, shipping_address, billing_address,
	shipping_method, payment_method, payment_intent_id, coupon_code, notes, tracking_number,
	status, payment_status, version, created_at, updated_at, shipped_at, delivered_at, cancelled_at`

func orderArgs(o domain.Order) []any {
	items := make([]lineItemRow, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, lineItemRow(item))
	}
	var billing *addressRow
	if o.BillingAddress != nil {
		b := addressRow(*o.BillingAddress)
		billing = &b
	}
	return []any{
		o.ID, o.OrderNumber, o.CustomerID, o.Email, o.Phone, items, o.Currency,
		o.Totals.Subtotal, o.Totals.Tax, o.Totals.Shipping, o.Totals.Discount, o.Totals.Total,
		addressRow(o.ShippingAddress), billing,
		o.ShippingMethod, o.PaymentMethod, o.PaymentIntentID, o.CouponCode, o.Notes, o.TrackingNumber,
		string(o.Status), string(o.PaymentStatus), o.Version, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
		utcPtr(o.ShippedAt), utcPtr(o.DeliveredAt), utcPtr(o.CancelledAt),
	}
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o               domain.Order
		items           []lineItemRow
		shipping        addressRow
		billing         *addressRow
		status, payment string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.Email, &o.Phone, &items, &o.Currency,
		&o.Totals.Subtotal, &o.Totals.Tax, &o.Totals.Shipping, &o.Totals.Discount, &o.Totals.Total,
		&shipping, &billing,
		&o.ShippingMethod, &o.PaymentMethod, &o.PaymentIntentID, &o.CouponCode, &o.Notes, &o.TrackingNumber,
		&status, &payment, &o.Version, &o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.ShippingAddress = domain.Address(shipping)
	if billing != nil {
		b := domain.Address(*billing)
		o.BillingAddress = &b
	}
	for _, item := range items {
		o.Items = append(o.Items, domain.OrderLineItem(item))
	}
	return o, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("orders.insert: order id is required")
	}
	_, err := r.q(ctx).Exec(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`, orderArgs(order)...)
	return wrapError("orders.insert", err)
}

// Update writes every mutable column, shipping method included, guarded by the expected version.
// Items, totals and the order number are immutable after insert.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	tag, err := r.q(ctx).Exec(ctx, `
UPDATE orders SET
	status = $3, payment_status = $4, tracking_number = $5, payment_intent_id = $6, notes = $7,
	version = $8, updated_at = $9, shipped_at = $10, delivered_at = $11, cancelled_at = $12,
	shipping_method = $14
WHERE id = $1 AND version = $2 AND order_number = $13`,
		order.ID, expectedVersion, string(order.Status), string(order.PaymentStatus), order.TrackingNumber,
		order.PaymentIntentID, order.Notes, order.Version, order.UpdatedAt.UTC(),
		utcPtr(order.ShippedAt), utcPtr(order.DeliveredAt), utcPtr(order.CancelledAt), order.OrderNumber,
		order.ShippingMethod)
	if err != nil {
		return wrapError("orders.update", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current int64
	err = r.q(ctx).QueryRow(ctx, `SELECT version FROM orders WHERE id = $1`, order.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.NewNotFoundError("orders.update", fmt.Errorf("order %s not found", order.ID))
	}
	if err != nil {
		return wrapError("orders.update", err)
	}
	return repositories.NewConflictError("orders.update", fmt.Errorf("order %s version %d, expected %d", order.ID, current, expectedVersion))
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := scanOrder(r.q(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, strings.TrimSpace(orderID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, repositories.NewNotFoundError("orders.find", fmt.Errorf("order %s not found", orderID))
	}
	return order, wrapError("orders.find", err)
}

func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	order, err := scanOrder(r.q(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, strings.TrimSpace(orderNumber)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, repositories.NewNotFoundError("orders.find_by_number", fmt.Errorf("order %s not found", orderNumber))
	}
	return order, wrapError("orders.find_by_number", err)
}

var sortColumns = map[repositories.OrderSortField]string{
	repositories.OrderSortCreatedAt:   "created_at",
	repositories.OrderSortTotalAmount: "total",
	repositories.OrderSortOrderNumber: "order_number",
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.OffsetPage[domain.Order], error) {
	filter = filter.Normalized()

	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.CustomerID != "" {
		clauses = append(clauses, "customer_id = "+arg(filter.CustomerID))
	}
	if filter.Status != nil {
		clauses = append(clauses, "status = "+arg(string(*filter.Status)))
	}
	if from := filter.CreatedAt.From; from != nil {
		clauses = append(clauses, "created_at >= "+arg(from.UTC()))
	}
	if to := filter.CreatedAt.To; to != nil {
		clauses = append(clauses, "created_at <= "+arg(to.UTC()))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg("%" + escapeLike(search) + "%")
		clauses = append(clauses, "(order_number ILIKE "+p+" OR email ILIKE "+p+")")
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	q := r.q(ctx)
	var total int64
	if err := q.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return domain.OffsetPage[domain.Order]{}, wrapError("orders.list", err)
	}

	direction := "ASC"
	if filter.SortOrder == domain.SortDesc {
		direction = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s %s, id %s LIMIT %s OFFSET %s`,
		orderColumns, where, sortColumns[filter.SortBy], direction, direction, arg(filter.Limit), arg(filter.Offset()))
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, wrapError("orders.list", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, wrapError("orders.list", err)
	}
	return domain.OffsetPage[domain.Order]{
		Items: items,
		Info:  domain.NewPageInfo(filter.Page, filter.Limit, total),
	}, nil
}

func (r *OrderRepository) CountInRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.q(ctx).QueryRow(ctx, `SELECT count(*) FROM orders WHERE created_at >= $1 AND created_at < $2`, from.UTC(), to.UTC()).Scan(&count)
	return count, wrapError("orders.count_in_range", err)
}

func (r *OrderRepository) Stats(ctx context.Context) (domain.OrderStats, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT status, count(*), COALESCE(sum(total), 0)::bigint FROM orders GROUP BY status`)
	if err != nil {
		return domain.OrderStats{}, wrapError("orders.stats", err)
	}
	defer rows.Close()

	var stats domain.OrderStats
	for rows.Next() {
		var (
			status       string
			count, total int64
		)
		if err := rows.Scan(&status, &count, &total); err != nil {
			return domain.OrderStats{}, wrapError("orders.stats", err)
		}
		stats.TotalOrders += count
		switch domain.OrderStatus(status) {
		case domain.OrderStatusPending:
			stats.Pending = count
		case domain.OrderStatusProcessing:
			stats.Processing = count
		case domain.OrderStatusShipped:
			stats.Shipped = count
		case domain.OrderStatusDelivered:
			stats.Delivered = count
		case domain.OrderStatusCancelled:
			stats.Cancelled = count
			continue
		}
		stats.TotalRevenue += total
	}
	return stats, wrapError("orders.stats", rows.Err())
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
