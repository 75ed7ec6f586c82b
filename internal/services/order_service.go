package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

const (
	maxOrderNumberAttempts = 3
	defaultHistoryLimit    = 10
	maxHistoryLimit        = 50

	logOrderCreated         = "orders.create.success"
	logOrderCompensate      = "orders.create.compensate"
	logOrderNumberConflict  = "orders.create.number_conflict"
	logOrderCartClearFailed = "orders.create.cart_clear_failed"
	logOrderRestoreFailed   = "orders.cancel.restore_failed"
	logOrderCancelUndone    = "orders.cancel.undone"
	logOrderUndoFailed      = "orders.cancel.undo_failed"
	logOrderPublishFailed   = "orders.event.publish_failed"
)

// orderTransitions lists the statuses reachable from each status through a status update.
// Cancellation is handled separately so that shipped and delivered orders report not-cancellable.
var orderTransitions = map[OrderStatus][]OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

var cancellableStatuses = []OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusProcessing,
}

// CanTransition reports whether an order in status from may move to status to.
func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Carts      repositories.CartRepository
	Translator CartTranslator
	Inventory  InventoryLedger
	Numbers    OrderNumberGenerator
	// Transactions groups reservation with insert, and the cancelled status with the stock release.
	// Nil runs each step on its own and relies on compensation.
	Transactions repositories.UnitOfWork
	Pricing      domain.PricingPolicy
	HistoryLimit int
	Events       OrderEventPublisher
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	carts        repositories.CartRepository
	translator   CartTranslator
	inventory    InventoryLedger
	numbers      OrderNumberGenerator
	tx           repositories.UnitOfWork
	pricing      domain.PricingPolicy
	historyLimit int
	events       OrderEventPublisher
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Translator == nil {
		return nil, errors.New("order service: cart translator is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory ledger is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("order service: order number generator is required")
	}
	if strings.TrimSpace(deps.Pricing.Currency) == "" {
		return nil, errors.New("order service: pricing currency is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	tx := deps.Transactions
	if tx == nil {
		tx = directUnit{}
	}

	historyLimit := deps.HistoryLimit
	if historyLimit <= 0 || historyLimit > maxHistoryLimit {
		historyLimit = defaultHistoryLimit
	}

	return &orderService{
		orders:       deps.Orders,
		carts:        deps.Carts,
		translator:   deps.Translator,
		inventory:    deps.Inventory,
		numbers:      deps.Numbers,
		tx:           tx,
		pricing:      deps.Pricing,
		historyLimit: historyLimit,
		events:       deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (_ Order, err error) {
	ctx, span := startSpan(ctx, "orders.create", attribute.String("customer.id", cmd.CustomerID))
	defer func() { endSpan(span, err) }()

	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, newError(ErrInvalidInput, "customer id is required")
	}
	checkout, err := normaliseCheckout(cmd.Checkout)
	if err != nil {
		return Order{}, err
	}

	cart, err := s.translator.Translate(ctx, customerID)
	if err != nil {
		return Order{}, err
	}

	lines := inventoryLines(cart.Items)
	now := s.now()
	order := Order{
		ID:              s.newID(),
		CustomerID:      customerID,
		Email:           checkout.Email,
		Phone:           checkout.Phone,
		Items:           slices.Clone(cart.Items),
		Currency:        s.pricing.Currency,
		Totals:          domain.ComputeTotals(cart.Items, s.pricing, 0),
		ShippingAddress: checkout.ShippingAddress,
		BillingAddress:  checkout.BillingAddress,
		ShippingMethod:  checkout.ShippingMethod,
		PaymentMethod:   checkout.PaymentMethod,
		CouponCode:      checkout.CouponCode,
		Notes:           checkout.Notes,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.inventory.ReserveAll(ctx, lines); err != nil {
			return err
		}
		if err := s.insertWithNumber(ctx, &order); err != nil {
			s.logger(ctx, logOrderCompensate, map[string]any{
				"customerId": customerID,
				"lines":      len(lines),
				"error":      err.Error(),
			})
			if releaseErr := s.inventory.ReleaseAll(ctx, lines); releaseErr != nil {
				return internalError("order create", errors.Join(err, releaseErr))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Order{}, asServiceError("order create", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.OrderNumber))

	if err := s.carts.Clear(ctx, cart.CartID); err != nil {
		s.logger(ctx, logOrderCartClearFailed, map[string]any{
			"orderId": order.ID,
			"cartId":  cart.CartID,
			"error":   err.Error(),
		})
	}

	s.logger(ctx, logOrderCreated, map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"total":       order.Totals.Total,
		"items":       order.ItemCount(),
	})
	s.publishEvent(ctx, OrderEventCreated, order, "", cmd.ActorID, nil)
	return order, nil
}

// insertWithNumber draws an order number and inserts the order, drawing again when the store
// reports a duplicate number.
func (s *orderService) insertWithNumber(ctx context.Context, order *Order) error {
	var lastErr error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx, order.CreatedAt)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.orders.Insert(ctx, *order)
		})
		if err == nil {
			return nil
		}
		if !repositories.IsConflict(err) {
			return internalError("order insert", err)
		}
		lastErr = err
		s.logger(ctx, logOrderNumberConflict, map[string]any{
			"orderNumber": number,
			"attempt":     attempt,
		})
	}
	return newError(ErrOrderConflict, "could not allocate a unique order number after %d attempts: %v", maxOrderNumberAttempts, lastErr)
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	target := OrderStatus(strings.TrimSpace(string(cmd.Status)))
	if !target.Valid() {
		return Order{}, newError(ErrInvalidInput, "unknown order status %q", cmd.Status)
	}

	order, err := s.findOrder(ctx, cmd.OrderID, "")
	if err != nil {
		return Order{}, err
	}

	if target == domain.OrderStatusCancelled {
		return s.cancel(ctx, order, cmd.ActorID)
	}
	if !CanTransition(order.Status, target) {
		return Order{}, newError(ErrInvalidTransition, "%s → %s", order.Status, target)
	}

	now := s.now()
	previous := order.Status
	order.Status = target
	switch target {
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
		order.PaymentStatus = domain.PaymentStatusCompleted
	}

	if err := s.commit(ctx, &order, now); err != nil {
		return Order{}, err
	}
	s.publishEvent(ctx, OrderEventStatusChanged, order, previous, cmd.ActorID, nil)
	return order, nil
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error) {
	status := PaymentStatus(strings.TrimSpace(string(cmd.PaymentStatus)))
	if !status.Valid() {
		return Order{}, newError(ErrInvalidInput, "unknown payment status %q", cmd.PaymentStatus)
	}

	order, err := s.findOrder(ctx, cmd.OrderID, "")
	if err != nil {
		return Order{}, err
	}

	previous := order.PaymentStatus
	order.PaymentStatus = status
	if intent := strings.TrimSpace(cmd.PaymentIntentID); intent != "" {
		order.PaymentIntentID = intent
	}

	if err := s.commit(ctx, &order, s.now()); err != nil {
		return Order{}, err
	}
	s.publishEvent(ctx, OrderEventPaymentUpdated, order, order.Status, cmd.ActorID, map[string]any{
		"previousPaymentStatus": string(previous),
	})
	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	order, err := s.findOrder(ctx, cmd.OrderID, cmd.CustomerID)
	if err != nil {
		return Order{}, err
	}
	return s.cancel(ctx, order, cmd.ActorID)
}

// cancel commits the cancelled status and then restores stock, inside one unit of work. The version
// check on commit means only one of several concurrent cancels gets past it, so stock is restored
// exactly once. When a release fails the cancel is undone, so it can be retried.
func (s *orderService) cancel(ctx context.Context, order Order, actorID string) (_ Order, err error) {
	ctx, span := startSpan(ctx, "orders.cancel", attribute.String("order.id", order.ID))
	defer func() { endSpan(span, err) }()

	if !slices.Contains(cancellableStatuses, order.Status) {
		return Order{}, newError(ErrOrderNotCancellable, "order %s is %s", order.OrderNumber, order.Status)
	}

	previous := order.Status
	cancelled := order
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()
		cancelled.Status = domain.OrderStatusCancelled
		cancelled.CancelledAt = &now
		if err := s.commit(ctx, &cancelled, now); err != nil {
			return err
		}
		return s.restoreStock(ctx, &cancelled, previous)
	})
	if err != nil {
		return Order{}, asServiceError("order cancel", err)
	}

	s.publishEvent(ctx, OrderEventCancelled, cancelled, previous, actorID, nil)
	return cancelled, nil
}

// restoreStock releases the lines of a freshly cancelled order one at a time. If a release fails,
// the lines already released are reserved again and the order returns to its previous status.
func (s *orderService) restoreStock(ctx context.Context, order *Order, previous OrderStatus) error {
	lines := inventoryLines(order.Items)
	for i, line := range lines {
		err := s.inventory.Release(ctx, line)
		if err == nil {
			continue
		}
		fields := map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"productId":   line.ProductID,
			"error":       err.Error(),
		}
		s.logger(ctx, logOrderRestoreFailed, fields)

		if undoErr := s.undoCancel(ctx, order, previous, lines[:i]); undoErr != nil {
			fields["undoError"] = undoErr.Error()
			s.logger(ctx, logOrderUndoFailed, fields)
			return internalError("order cancel", errors.Join(err, undoErr))
		}
		s.logger(ctx, logOrderCancelUndone, fields)
		return internalError("order cancel", err)
	}
	return nil
}

func (s *orderService) undoCancel(ctx context.Context, order *Order, previous OrderStatus, released []InventoryLine) error {
	if err := s.inventory.ReserveAll(ctx, released); err != nil {
		return err
	}
	order.Status = previous
	order.CancelledAt = nil
	return s.commit(ctx, order, s.now())
}

func (s *orderService) AddTrackingNumber(ctx context.Context, cmd AddTrackingNumberCommand) (Order, error) {
	tracking := strings.TrimSpace(cmd.TrackingNumber)
	if tracking == "" {
		return Order{}, newError(ErrInvalidInput, "tracking number is required")
	}

	order, err := s.findOrder(ctx, cmd.OrderID, "")
	if err != nil {
		return Order{}, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return Order{}, newError(ErrInvalidTransition, "order %s is cancelled", order.OrderNumber)
	}

	now := s.now()
	previous := order.Status
	order.TrackingNumber = tracking
	if method := sanitizeText(cmd.ShippingMethod); method != "" {
		order.ShippingMethod = method
	}
	if order.Status != domain.OrderStatusShipped && order.Status != domain.OrderStatusDelivered {
		order.Status = domain.OrderStatusShipped
		order.ShippedAt = &now
	}

	if err := s.commit(ctx, &order, now); err != nil {
		return Order{}, err
	}
	s.publishEvent(ctx, OrderEventTrackingAdded, order, previous, cmd.ActorID, map[string]any{
		"trackingNumber": order.TrackingNumber,
		"shippingMethod": order.ShippingMethod,
	})
	return order, nil
}

// commit persists order guarded by its current version and bumps the version on success.
func (s *orderService) commit(ctx context.Context, order *Order, now time.Time) error {
	expected := order.Version
	order.Version = expected + 1
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, *order, expected); err != nil {
		order.Version = expected
		if repositories.IsConflict(err) {
			return newError(ErrOrderConflict, "order %s was modified concurrently", order.ID)
		}
		return s.mapRepositoryError("order update", err)
	}
	return nil
}

// asServiceError passes typed failures through and reports anything else, such as a failed
// transaction commit, as internal.
func asServiceError(op string, err error) error {
	if svcErr, ok := AsError(err); ok {
		return svcErr
	}
	return internalError(op, err)
}

// directUnit runs work without a surrounding transaction.
type directUnit struct{}

func (directUnit) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// findOrder loads an order. A non-empty customerID hides orders owned by other customers.
func (s *orderService) findOrder(ctx context.Context, orderID, customerID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, newError(ErrInvalidInput, "order id is required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError("order lookup", err)
	}
	if customerID = strings.TrimSpace(customerID); customerID != "" && order.CustomerID != customerID {
		return Order{}, newError(ErrOrderNotFound, "order %s not found", orderID)
	}
	return order, nil
}

func (s *orderService) mapRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	if svcErr, ok := AsError(err); ok {
		return svcErr
	}
	switch {
	case repositories.IsNotFound(err):
		return newError(ErrOrderNotFound, "%v", err)
	case repositories.IsConflict(err):
		return newError(ErrOrderConflict, "%v", err)
	}
	return internalError(op, err)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, order Order, previous OrderStatus, actorID string, metadata map[string]any) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		ID:             s.newID(),
		Type:           eventType,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		TotalAmount:    order.Totals.Total,
		Currency:       order.Currency,
		ActorID:        strings.TrimSpace(actorID),
		OccurredAt:     order.UpdatedAt,
		Metadata:       maps.Clone(metadata),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, logOrderPublishFailed, map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": fmt.Sprint(err),
		})
	}
}
