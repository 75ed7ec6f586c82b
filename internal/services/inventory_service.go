package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

const (
	eventInventoryCompensateFailed = "inventory.compensate.failed"
	eventInventoryReleaseFailed    = "inventory.release.failed"
)

// InventoryLedgerDeps bundles the collaborators required to construct the inventory ledger.
type InventoryLedgerDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryLedger struct {
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewInventoryLedger wires dependencies into the ledger. salesCount is adjusted for every line,
// including products that do not track quantity.
func NewInventoryLedger(deps InventoryLedgerDeps) (InventoryLedger, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory ledger: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryLedger{
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (l *inventoryLedger) Reserve(ctx context.Context, line InventoryLine) (err error) {
	ctx, span := startSpan(ctx, "inventory.reserve", lineAttributes(line)...)
	defer func() { endSpan(span, err) }()

	if err := validateInventoryLine(line); err != nil {
		return err
	}
	_, err = l.products.ReserveStock(ctx, l.adjustment(line))
	return l.mapRepositoryError(err)
}

func (l *inventoryLedger) Release(ctx context.Context, line InventoryLine) (err error) {
	ctx, span := startSpan(ctx, "inventory.release", lineAttributes(line)...)
	defer func() { endSpan(span, err) }()

	if err := validateInventoryLine(line); err != nil {
		return err
	}
	_, err = l.products.ReleaseStock(ctx, l.adjustment(line))
	return l.mapRepositoryError(err)
}

func (l *inventoryLedger) ReserveAll(ctx context.Context, lines []InventoryLine) error {
	for i, line := range lines {
		if err := l.Reserve(ctx, line); err != nil {
			l.compensate(ctx, lines[:i])
			return err
		}
	}
	return nil
}

func (l *inventoryLedger) ReleaseAll(ctx context.Context, lines []InventoryLine) error {
	var errs []error
	for _, line := range lines {
		if err := l.Release(ctx, line); err != nil {
			l.logger(ctx, eventInventoryReleaseFailed, map[string]any{
				"productId": line.ProductID,
				"variantId": line.VariantID,
				"quantity":  line.Quantity,
				"error":     err.Error(),
			})
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return internalError("inventory release", errors.Join(errs...))
	}
	return nil
}

// compensate releases already reserved lines, last first.
func (l *inventoryLedger) compensate(ctx context.Context, reserved []InventoryLine) {
	for i := len(reserved) - 1; i >= 0; i-- {
		line := reserved[i]
		if err := l.Release(ctx, line); err != nil {
			l.logger(ctx, eventInventoryCompensateFailed, map[string]any{
				"productId": line.ProductID,
				"variantId": line.VariantID,
				"quantity":  line.Quantity,
				"error":     err.Error(),
			})
		}
	}
}

func (l *inventoryLedger) adjustment(line InventoryLine) repositories.StockAdjustment {
	return repositories.StockAdjustment{
		ProductID:  strings.TrimSpace(line.ProductID),
		VariantID:  strings.TrimSpace(line.VariantID),
		Quantity:   line.Quantity,
		CountSales: true,
		Now:        l.clock(),
	}
}

func (l *inventoryLedger) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return newError(ErrInsufficientStock, "insufficient stock for product %s", invErr.ProductID)
		case repositories.InventoryErrorProductNotFound:
			return newError(ErrProductNotFound, "product %s not found", invErr.ProductID)
		case repositories.InventoryErrorVariantNotFound:
			return newError(ErrProductNotFound, "variant %s of product %s not found", invErr.VariantID, invErr.ProductID)
		case repositories.InventoryErrorInvalidQuantity:
			return newError(ErrInvalidInput, "%s", invErr.Message)
		}
	}
	return internalError("inventory update", err)
}

func validateInventoryLine(line InventoryLine) error {
	if strings.TrimSpace(line.ProductID) == "" {
		return newError(ErrInvalidInput, "product id is required")
	}
	if line.Quantity <= 0 {
		return newError(ErrInvalidInput, "quantity for %s must be positive, got %d", line.ProductID, line.Quantity)
	}
	return nil
}

func lineAttributes(line InventoryLine) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("product.id", line.ProductID),
		attribute.String("product.variant_id", line.VariantID),
		attribute.Int("inventory.quantity", line.Quantity),
	}
}

func inventoryLines(items []OrderLineItem) []InventoryLine {
	lines := make([]InventoryLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, InventoryLine{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

