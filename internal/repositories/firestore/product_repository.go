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

// ProductRepository stores products with embedded variants. Stock changes run in a transaction
// so the availability check and the decrement see the same snapshot.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[domain.Product, productDocument]
	now      func() time.Time
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection(provider, productsCollection, productCodec),
		now:      time.Now,
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	return r.products.Get(ctx, strings.TrimSpace(productID))
}

func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("products.upsert: product id is required")
	}
	return r.products.Set(ctx, product.ID, product)
}

func (r *ProductRepository) ReserveStock(ctx context.Context, adj repositories.StockAdjustment) (domain.Product, error) {
	return r.adjust(ctx, "products.reserve", adj, -1)
}

func (r *ProductRepository) ReleaseStock(ctx context.Context, adj repositories.StockAdjustment) (domain.Product, error) {
	return r.adjust(ctx, "products.release", adj, 1)
}

func (r *ProductRepository) adjust(ctx context.Context, op string, adj repositories.StockAdjustment, sign int) (domain.Product, error) {
	if adj.Quantity <= 0 {
		return domain.Product{}, inventoryError(op, repositories.InventoryErrorInvalidQuantity, adj,
			fmt.Sprintf("quantity must be positive, got %d", adj.Quantity), nil)
	}
	now := adj.Now
	if now.IsZero() {
		now = r.now()
	}

	var updated domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.Ref(ctx, adj.ProductID)
		if err != nil {
			return err
		}
		product, err := r.products.GetTx(tx, ref)
		if err != nil {
			if repositories.IsNotFound(err) {
				return inventoryError(op, repositories.InventoryErrorProductNotFound, adj,
					fmt.Sprintf("product %s not found", adj.ProductID), err)
			}
			return err
		}

		if err := applyAdjustment(op, &product, adj, sign); err != nil {
			return err
		}
		product.UpdatedAt = now.UTC()
		if err := r.products.SetTx(tx, ref, product); err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// applyAdjustment moves sign*quantity units into stock and the opposite into salesCount.
func applyAdjustment(op string, product *domain.Product, adj repositories.StockAdjustment, sign int) error {
	variantIdx := -1
	if adj.VariantID != "" {
		for i, v := range product.Variants {
			if v.ID == adj.VariantID {
				variantIdx = i
				break
			}
		}
		if variantIdx < 0 {
			return inventoryError(op, repositories.InventoryErrorVariantNotFound, adj,
				fmt.Sprintf("variant %s of product %s not found", adj.VariantID, adj.ProductID), nil)
		}
	}

	if product.TrackQuantity {
		stock := &product.Stock
		if variantIdx >= 0 {
			stock = &product.Variants[variantIdx].Stock
		}
		next := *stock + sign*adj.Quantity
		if next < 0 {
			return inventoryError(op, repositories.InventoryErrorInsufficientStock, adj,
				fmt.Sprintf("insufficient stock for %s: requested %d, available %d", adj.ProductID, adj.Quantity, *stock), nil)
		}
		*stock = next
	}

	if adj.CountSales {
		product.SalesCount = max(product.SalesCount-sign*adj.Quantity, 0)
	}
	return nil
}

func inventoryError(op string, code repositories.InventoryErrorCode, adj repositories.StockAdjustment, message string, err error) error {
	invErr := repositories.NewInventoryError(code, adj, message, err)
	invErr.Op = op
	return invErr
}
