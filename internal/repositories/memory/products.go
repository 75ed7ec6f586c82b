package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

type productStore struct{ s *Store }

func (p productStore) FindByID(_ context.Context, productID string) (domain.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	product, ok := p.s.products[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, repositories.NewNotFoundError("products.find", fmt.Errorf("product %s not found", productID))
	}
	return cloneProduct(product), nil
}

func (p productStore) Upsert(_ context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return fmt.Errorf("products.upsert: product id is required")
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.products[product.ID] = cloneProduct(product)
	return nil
}

func (p productStore) ReserveStock(_ context.Context, adj repositories.StockAdjustment) (domain.Product, error) {
	return p.adjust("products.reserve", adj, -1)
}

func (p productStore) ReleaseStock(_ context.Context, adj repositories.StockAdjustment) (domain.Product, error) {
	return p.adjust("products.release", adj, 1)
}

// adjust applies sign*quantity to the product or variant stock and -sign*quantity to salesCount.
// The check and the write happen under the store lock.
func (p productStore) adjust(op string, adj repositories.StockAdjustment, sign int) (domain.Product, error) {
	if adj.Quantity <= 0 {
		err := repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, adj, fmt.Sprintf("quantity must be positive, got %d", adj.Quantity), nil)
		err.Op = op
		return domain.Product{}, err
	}

	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	product, ok := p.s.products[adj.ProductID]
	if !ok {
		err := repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, adj, fmt.Sprintf("product %s not found", adj.ProductID), nil)
		err.Op = op
		return domain.Product{}, err
	}
	product = cloneProduct(product)

	variantIdx := -1
	if adj.VariantID != "" {
		variantIdx = slices.IndexFunc(product.Variants, func(v domain.ProductVariant) bool { return v.ID == adj.VariantID })
		if variantIdx < 0 {
			err := repositories.NewInventoryError(repositories.InventoryErrorVariantNotFound, adj, fmt.Sprintf("variant %s of product %s not found", adj.VariantID, adj.ProductID), nil)
			err.Op = op
			return domain.Product{}, err
		}
	}

	if product.TrackQuantity {
		delta := sign * adj.Quantity
		if variantIdx >= 0 {
			next := product.Variants[variantIdx].Stock + delta
			if next < 0 {
				return domain.Product{}, insufficient(op, adj, product.Variants[variantIdx].Stock)
			}
			product.Variants[variantIdx].Stock = next
		} else {
			next := product.Stock + delta
			if next < 0 {
				return domain.Product{}, insufficient(op, adj, product.Stock)
			}
			product.Stock = next
		}
	}

	if adj.CountSales {
		product.SalesCount -= sign * adj.Quantity
		if product.SalesCount < 0 {
			product.SalesCount = 0
		}
	}
	product.UpdatedAt = p.s.stamp(adj.Now)
	p.s.products[product.ID] = product
	return cloneProduct(product), nil
}

func insufficient(op string, adj repositories.StockAdjustment, available int) error {
	err := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, adj,
		fmt.Sprintf("insufficient stock for %s: requested %d, available %d", adj.ProductID, adj.Quantity, available), nil)
	err.Op = op
	return err
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = slices.Clone(p.Images)
	p.Variants = slices.Clone(p.Variants)
	return p
}
