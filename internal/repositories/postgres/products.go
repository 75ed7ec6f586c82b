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

// ProductRepository keeps product stock in rows so reservations are single conditional UPDATEs.
type ProductRepository struct {
	db
	now func() time.Time
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Postgres-backed product repository.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db{pool: pool}, now: time.Now}
}

const selectProduct = `
SELECT id, sku, name, price, currency, stock, sales_count, track_quantity, images, created_at, updated_at
FROM products WHERE id = $1`

const selectVariants = `
SELECT id, sku, name, price, stock FROM product_variants WHERE product_id = $1 ORDER BY position, id`

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	return r.load(ctx, r.q(ctx), strings.TrimSpace(productID))
}

func (r *ProductRepository) load(ctx context.Context, q querier, productID string) (domain.Product, error) {
	var p domain.Product
	err := q.QueryRow(ctx, selectProduct, productID).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Price, &p.Currency, &p.Stock, &p.SalesCount, &p.TrackQuantity,
		&p.Images, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, repositories.NewNotFoundError("products.find", fmt.Errorf("product %s not found", productID))
	}
	if err != nil {
		return domain.Product{}, wrapError("products.find", err)
	}

	rows, err := q.Query(ctx, selectVariants, productID)
	if err != nil {
		return domain.Product{}, wrapError("products.find", err)
	}
	variants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ProductVariant, error) {
		var v domain.ProductVariant
		err := row.Scan(&v.ID, &v.SKU, &v.Name, &v.Price, &v.Stock)
		return v, err
	})
	if err != nil {
		return domain.Product{}, wrapError("products.find", err)
	}
	if len(variants) > 0 {
		p.Variants = variants
	}
	return p, nil
}

// Upsert replaces the product row and its variants.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("products.upsert: product id is required")
	}
	now := r.now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}
	images := product.Images
	if images == nil {
		images = []string{}
	}
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO products (id, sku, name, price, currency, stock, sales_count, track_quantity, images, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	sku = EXCLUDED.sku, name = EXCLUDED.name, price = EXCLUDED.price, currency = EXCLUDED.currency,
	stock = EXCLUDED.stock, sales_count = EXCLUDED.sales_count, track_quantity = EXCLUDED.track_quantity,
	images = EXCLUDED.images, updated_at = EXCLUDED.updated_at`,
			product.ID, product.SKU, product.Name, product.Price, product.Currency, product.Stock,
			product.SalesCount, product.TrackQuantity, images, product.CreatedAt.UTC(), product.UpdatedAt.UTC())
		if err != nil {
			return wrapError("products.upsert", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID); err != nil {
			return wrapError("products.upsert", err)
		}
		batch := &pgx.Batch{}
		for i, v := range product.Variants {
			batch.Queue(`INSERT INTO product_variants (product_id, id, position, sku, name, price, stock) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				product.ID, v.ID, i, v.SKU, v.Name, v.Price, v.Stock)
		}
		if batch.Len() == 0 {
			return nil
		}
		return wrapError("products.upsert", tx.SendBatch(ctx, batch).Close())
	})
}

func (r *ProductRepository) ReserveStock(ctx context.Context, adj repositories.StockAdjustment) (domain.Product, error) {
	return r.adjust(ctx, "products.reserve", adj, -1)
}

func (r *ProductRepository) ReleaseStock(ctx context.Context, adj repositories.StockAdjustment) (domain.Product, error) {
	return r.adjust(ctx, "products.release", adj, 1)
}

// The WHERE clauses carry the availability check, so a reservation either moves stock or matches
// no row.
const adjustProductStock = `
UPDATE products SET
	stock = CASE WHEN track_quantity THEN stock + $2 ELSE stock END,
	sales_count = GREATEST(sales_count + $3, 0),
	updated_at = $4
WHERE id = $1 AND (NOT track_quantity OR stock + $2 >= 0)`

const adjustVariantStock = `
UPDATE product_variants v SET stock = CASE WHEN p.track_quantity THEN v.stock + $3 ELSE v.stock END
FROM products p
WHERE v.product_id = $1 AND v.id = $2 AND p.id = v.product_id
	AND (NOT p.track_quantity OR v.stock + $3 >= 0)`

const touchProductSales = `
UPDATE products SET sales_count = GREATEST(sales_count + $2, 0), updated_at = $3 WHERE id = $1`

func (r *ProductRepository) adjust(ctx context.Context, op string, adj repositories.StockAdjustment, sign int) (domain.Product, error) {
	if adj.Quantity <= 0 {
		return domain.Product{}, inventoryError(op, repositories.InventoryErrorInvalidQuantity, adj,
			fmt.Sprintf("quantity must be positive, got %d", adj.Quantity))
	}
	now := adj.Now
	if now.IsZero() {
		now = r.now()
	}
	delta := sign * adj.Quantity
	salesDelta := 0
	if adj.CountSales {
		salesDelta = -delta
	}

	var updated domain.Product
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if adj.VariantID == "" {
			tag, err := tx.Exec(ctx, adjustProductStock, adj.ProductID, delta, salesDelta, now.UTC())
			if err != nil {
				return wrapError(op, err)
			}
			if tag.RowsAffected() == 0 {
				return r.explainMiss(ctx, tx, op, adj)
			}
		} else {
			tag, err := tx.Exec(ctx, adjustVariantStock, adj.ProductID, adj.VariantID, delta)
			if err != nil {
				return wrapError(op, err)
			}
			if tag.RowsAffected() == 0 {
				return r.explainMiss(ctx, tx, op, adj)
			}
			if _, err := tx.Exec(ctx, touchProductSales, adj.ProductID, salesDelta, now.UTC()); err != nil {
				return wrapError(op, err)
			}
		}
		product, err := r.load(ctx, tx, adj.ProductID)
		if err != nil {
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

// explainMiss turns an UPDATE that matched no row into the specific inventory error.
func (r *ProductRepository) explainMiss(ctx context.Context, q querier, op string, adj repositories.StockAdjustment) error {
	product, err := r.load(ctx, q, adj.ProductID)
	if repositories.IsNotFound(err) {
		return inventoryError(op, repositories.InventoryErrorProductNotFound, adj, fmt.Sprintf("product %s not found", adj.ProductID))
	}
	if err != nil {
		return err
	}
	available := product.Stock
	if adj.VariantID != "" {
		variant, ok := product.Variant(adj.VariantID)
		if !ok {
			return inventoryError(op, repositories.InventoryErrorVariantNotFound, adj,
				fmt.Sprintf("variant %s of product %s not found", adj.VariantID, adj.ProductID))
		}
		available = variant.Stock
	}
	return inventoryError(op, repositories.InventoryErrorInsufficientStock, adj,
		fmt.Sprintf("insufficient stock for %s: requested %d, available %d", adj.ProductID, adj.Quantity, available))
}

func inventoryError(op string, code repositories.InventoryErrorCode, adj repositories.StockAdjustment, message string) error {
	err := repositories.NewInventoryError(code, adj, message, nil)
	err.Op = op
	return err
}
