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

// CartRepository reads carts and their ordered items.
type CartRepository struct {
	db
	now func() time.Time
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Postgres-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: db{pool: pool}, now: time.Now}
}

func (r *CartRepository) FindActive(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	q := r.q(ctx)

	var cart domain.Cart
	err := q.QueryRow(ctx, `
SELECT id, user_id, created_at, updated_at FROM carts
WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 1`, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, repositories.NewNotFoundError("carts.find_active", fmt.Errorf("cart for user %s not found", userID))
	}
	if err != nil {
		return domain.Cart{}, wrapError("carts.find_active", err)
	}

	rows, err := q.Query(ctx, `
SELECT product_id, variant_id, quantity, price, added_at FROM cart_items
WHERE cart_id = $1 ORDER BY position`, cart.ID)
	if err != nil {
		return domain.Cart{}, wrapError("carts.find_active", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CartItem, error) {
		var item domain.CartItem
		err := row.Scan(&item.ProductID, &item.VariantID, &item.Quantity, &item.Price, &item.AddedAt)
		return item, err
	})
	if err != nil {
		return domain.Cart{}, wrapError("carts.find_active", err)
	}
	if len(items) > 0 {
		cart.Items = items
	}
	return cart, nil
}

func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, cartID, r.now().UTC())
		if err != nil {
			return wrapError("carts.clear", err)
		}
		if tag.RowsAffected() == 0 {
			return repositories.NewNotFoundError("carts.clear", fmt.Errorf("cart %s not found", cartID))
		}
		_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
		return wrapError("carts.clear", err)
	})
}

func (r *CartRepository) Upsert(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.ID) == "" {
		return errors.New("carts.upsert: cart id is required")
	}
	now := r.now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = now
	}
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, updated_at = EXCLUDED.updated_at`,
			cart.ID, cart.UserID, cart.CreatedAt.UTC(), cart.UpdatedAt.UTC())
		if err != nil {
			return wrapError("carts.upsert", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return wrapError("carts.upsert", err)
		}
		rows := make([][]any, 0, len(cart.Items))
		for i, item := range cart.Items {
			addedAt := item.AddedAt
			if addedAt.IsZero() {
				addedAt = now
			}
			rows = append(rows, []any{cart.ID, i, item.ProductID, item.VariantID, item.Quantity, item.Price, addedAt.UTC()})
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"cart_items"},
			[]string{"cart_id", "position", "product_id", "variant_id", "quantity", "price", "added_at"},
			pgx.CopyFromRows(rows))
		return wrapError("carts.upsert", err)
	})
}
