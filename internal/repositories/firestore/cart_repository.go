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

// CartRepository reads carts keyed by user. Each user owns at most one active cart.
type CartRepository struct {
	carts *pfirestore.Collection[domain.Cart, cartDocument]
	now   func() time.Time
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		carts: pfirestore.NewCollection(provider, cartsCollection, cartCodec),
		now:   time.Now,
	}, nil
}

func (r *CartRepository) FindActive(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	carts, err := r.carts.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).OrderBy("updatedAt", firestore.Desc).Limit(1)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if len(carts) == 0 {
		return domain.Cart{}, repositories.NewNotFoundError("carts.find_active", fmt.Errorf("cart for user %s not found", userID))
	}
	return carts[0], nil
}

// Clear empties the cart's items; the cart document itself is kept.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	ref, err := r.carts.Ref(ctx, cartID)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "items", Value: []cartItemDocument{}},
		{Path: "updatedAt", Value: r.now().UTC()},
	})
	return pfirestore.WrapError("carts.clear", err)
}

func (r *CartRepository) Upsert(ctx context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.ID) == "" {
		return errors.New("carts.upsert: cart id is required")
	}
	return r.carts.Set(ctx, cart.ID, cart)
}
