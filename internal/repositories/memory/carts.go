package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

type cartStore struct{ s *Store }

func (c cartStore) FindActive(_ context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for _, cart := range c.s.carts {
		if cart.UserID == userID {
			cart.Items = slices.Clone(cart.Items)
			return cart, nil
		}
	}
	return domain.Cart{}, repositories.NewNotFoundError("carts.find_active", fmt.Errorf("cart for user %s not found", userID))
}

func (c cartStore) Clear(_ context.Context, cartID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	cart, ok := c.s.carts[cartID]
	if !ok {
		return repositories.NewNotFoundError("carts.clear", fmt.Errorf("cart %s not found", cartID))
	}
	cart.Items = nil
	cart.UpdatedAt = c.s.now().UTC()
	c.s.carts[cartID] = cart
	return nil
}

func (c cartStore) Upsert(_ context.Context, cart domain.Cart) error {
	if strings.TrimSpace(cart.ID) == "" {
		return fmt.Errorf("carts.upsert: cart id is required")
	}
	cart.Items = slices.Clone(cart.Items)
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.carts[cart.ID] = cart
	return nil
}
