package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// CartTranslatorDeps bundles collaborators required by the cart snapshot translator.
type CartTranslatorDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
}

type cartTranslator struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
}

// NewCartTranslator constructs the translator.
func NewCartTranslator(deps CartTranslatorDeps) (CartTranslator, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart translator: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart translator: product repository is required")
	}
	return &cartTranslator{carts: deps.Carts, products: deps.Products}, nil
}

// Translate prices every cart line from the product's current price, not the price captured in the
// cart, and checks tracked stock. Any failing line aborts the whole translation.
func (t *cartTranslator) Translate(ctx context.Context, customerID string) (TranslatedCart, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return TranslatedCart{}, newError(ErrInvalidInput, "customer id is required")
	}

	cart, err := t.carts.FindActive(ctx, customerID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return TranslatedCart{}, newError(ErrEmptyCart, "customer %s has no active cart", customerID)
		}
		return TranslatedCart{}, internalError("cart lookup", err)
	}
	if len(cart.Items) == 0 {
		return TranslatedCart{}, newError(ErrEmptyCart, "cart %s has no items", cart.ID)
	}

	items := make([]OrderLineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		line, err := t.translateItem(ctx, item)
		if err != nil {
			return TranslatedCart{}, err
		}
		items = append(items, line)
	}
	return TranslatedCart{CartID: cart.ID, Items: items}, nil
}

func (t *cartTranslator) translateItem(ctx context.Context, item domain.CartItem) (OrderLineItem, error) {
	if item.Quantity <= 0 {
		return OrderLineItem{}, newError(ErrInvalidInput, "cart item %s has non-positive quantity %d", item.ProductID, item.Quantity)
	}

	product, err := t.products.FindByID(ctx, item.ProductID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return OrderLineItem{}, newError(ErrProductNotFound, "product %s not found", item.ProductID)
		}
		return OrderLineItem{}, internalError("product lookup", err)
	}

	price := product.Price
	sku := product.SKU
	available := product.Stock
	if item.VariantID != "" {
		variant, ok := product.Variant(item.VariantID)
		if !ok {
			return OrderLineItem{}, newError(ErrProductNotFound, "variant %s of product %s not found", item.VariantID, item.ProductID)
		}
		if variant.Price > 0 {
			price = variant.Price
		}
		if variant.SKU != "" {
			sku = variant.SKU
		}
		available = variant.Stock
	}

	if product.TrackQuantity && available < item.Quantity {
		return OrderLineItem{}, newError(ErrInsufficientStock, "insufficient stock for %s", product.Name)
	}

	return OrderLineItem{
		ProductID: product.ID,
		VariantID: item.VariantID,
		Name:      product.Name,
		SKU:       sku,
		UnitPrice: price,
		Quantity:  item.Quantity,
		Total:     domain.LineTotal(price, item.Quantity),
		Image:     product.PrimaryImage(),
	}, nil
}
