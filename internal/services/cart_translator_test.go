package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories/memory"
)

func newTranslatorFixture(t *testing.T) (*memory.Store, CartTranslator) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	products := []domain.Product{
		{ID: "tee", SKU: "TEE", Name: "Tee", Price: 1500, Stock: 4, TrackQuantity: true, Images: []string{"tee-front.png", "tee-back.png"},
			Variants: []domain.ProductVariant{
				{ID: "s", SKU: "TEE-S", Stock: 1},
				{ID: "xl", SKU: "TEE-XL", Price: 1700, Stock: 9},
			}},
		{ID: "ebook", Name: "E-book", Price: 900, Stock: 0, TrackQuantity: false},
	}
	for _, p := range products {
		if err := store.Products().Upsert(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
	translator, err := NewCartTranslator(CartTranslatorDeps{Carts: store.Carts(), Products: store.Products()})
	if err != nil {
		t.Fatalf("NewCartTranslator: %v", err)
	}
	return store, translator
}

func TestCartTranslatorSnapshotsCatalogData(t *testing.T) {
	store, translator := newTranslatorFixture(t)
	err := store.Carts().Upsert(context.Background(), domain.Cart{ID: "c1", UserID: "u1", Items: []domain.CartItem{
		{ProductID: "tee", VariantID: "s", Quantity: 1, Price: 1},
		{ProductID: "tee", VariantID: "xl", Quantity: 2},
		{ProductID: "ebook", Quantity: 3},
	}})
	if err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	got, err := translator.Translate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := TranslatedCart{CartID: "c1", Items: []OrderLineItem{
		{ProductID: "tee", VariantID: "s", Name: "Tee", SKU: "TEE-S", UnitPrice: 1500, Quantity: 1, Total: 1500, Image: "tee-front.png"},
		{ProductID: "tee", VariantID: "xl", Name: "Tee", SKU: "TEE-XL", UnitPrice: 1700, Quantity: 2, Total: 3400, Image: "tee-front.png"},
		{ProductID: "ebook", Name: "E-book", UnitPrice: 900, Quantity: 3, Total: 2700},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("translated cart mismatch (-want +got):\n%s", diff)
	}
}

func TestCartTranslatorFailures(t *testing.T) {
	cases := []struct {
		name  string
		items []domain.CartItem
		want  error
	}{
		{"empty", nil, ErrEmptyCart},
		{"zero quantity", []domain.CartItem{{ProductID: "tee", Quantity: 0}}, ErrInvalidInput},
		{"unknown product", []domain.CartItem{{ProductID: "hat", Quantity: 1}}, ErrProductNotFound},
		{"unknown variant", []domain.CartItem{{ProductID: "tee", VariantID: "xxl", Quantity: 1}}, ErrProductNotFound},
		{"variant short", []domain.CartItem{{ProductID: "tee", VariantID: "s", Quantity: 2}}, ErrInsufficientStock},
		{"product short", []domain.CartItem{{ProductID: "tee", Quantity: 5}}, ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, translator := newTranslatorFixture(t)
			if err := store.Carts().Upsert(context.Background(), domain.Cart{ID: "c1", UserID: "u1", Items: tc.items}); err != nil {
				t.Fatalf("seed cart: %v", err)
			}
			if _, err := translator.Translate(context.Background(), "u1"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCartTranslatorMissingCart(t *testing.T) {
	_, translator := newTranslatorFixture(t)
	if _, err := translator.Translate(context.Background(), "ghost"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if _, err := translator.Translate(context.Background(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank customer, got %v", err)
	}
}
