package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories/memory"
)

type stubCounterRepository struct {
	mu     sync.Mutex
	nextFn func(context.Context, string, int64) (int64, error)
	calls  []string
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, counterID)
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 1, nil
}

func TestOrderNumberGeneratorFormatsMonthlySequence(t *testing.T) {
	repo := &stubCounterRepository{nextFn: func(context.Context, string, int64) (int64, error) { return 42, nil }}
	gen, err := NewOrderNumberGenerator(OrderNumberGeneratorDeps{Counters: repo, Location: time.UTC})
	if err != nil {
		t.Fatalf("NewOrderNumberGenerator: %v", err)
	}

	number, err := gen.Next(context.Background(), time.Date(2025, time.July, 31, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if number != "ORD-202507-00042" {
		t.Fatalf("unexpected number %q", number)
	}
	if len(repo.calls) != 1 || repo.calls[0] != "orders:202507" {
		t.Fatalf("unexpected counter calls %v", repo.calls)
	}
}

func TestOrderNumberGeneratorUsesConfiguredLocation(t *testing.T) {
	repo := &stubCounterRepository{}
	tokyo := time.FixedZone("JST", 9*3600)
	gen, err := NewOrderNumberGenerator(OrderNumberGeneratorDeps{Counters: repo, Prefix: "SHOP", Location: tokyo})
	if err != nil {
		t.Fatalf("NewOrderNumberGenerator: %v", err)
	}

	number, err := gen.Next(context.Background(), time.Date(2025, time.July, 31, 16, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if number != "SHOP-202508-00001" {
		t.Fatalf("expected month to follow the configured zone, got %q", number)
	}
}

func TestOrderNumberGeneratorMapsErrors(t *testing.T) {
	repo := &stubCounterRepository{nextFn: func(_ context.Context, id string, _ int64) (int64, error) {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, id, "bad counter", nil)
	}}
	gen, _ := NewOrderNumberGenerator(OrderNumberGeneratorDeps{Counters: repo, Location: time.UTC})
	if _, err := gen.Next(context.Background(), time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	repo.nextFn = func(context.Context, string, int64) (int64, error) { return 0, errors.New("unavailable") }
	if _, err := gen.Next(context.Background(), time.Now()); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestOrderNumberGeneratorConcurrentUniqueness(t *testing.T) {
	store := memory.New()
	gen, err := NewOrderNumberGenerator(OrderNumberGeneratorDeps{Counters: store.Counters(), Location: time.UTC})
	if err != nil {
		t.Fatalf("NewOrderNumberGenerator: %v", err)
	}

	const workers = 50
	at := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	numbers := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := gen.Next(context.Background(), at)
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			numbers <- number
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]struct{}, workers)
	for number := range numbers {
		if _, dup := seen[number]; dup {
			t.Fatalf("duplicate order number %s", number)
		}
		seen[number] = struct{}{}
	}
	if len(seen) != workers {
		t.Fatalf("expected %d numbers, got %d", workers, len(seen))
	}
	if _, ok := seen["ORD-202501-00050"]; !ok {
		t.Fatal("expected the sequence to reach 00050")
	}
}

func TestFormatOrderNumberWidensPastFiveDigits(t *testing.T) {
	if got := FormatOrderNumber("ORD", "202501", 123456); got != "ORD-202501-123456" {
		t.Fatalf("unexpected %q", got)
	}
}
