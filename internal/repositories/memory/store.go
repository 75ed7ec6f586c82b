// Package memory implements the repository contracts in process. It backs local runs and the
// concurrency tests; every mutation happens under a single mutex so conditional stock updates are
// atomic.
package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// Store holds every collection behind one lock.
type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	carts    map[string]domain.Cart
	orders   map[string]domain.Order
	numbers  map[string]string
	counters map[string]int64
	now      func() time.Time

	extraChecks []repositories.DependencyCheck
	health      repositories.HealthRepository
}

// Option customises the store.
type Option func(*Store)

// WithClock overrides the clock stamped on mutated records.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithHealthChecks adds readiness probes reported next to the in-memory backend.
func WithHealthChecks(checks ...repositories.DependencyCheck) Option {
	return func(s *Store) {
		s.extraChecks = append(s.extraChecks, checks...)
	}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		products: make(map[string]domain.Product),
		carts:    make(map[string]domain.Cart),
		orders:   make(map[string]domain.Order),
		numbers:  make(map[string]string),
		counters: make(map[string]int64),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	checks := append([]repositories.DependencyCheck{
		{Name: "memory", Check: func(context.Context) error { return nil }},
	}, s.extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err == nil {
		s.health = health
	}
	return s
}

var _ repositories.Registry = (*Store)(nil)

func (s *Store) Products() repositories.ProductRepository { return productStore{s} }
func (s *Store) Carts() repositories.CartRepository       { return cartStore{s} }
func (s *Store) Orders() repositories.OrderRepository     { return orderStore{s} }
func (s *Store) Counters() repositories.CounterRepository { return counterStore{s} }
func (s *Store) Health() repositories.HealthRepository    { return s.health }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

// RunInTx runs fn directly. Individual store operations are atomic; multi-step workflows rely on
// compensation rather than rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) stamp(at time.Time) time.Time {
	if !at.IsZero() {
		return at.UTC()
	}
	return s.now().UTC()
}
