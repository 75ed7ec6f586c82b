package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// Registry bundles the Postgres repositories over one pool.
type Registry struct {
	pool     *pgxpool.Pool
	products *ProductRepository
	carts    *CartRepository
	orders   *OrderRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories. extra checks are probed alongside the database on readiness.
func NewRegistry(pool *pgxpool.Pool, extra ...repositories.DependencyCheck) (*Registry, error) {
	if pool == nil {
		return nil, errors.New("postgres registry: pool is required")
	}
	checks := append([]repositories.DependencyCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return wrapError("postgres.ping", pool.Ping(ctx)) },
	}}, extra...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return &Registry{
		pool:     pool,
		products: NewProductRepository(pool),
		carts:    NewCartRepository(pool),
		orders:   NewOrderRepository(pool),
		counters: NewCounterRepository(pool),
		health:   health,
	}, nil
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Carts() repositories.CartRepository       { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository    { return r.health }

// RunInTx runs fn in one database transaction. Repository calls made with the returned context
// join it. A nested call runs in a savepoint, so its failure rolls back only its own statements.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if outer, ok := txFrom(ctx); ok {
		return pgx.BeginFunc(ctx, outer, func(tx pgx.Tx) error {
			return fn(withTx(ctx, tx))
		})
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(withTx(ctx, tx))
	})
}

// Close closes the pool.
func (r *Registry) Close(context.Context) error {
	r.pool.Close()
	return nil
}
