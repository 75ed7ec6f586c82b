package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// CounterRepository issues sequence values with a single upsert, so concurrent callers never
// observe the same value.
type CounterRepository struct {
	db
	now func() time.Time
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository constructs a Postgres-backed counter repository.
func NewCounterRepository(pool *pgxpool.Pool) *CounterRepository {
	return &CounterRepository{db: db{pool: pool}, now: time.Now}
}

func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, id, "counter id is required", nil)
	}
	if step <= 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, id, fmt.Sprintf("step must be positive, got %d", step), nil)
	}
	var value int64
	err := r.q(ctx).QueryRow(ctx, `
INSERT INTO counters (id, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET value = counters.value + EXCLUDED.value, updated_at = EXCLUDED.updated_at
RETURNING value`, id, step, r.now().UTC()).Scan(&value)
	if err != nil {
		return 0, wrapError("counters.next", err)
	}
	return value, nil
}
