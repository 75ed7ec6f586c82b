package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

type counterStore struct{ s *Store }

func (c counterStore) Next(_ context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, id, "counter id is required", nil)
	}
	if step <= 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, id, fmt.Sprintf("step must be positive, got %d", step), nil)
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.counters[id] += step
	return c.s.counters[id], nil
}
