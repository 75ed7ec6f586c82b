package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

func TestWrapErrorClassification(t *testing.T) {
	inventory := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, repositories.StockAdjustment{ProductID: "p"}, "", nil)

	tests := []struct {
		name        string
		err         error
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{name: "no rows", err: pgx.ErrNoRows, notFound: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, conflict: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, conflict: true},
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, unavailable: true},
		{name: "too many connections", err: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, unavailable: true},
		{name: "syntax error", err: &pgconn.PgError{Code: pgerrcode.SyntaxError}},
		{name: "typed inventory error", err: fmt.Errorf("wrapped: %w", inventory), conflict: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := wrapError("op", tc.err)
			assert.Error(t, err)
			assert.Equal(t, tc.notFound, repositories.IsNotFound(err))
			assert.Equal(t, tc.conflict, repositories.IsConflict(err))
			assert.Equal(t, tc.unavailable, repositories.IsUnavailable(err))
		})
	}
}

func TestWrapErrorPassesThroughContextAndNil(t *testing.T) {
	assert.NoError(t, wrapError("op", nil))
	assert.ErrorIs(t, wrapError("op", context.Canceled), context.Canceled)

	var storeErr *repositories.StoreError
	assert.False(t, errors.As(wrapError("op", context.DeadlineExceeded), &storeErr))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_off\\`, escapeLike(`100%_off\`))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	assert.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_orders_schema.up.sql")
	assert.Contains(t, names, "000002_idempotency_keys.down.sql")
}
