package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

const (
	defaultOrderNumberPrefix = "ORD"
	orderCounterScope        = "orders"
)

// OrderNumberGeneratorDeps bundles collaborators required to construct the order number generator.
type OrderNumberGeneratorDeps struct {
	Counters repositories.CounterRepository
	Prefix   string
	// Location decides which calendar month an instant belongs to. Defaults to time.Local.
	Location *time.Location
}

type orderNumberGenerator struct {
	counters repositories.CounterRepository
	prefix   string
	loc      *time.Location
}

// NewOrderNumberGenerator constructs a generator backed by an atomic per-month counter, so two
// concurrent creations never read the same sequence value.
func NewOrderNumberGenerator(deps OrderNumberGeneratorDeps) (OrderNumberGenerator, error) {
	if deps.Counters == nil {
		return nil, errors.New("order number generator: counter repository is required")
	}
	prefix := strings.TrimSpace(deps.Prefix)
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &orderNumberGenerator{counters: deps.Counters, prefix: prefix, loc: loc}, nil
}

func (g *orderNumberGenerator) Next(ctx context.Context, at time.Time) (number string, err error) {
	period := MonthPeriod(at, g.loc)
	counterID := orderCounterScope + ":" + period

	ctx, span := startSpan(ctx, "counters.next", attribute.String("counter.id", counterID))
	defer func() { endSpan(span, err) }()

	seq, err := g.counters.Next(ctx, counterID, 1)
	if err != nil {
		if repositories.IsInvalidCounterInput(err) {
			return "", newError(ErrInvalidInput, "%v", err)
		}
		return "", internalError("order number", err)
	}
	return FormatOrderNumber(g.prefix, period, seq), nil
}

// MonthPeriod renders the YYYYMM bucket of at in loc.
func MonthPeriod(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	return fmt.Sprintf("%04d%02d", local.Year(), int(local.Month()))
}

// FormatOrderNumber renders PREFIX-YYYYMM-NNNNN. Sequences beyond 99999 widen the suffix.
func FormatOrderNumber(prefix, period string, seq int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, period, seq)
}
