package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/config"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/observability"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

// Services bundles the service-layer contracts that handlers and the CLI rely upon.
type Services struct {
	Orders     services.OrderService
	Translator services.CartTranslator
	Inventory  services.InventoryLedger
	Numbers    services.OrderNumberGenerator
	System     services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

type containerOptions struct {
	events services.OrderEventPublisher
	logger *zap.Logger
	build  services.BuildInfo
	clock  func() time.Time
}

// Option customises container construction.
type Option func(*containerOptions)

// WithEventPublisher sets the order event transport. Without one events are dropped.
func WithEventPublisher(pub services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = pub
	}
}

// WithLogger sets the fallback logger used for service events outside a request.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBuildInfo sets version metadata reported by health endpoints.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = info
	}
}

// WithClock overrides the clock used by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies on top of reg, which may be any backend.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	options := containerOptions{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients. The event transport is owned by whoever built it.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	var svc Services

	translator, err := services.NewCartTranslator(services.CartTranslatorDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart translator: %w", err)
	}
	svc.Translator = translator

	ledger, err := services.NewInventoryLedger(services.InventoryLedgerDeps{
		Products: reg.Products(),
		Clock:    opts.clock,
		Logger:   observability.EventLogger(opts.logger.Named("inventory"), "inventory event"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory ledger: %w", err)
	}
	svc.Inventory = ledger

	loc, err := cfg.Orders.Location()
	if err != nil {
		return Services{}, fmt.Errorf("load order number timezone %q: %w", cfg.Orders.NumberTimezone, err)
	}
	numbers, err := services.NewOrderNumberGenerator(services.OrderNumberGeneratorDeps{
		Counters: reg.Counters(),
		Prefix:   cfg.Orders.NumberPrefix,
		Location: loc,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order number generator: %w", err)
	}
	svc.Numbers = numbers

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       reg.Orders(),
		Carts:        reg.Carts(),
		Translator:   translator,
		Inventory:    ledger,
		Numbers:      numbers,
		Transactions: reg,
		Pricing: domain.PricingPolicy{
			Currency:           cfg.Orders.Currency,
			TaxRateBasisPoints: cfg.Orders.TaxRateBasisPoints,
			FlatShipping:       cfg.Orders.FlatShipping,
		},
		HistoryLimit: cfg.Orders.HistoryLimit,
		Events:       opts.events,
		Clock:        opts.clock,
		Logger:       observability.EventLogger(opts.logger.Named("orders"), "order event"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	if health := reg.Health(); health != nil {
		build := opts.build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: health,
			RequiredChecks:   []string{storageCheckName(cfg.Storage.Driver)},
			Clock:            opts.clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}

// storageCheckName is the dependency check each registry registers for its own backend.
func storageCheckName(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.StorageDriverMemory:
		return "memory"
	case config.StorageDriverPostgres:
		return "postgres"
	default:
		return "firestore"
	}
}
