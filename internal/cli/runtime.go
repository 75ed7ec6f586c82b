package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/a2z-dev007/ecommerce-backend/internal/di"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/config"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/idempotency"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/secrets"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories/postgres"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

// envRuntime reads the same API_* configuration as the server. Events are never published from
// the CLI.
type envRuntime struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher *secrets.Fetcher

	mu        sync.Mutex
	backend   *di.Backend
	container *di.Container
	migrator  Migrator
}

// NewEnvRuntime loads configuration from the environment and optional dotenv file.
func NewEnvRuntime(ctx context.Context, opts RuntimeOptions) (Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var loadOpts []config.Option
	if opts.EnvFile != "" {
		loadOpts = append(loadOpts, config.WithEnvFile(opts.EnvFile))
	}

	env, err := config.EnvironmentValues(loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	fetcherOpts := []secrets.Option{secrets.WithLogger(logger.Named("secrets"))}
	if project := strings.TrimSpace(env["API_SECRET_PROJECT_ID"]); project != "" {
		fetcherOpts = append(fetcherOpts, secrets.WithProject(project))
	}
	if path := strings.TrimSpace(env["API_SECRET_FALLBACK_FILE"]); path != "" {
		fetcherOpts = append(fetcherOpts, secrets.WithFallbackFile(path))
	}
	fetcher, err := secrets.NewFetcher(ctx, fetcherOpts...)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(ctx, append(loadOpts, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))...)
	if err != nil {
		_ = fetcher.Close()
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("missing secrets: %s", strings.Join(missing.RedactedNames(), ", "))
		}
		return nil, err
	}
	// Schema changes only happen through the migrate command.
	cfg.Postgres.MigrateOnStart = false

	return &envRuntime{cfg: cfg, logger: logger, fetcher: fetcher}, nil
}

func (r *envRuntime) openBackend(ctx context.Context) (*di.Backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}
	backend, err := di.OpenBackend(ctx, r.cfg, r.logger.Named("storage"))
	if err != nil {
		return nil, err
	}
	r.backend = backend
	return backend, nil
}

func (r *envRuntime) Orders(ctx context.Context) (services.OrderService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.container != nil {
		return r.container.Services.Orders, nil
	}
	backend, err := r.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	container, err := di.NewContainer(ctx, r.cfg, backend.Registry, di.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	r.container = container
	return container.Services.Orders, nil
}

func (r *envRuntime) Idempotency(ctx context.Context) (idempotency.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	backend, err := r.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Idempotency, nil
}

// Migrator opens a dedicated pool so migrations never share connections with the registry.
func (r *envRuntime) Migrator(ctx context.Context) (Migrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.migrator != nil {
		return r.migrator, nil
	}
	if !strings.EqualFold(r.cfg.Storage.Driver, config.StorageDriverPostgres) {
		return nil, fmt.Errorf("migrations need API_STORAGE_DRIVER=postgres, got %q", r.cfg.Storage.Driver)
	}
	pool, err := postgres.Open(ctx, r.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	m, err := postgres.NewMigrator(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	r.migrator = &poolMigrator{Migrator: m, pool: pool}
	return r.migrator, nil
}

func (r *envRuntime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.migrator != nil {
		err = errors.Join(err, r.migrator.Close())
		r.migrator = nil
	}
	if r.backend != nil {
		err = errors.Join(err, r.backend.Registry.Close(ctx))
		r.backend = nil
		r.container = nil
	}
	if r.fetcher != nil {
		err = errors.Join(err, r.fetcher.Close())
		r.fetcher = nil
	}
	return err
}

type poolMigrator struct {
	*postgres.Migrator
	pool *pgxpool.Pool
}

func (m *poolMigrator) Close() error {
	err := m.Migrator.Close()
	m.pool.Close()
	return err
}
