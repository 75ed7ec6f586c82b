package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/config"
	pfirestore "github.com/a2z-dev007/ecommerce-backend/internal/platform/firestore"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/idempotency"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/jobs"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
	firestorerepo "github.com/a2z-dev007/ecommerce-backend/internal/repositories/firestore"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories/memory"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories/postgres"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

const idempotencyCollection = "idempotency_keys"

// Backend is the storage selected by Storage.Driver together with an idempotency store on the
// same database.
type Backend struct {
	Driver      string
	Registry    repositories.Registry
	Idempotency idempotency.Store
	// Postgres is set for the postgres driver so callers can run migrations.
	Postgres *pgxpool.Pool
}

// OpenBackend connects the configured storage driver. extra checks are reported on readiness next
// to the storage ping.
func OpenBackend(ctx context.Context, cfg config.Config, logger *zap.Logger, extra ...repositories.DependencyCheck) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	switch driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return &Backend{
			Driver:      driver,
			Registry:    memory.New(memory.WithHealthChecks(extra...)),
			Idempotency: idempotency.NewMemoryStore(),
		}, nil

	case config.StorageDriverPostgres:
		pool, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.MigrateOnStart {
			if err := migrateUp(pool, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		reg, err := postgres.NewRegistry(pool, extra...)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Driver:      driver,
			Registry:    reg,
			Idempotency: idempotency.NewPostgresStore(pool),
			Postgres:    pool,
		}, nil

	case config.StorageDriverFirestore, "":
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		reg, err := firestorerepo.NewRegistry(provider, extra...)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, err
		}
		return &Backend{
			Driver:      config.StorageDriverFirestore,
			Registry:    reg,
			Idempotency: idempotency.NewFirestoreStore(provider, idempotencyCollection),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func migrateUp(pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := postgres.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("migrator close error", zap.Error(err))
		}
	}()
	if err := migrator.Up(); err != nil {
		return err
	}
	version, dirty, err := migrator.Version()
	if err == nil {
		logger.Info("postgres schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

// EventTransport is the publisher chosen by Events.Driver plus its readiness probe. Check is nil
// when the transport has nothing to probe.
type EventTransport struct {
	Publisher services.OrderEventPublisher
	Check     *repositories.DependencyCheck
	close     []func() error
}

// Close flushes and disconnects the transport.
func (t *EventTransport) Close() error {
	if t == nil {
		return nil
	}
	var err error
	for i := len(t.close) - 1; i >= 0; i-- {
		err = errors.Join(err, t.close[i]())
	}
	t.close = nil
	return err
}

// NewEventTransport builds the configured order event publisher. The none driver returns a
// transport without a publisher; the order service then skips publishing.
func NewEventTransport(ctx context.Context, cfg config.Config, logger *zap.Logger) (*EventTransport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Driver)) {
	case config.EventsDriverNone, "":
		return &EventTransport{}, nil

	case config.EventsDriverPubSub:
		projectID := strings.TrimSpace(cfg.Events.ProjectID)
		if projectID == "" {
			projectID = strings.TrimSpace(cfg.Firestore.ProjectID)
		}
		client, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		topic := client.Topic(cfg.Events.Topic)
		publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &EventTransport{
			Publisher: publisher,
			Check: &repositories.DependencyCheck{
				Name:    "pubsub",
				Timeout: 2 * time.Second,
				Check: func(ctx context.Context) error {
					ok, err := topic.Exists(ctx)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("topic %q does not exist", cfg.Events.Topic)
					}
					return nil
				},
			},
			close: []func() error{client.Close, publisher.Close},
		}, nil

	case config.EventsDriverKafka:
		writer, err := jobs.NewKafkaWriter(jobs.KafkaConfig{
			Brokers:  cfg.Events.KafkaBrokers,
			Topic:    cfg.Events.Topic,
			Username: cfg.Events.KafkaUsername,
			Password: cfg.Events.KafkaPassword,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		publisher, err := jobs.NewKafkaOrderEventPublisher(writer)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		return &EventTransport{
			Publisher: publisher,
			Check: &repositories.DependencyCheck{
				Name:    "kafka",
				Timeout: 2 * time.Second,
				Check: func(ctx context.Context) error {
					return jobs.PingKafka(ctx, cfg.Events.KafkaBrokers)
				},
			},
			close: []func() error{publisher.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Events.Driver)
	}
}
