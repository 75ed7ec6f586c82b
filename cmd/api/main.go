package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/api/option"

	"github.com/a2z-dev007/ecommerce-backend/internal/di"
	"github.com/a2z-dev007/ecommerce-backend/internal/handlers"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/auth"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/config"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/idempotency"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/observability"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/secrets"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	bootLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	fetcher, err := newSecretFetcher(ctx, bootLogger, envValues)
	if err != nil {
		bootLogger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			bootLogger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			bootLogger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	telemetry, err := observability.SetupTelemetry(ctx, observability.TelemetryOptions{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: buildInfo.Version,
		Endpoint:       cfg.Telemetry.ExporterEndpoint,
		Insecure:       envBool(envValues, "API_OTEL_EXPORTER_INSECURE"),
	})
	if err != nil {
		bootLogger.Fatal("failed to initialise telemetry", zap.Error(err))
	}

	var cores []zapcore.Core
	if telemetry.LogCore != nil {
		cores = append(cores, telemetry.LogCore)
	}
	baseLogger, err := observability.NewLogger(cfg.Telemetry.LogLevel, cores...)
	if err != nil {
		bootLogger.Fatal("failed to initialise logger", zap.Error(err))
	}
	_ = bootLogger.Sync()
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	events, err := di.NewEventTransport(ctx, cfg, logger.Named("events"))
	if err != nil {
		logger.Fatal("failed to initialise order event transport", zap.Error(err))
	}

	checks := []repositories.DependencyCheck{{
		Name:    "secretmanager",
		Timeout: 2 * time.Second,
		Check:   fetcher.Check,
	}}
	if events.Check != nil {
		checks = append(checks, *events.Check)
	}

	backend, err := di.OpenBackend(ctx, cfg, logger.Named("storage"), checks...)
	if err != nil {
		logger.Fatal("failed to open storage backend", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, backend.Registry,
		di.WithEventPublisher(events.Publisher),
		di.WithLogger(logger),
		di.WithBuildInfo(buildInfo),
	)
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			idempotency.RunCleanup(cleanupCtx, backend.Idempotency, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
		}()
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, 5*time.Second)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	serviceValidator, err := buildServiceValidator(logger.Named("auth"), cfg)
	if err != nil {
		logger.Fatal("failed to initialise service token validator", zap.Error(err))
	}

	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Orders,
		handlers.WithOrderIdempotency(idempotency.Middleware(
			backend.Idempotency,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
		)),
		handlers.WithCheckoutRateLimit(cfg.Orders.CheckoutRateLimit, cfg.Orders.CheckoutRateWindow),
	)
	internalHandlers := handlers.NewInternalOrderHandlers(serviceValidator, container.Services.Orders)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	projectID := traceProjectID(cfg)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		// Handlers give up before the server drops the connection.
		handlers.WithRequestTimeout(cfg.Server.WriteTimeout-time.Second),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("order api listening",
			zap.String("storage", backend.Driver),
			zap.String("events", cfg.Events.Driver),
			zap.String("version", buildInfo.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
	if err := events.Close(); err != nil {
		logger.Warn("event transport close error", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown error", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// buildServiceValidator returns nil when no JWKS endpoint is configured, which leaves the internal
// callbacks open. That is only acceptable outside production.
func buildServiceValidator(logger *zap.Logger, cfg config.Config) (*auth.ServiceValidator, error) {
	jwksURL := strings.TrimSpace(cfg.Security.OIDC.JWKSURL)
	if jwksURL == "" {
		if cfg.Security.Environment == "prod" || cfg.Security.Environment == "production" {
			return nil, errors.New("oidc jwks url is required in production")
		}
		logger.Warn("oidc verification disabled; internal callbacks are unauthenticated")
		return nil, nil
	}
	cache := auth.NewJWKSCache(jwksURL, auth.WithJWKSLogger(logger))
	return auth.NewServiceValidator(cache, cfg.Security.OIDC, logger)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	if envBool(env, "API_SECRET_OFFLINE") {
		opts = append(opts, secrets.WithOffline())
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secret-backed settings the selected drivers cannot run without.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.EqualFold(strings.TrimSpace(env["API_STORAGE_DRIVER"]), config.StorageDriverPostgres) {
		required = append(required, "Postgres.DSN")
	}
	if strings.EqualFold(strings.TrimSpace(env["API_EVENTS_DRIVER"]), config.EventsDriverKafka) &&
		strings.TrimSpace(env["API_EVENTS_KAFKA_USERNAME"]) != "" {
		required = append(required, "Events.KafkaPassword")
	}
	return required
}

func envBool(env map[string]string, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(env[key]))
	return err == nil && value
}
