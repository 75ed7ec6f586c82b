package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shop-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "shop-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Storage.Driver != StorageDriverFirestore {
		t.Errorf("expected firestore driver by default, got %s", cfg.Storage.Driver)
	}
	if cfg.Orders.Currency != "USD" || cfg.Orders.TaxRateBasisPoints != 1000 || cfg.Orders.FlatShipping != 1000 {
		t.Errorf("unexpected pricing defaults: %+v", cfg.Orders)
	}
	if cfg.Orders.HistoryLimit != 10 || cfg.Orders.NumberPrefix != "ORD" {
		t.Errorf("unexpected order defaults: %+v", cfg.Orders)
	}
	if loc, err := cfg.Orders.Location(); err != nil || loc != time.Local {
		t.Errorf("expected local number timezone, got %v (%v)", loc, err)
	}
	if cfg.Events.Driver != EventsDriverNone {
		t.Errorf("expected events disabled by default, got %s", cfg.Events.Driver)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("expected default issuers, got %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader || cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected idempotency defaults: %+v", cfg.Idempotency)
	}
	if cfg.Telemetry.LogLevel != "info" || cfg.Telemetry.ExporterEndpoint != "" {
		t.Errorf("unexpected telemetry defaults: %+v", cfg.Telemetry)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_SHUTDOWN_TIMEOUT":   "3s",
		"API_STORAGE_DRIVER":            "Postgres",
		"API_POSTGRES_DSN":              "secret://db/dsn",
		"API_POSTGRES_MAX_CONNS":        "25",
		"API_POSTGRES_MIGRATE_ON_START": "yes",
		"API_ORDERS_CURRENCY":           "eur",
		"API_ORDERS_TAX_RATE_BPS":       "1900",
		"API_ORDERS_FLAT_SHIPPING":      "495",
		"API_ORDERS_NUMBER_TIMEZONE":    "Europe/Berlin",
		"API_EVENTS_DRIVER":             "kafka",
		"API_EVENTS_KAFKA_BROKERS":      "k1:9092, k2:9092",
		"API_EVENTS_KAFKA_PASSWORD":     "sm://kafka/password",
		"API_SECURITY_ENVIRONMENT":      "PROD",
		"API_SECURITY_OIDC_AUDIENCES":   "prod=https://orders.example.com,dev=https://dev.example.com",
		"API_OTEL_EXPORTER_ENDPOINT":    "collector:4318",
		"LOG_LEVEL":                     "DEBUG",
	}

	var refs []string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		refs = append(refs, ref)
		switch ref {
		case "secret://db/dsn":
			return "postgres://orders@db/orders", nil
		case "secret://kafka/password":
			return "hunter2", nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Errorf("expected postgres driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Postgres.DSN != "postgres://orders@db/orders" || cfg.Postgres.MaxConns != 25 || !cfg.Postgres.MigrateOnStart {
		t.Errorf("unexpected postgres config: %+v", cfg.Postgres)
	}
	if cfg.Orders.Currency != "EUR" || cfg.Orders.TaxRateBasisPoints != 1900 || cfg.Orders.FlatShipping != 495 {
		t.Errorf("unexpected orders config: %+v", cfg.Orders)
	}
	if loc, err := cfg.Orders.Location(); err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("unexpected number timezone %v (%v)", loc, err)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Events.KafkaPassword != "hunter2" {
		t.Errorf("expected kafka password to be resolved")
	}
	if cfg.Security.Environment != "prod" || cfg.Security.OIDC.Audience != "https://orders.example.com" {
		t.Errorf("unexpected security config: %+v", cfg.Security)
	}
	if cfg.Telemetry.LogLevel != "debug" || cfg.Telemetry.ExporterEndpoint != "collector:4318" {
		t.Errorf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
	if len(refs) != 2 {
		t.Errorf("expected two secret lookups, got %v", refs)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_STORAGE_DRIVER=memory\nAPI_ORDERS_NUMBER_PREFIX=\"SHOP\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{
		"API_ORDERS_NUMBER_PREFIX": "OVR",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Errorf("expected memory driver from .env, got %s", cfg.Storage.Driver)
	}
	if cfg.Orders.NumberPrefix != "OVR" {
		t.Errorf("expected explicit map to win over .env, got %s", cfg.Orders.NumberPrefix)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"firestore without project":  {map[string]string{}, "Firestore.ProjectID"},
		"postgres without dsn":       {map[string]string{"API_STORAGE_DRIVER": "postgres"}, "Postgres.DSN"},
		"unknown driver":             {map[string]string{"API_STORAGE_DRIVER": "mongo"}, "Storage.Driver"},
		"bad currency":               {map[string]string{"API_STORAGE_DRIVER": "memory", "API_ORDERS_CURRENCY": "XXQ"}, "Orders.Currency"},
		"bad timezone":               {map[string]string{"API_STORAGE_DRIVER": "memory", "API_ORDERS_NUMBER_TIMEZONE": "Mars/Olympus"}, "Orders.NumberTimezone"},
		"history limit out of range": {map[string]string{"API_STORAGE_DRIVER": "memory", "API_ORDERS_HISTORY_LIMIT": "500"}, "Orders.HistoryLimit"},
		"kafka without brokers":      {map[string]string{"API_STORAGE_DRIVER": "memory", "API_EVENTS_DRIVER": "kafka"}, "Events.KafkaBrokers"},
		"pubsub without project":     {map[string]string{"API_STORAGE_DRIVER": "memory", "API_EVENTS_DRIVER": "pubsub"}, "Events.ProjectID"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(context.Background(), WithEnvMap(tc.env), WithoutSystemEnv(), WithEnvFile(""))
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, field := range vErr.Fields() {
				if field == tc.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s in %v", tc.want, vErr.Fields())
			}
		})
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_STORAGE_DRIVER": "postgres",
		"API_POSTGRES_DSN":   "sm://db/dsn",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://db/dsn" {
		t.Fatalf("expected normalised ref, got %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("expected resolver not configured, got %v", err)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{"API_STORAGE_DRIVER": "memory"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithRequiredSecrets("Events.KafkaPassword"))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Events.KafkaPassword" {
		t.Fatalf("unexpected names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || redacted[0] == "Events.KafkaPassword" {
		t.Fatalf("expected redacted name, got %v", redacted)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("A=dotenv\nB=dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	values, err := EnvironmentValues(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"B": "explicit"}))
	if err != nil {
		t.Fatalf("EnvironmentValues: %v", err)
	}
	if values["A"] != "dotenv" || values["B"] != "explicit" {
		t.Fatalf("unexpected merge result: %v", values)
	}
}
