package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"CATALOG_FIREBASE_PROJECT_ID": "catalog-dev",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "catalog-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "catalog-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Firestore.ProductsCollection != "products" || cfg.Firestore.ShopsCollection != "shops" {
		t.Errorf("unexpected collections: %+v", cfg.Firestore)
	}
	if cfg.PubSub.ProductEventsTopic != defaultProductEventsTopic {
		t.Errorf("unexpected topic %s", cfg.PubSub.ProductEventsTopic)
	}
	if !reflect.DeepEqual(cfg.Catalog.DefaultFulfillmentTypes, []string{"shipping"}) {
		t.Errorf("unexpected fulfillment defaults %v", cfg.Catalog.DefaultFulfillmentTypes)
	}
	if cfg.RateLimits.MutationsPerMinute != defaultMutationsPerMinute {
		t.Errorf("unexpected mutation rate limit: %d", cfg.RateLimits.MutationsPerMinute)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected log level %s", cfg.Logging.Level)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" || cfg.Idempotency.TTL != 24*time.Hour {
		t.Errorf("unexpected idempotency defaults %+v", cfg.Idempotency)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := map[string]string{
		"CATALOG_FIREBASE_PROJECT_ID":        "catalog-dev",
		"CATALOG_FIRESTORE_PROJECT_ID":       "catalog-db",
		"CATALOG_SERVER_PORT":                "9090",
		"CATALOG_PUBSUB_DISABLED":            "yes",
		"CATALOG_DEFAULT_FULFILLMENT_TYPES":  "shipping, pickup",
		"CATALOG_MAX_BULK_IDS":               "50",
		"CATALOG_SERVER_SHUTDOWN_TIMEOUT":    "3s",
		"CATALOG_PUBSUB_PRODUCT_EVENTS_TOPIC": "",
	}

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Firestore.ProjectID != "catalog-db" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.PubSub.Disabled {
		t.Fatalf("expected pubsub disabled")
	}
	if !reflect.DeepEqual(cfg.Catalog.DefaultFulfillmentTypes, []string{"shipping", "pickup"}) {
		t.Fatalf("unexpected fulfillment types %v", cfg.Catalog.DefaultFulfillmentTypes)
	}
	if cfg.Catalog.MaxBulkIDs != 50 || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected catalog/server overrides: %+v %+v", cfg.Catalog, cfg.Server)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := vErr.Fields()
	if len(fields) == 0 || fields[0] != "Firebase.ProjectID" {
		t.Fatalf("unexpected missing fields %v", fields)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport CATALOG_FIREBASE_PROJECT_ID=\"from-file\"\nCATALOG_LOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"CATALOG_LOG_LEVEL": "warn"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "from-file" {
		t.Fatalf("expected project from file, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env map to win over file, got %s", cfg.Logging.Level)
	}
}
