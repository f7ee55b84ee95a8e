package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 20 * time.Second
	defaultProductsCollection   = "products"
	defaultShopsCollection      = "shops"
	defaultProductEventsTopic   = "catalog-product-events"
	defaultPublishTimeout       = 5 * time.Second
	defaultMutationsPerMinute   = 120
	defaultMutationBurst        = 20
	defaultMaxBulkIDs           = 200
	defaultHandleAttempts       = 20
	defaultLogLevel             = "info"
	defaultFulfillmentTypesList = "shipping"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyKeys      = "catalogIdempotencyKeys"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	RateLimits  RateLimitConfig
	Catalog     CatalogConfig
	Idempotency IdempotencyConfig
	Logging     LoggingConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings used for token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	RoleClaim       string
	ShopsClaim      string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	ProductsCollection string
	ShopsCollection    string
}

// PubSubConfig configures delivery of product lifecycle events.
type PubSubConfig struct {
	ProjectID          string
	ProductEventsTopic string
	PublishTimeout     time.Duration
	Disabled           bool
}

// RateLimitConfig controls throttling of catalog mutations.
type RateLimitConfig struct {
	MutationsPerMinute int
	MutationBurst      int
}

// CatalogConfig tunes catalog behaviour.
type CatalogConfig struct {
	DefaultFulfillmentTypes []string
	MaxBulkIDs              int
	HandleAttempts          int
}

// IdempotencyConfig controls replay of retried catalog mutations.
type IdempotencyConfig struct {
	Header     string
	TTL        time.Duration
	Collection string
	Disabled   bool
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string
	Development bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load reads configuration. Explicit values from WithEnvMap win over the
// process environment, which wins over the dotenv file.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fileValues, err := readDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	env := envSource{layers: []map[string]string{options.envMap}, system: options.useSystemEnv, file: fileValues}

	cfg := Config{
		Server: ServerConfig{
			Port:            env.str("CATALOG_SERVER_PORT", defaultPort),
			ReadTimeout:     env.duration("CATALOG_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    env.duration("CATALOG_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     env.duration("CATALOG_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: env.duration("CATALOG_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("CATALOG_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("CATALOG_FIREBASE_CREDENTIALS_FILE", ""),
			RoleClaim:       env.str("CATALOG_FIREBASE_ROLE_CLAIM", "role"),
			ShopsClaim:      env.str("CATALOG_FIREBASE_SHOPS_CLAIM", "shops"),
		},
		Firestore: FirestoreConfig{
			ProjectID:          env.str("CATALOG_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:       env.str("CATALOG_FIRESTORE_EMULATOR_HOST", ""),
			ProductsCollection: env.str("CATALOG_FIRESTORE_PRODUCTS_COLLECTION", defaultProductsCollection),
			ShopsCollection:    env.str("CATALOG_FIRESTORE_SHOPS_COLLECTION", defaultShopsCollection),
		},
		PubSub: PubSubConfig{
			ProjectID:          env.str("CATALOG_PUBSUB_PROJECT_ID", ""),
			ProductEventsTopic: env.str("CATALOG_PUBSUB_PRODUCT_EVENTS_TOPIC", defaultProductEventsTopic),
			PublishTimeout:     env.duration("CATALOG_PUBSUB_PUBLISH_TIMEOUT", defaultPublishTimeout),
			Disabled:           env.boolean("CATALOG_PUBSUB_DISABLED", false),
		},
		RateLimits: RateLimitConfig{
			MutationsPerMinute: env.integer("CATALOG_RATE_LIMIT_MUTATIONS_PER_MINUTE", defaultMutationsPerMinute),
			MutationBurst:      env.integer("CATALOG_RATE_LIMIT_MUTATION_BURST", defaultMutationBurst),
		},
		Catalog: CatalogConfig{
			DefaultFulfillmentTypes: env.list("CATALOG_DEFAULT_FULFILLMENT_TYPES", defaultFulfillmentTypesList),
			MaxBulkIDs:              env.integer("CATALOG_MAX_BULK_IDS", defaultMaxBulkIDs),
			HandleAttempts:          env.integer("CATALOG_HANDLE_ATTEMPTS", defaultHandleAttempts),
		},
		Idempotency: IdempotencyConfig{
			Header:     env.str("CATALOG_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:        env.duration("CATALOG_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			Collection: env.str("CATALOG_IDEMPOTENCY_COLLECTION", defaultIdempotencyKeys),
			Disabled:   env.boolean("CATALOG_IDEMPOTENCY_DISABLED", false),
		},
		Logging: LoggingConfig{
			Level:       env.str("CATALOG_LOG_LEVEL", defaultLogLevel),
			Development: env.boolean("CATALOG_LOG_DEVELOPMENT", false),
		},
	}

	// Firestore and Pub/Sub share the Firebase project unless told otherwise.
	cfg.Firestore.ProjectID = firstSet(cfg.Firestore.ProjectID, cfg.Firebase.ProjectID)
	cfg.PubSub.ProjectID = firstSet(cfg.PubSub.ProjectID, cfg.Firestore.ProjectID)

	if invalid := cfg.invalidFields(); len(invalid) > 0 {
		return Config{}, &ValidationError{fields: invalid}
	}
	return cfg, nil
}

func (cfg Config) invalidFields() []string {
	checks := []struct {
		field string
		bad   bool
	}{
		{"Server.Port", cfg.Server.Port == ""},
		{"Firebase.ProjectID", cfg.Firebase.ProjectID == ""},
		{"Firestore.ProjectID", cfg.Firestore.ProjectID == ""},
		{"Firestore.ProductsCollection", cfg.Firestore.ProductsCollection == ""},
		{"Firestore.ShopsCollection", cfg.Firestore.ShopsCollection == ""},
		{"PubSub.ProductEventsTopic", !cfg.PubSub.Disabled && cfg.PubSub.ProductEventsTopic == ""},
		{"RateLimits.MutationsPerMinute", cfg.RateLimits.MutationsPerMinute <= 0},
		{"Catalog.MaxBulkIDs", cfg.Catalog.MaxBulkIDs <= 0},
		{"Catalog.HandleAttempts", cfg.Catalog.HandleAttempts <= 0},
		{"Catalog.DefaultFulfillmentTypes", len(cfg.Catalog.DefaultFulfillmentTypes) == 0},
		{"Idempotency.Collection", !cfg.Idempotency.Disabled && cfg.Idempotency.Collection == ""},
	}
	var invalid []string
	for _, c := range checks {
		if c.bad {
			invalid = append(invalid, c.field)
		}
	}
	return invalid
}

// readDotEnv returns nil when path is empty or the file does not exist.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}

// envSource resolves keys through explicit layers, the process env and the
// dotenv file, in that order. Blank values count as unset.
type envSource struct {
	layers []map[string]string
	system bool
	file   map[string]string
}

func (e envSource) lookup(key string) (string, bool) {
	for _, layer := range e.layers {
		if v, ok := layer[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	if e.system {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	if v, ok := e.file[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func (e envSource) str(key, fallback string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return fallback
}

// Unparseable values fall back to the default.
func (e envSource) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func (e envSource) integer(key string, fallback int) int {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (e envSource) boolean(key string, fallback bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func (e envSource) list(key, fallback string) []string {
	raw := e.str(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
