package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/catalog/internal/di"
	"github.com/hanko-field/catalog/internal/handlers"
	"github.com/hanko-field/catalog/internal/platform/auth"
	"github.com/hanko-field/catalog/internal/platform/config"
	"github.com/hanko-field/catalog/internal/platform/events"
	pfirestore "github.com/hanko-field/catalog/internal/platform/firestore"
	"github.com/hanko-field/catalog/internal/platform/idempotency"
	"github.com/hanko-field/catalog/internal/platform/observability"
	"github.com/hanko-field/catalog/internal/repositories"
	firestoreRepo "github.com/hanko-field/catalog/internal/repositories/firestore"
)

const userAgent = "hanko-catalog-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "catalog api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	startedAt := time.Now().UTC()

	var loadOpts []config.Option
	if path := strings.TrimSpace(os.Getenv("CATALOG_ENV_FILE")); path != "" {
		loadOpts = append(loadOpts, config.WithEnvFile(path))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	baseLogger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	var containerOpts []di.Option
	containerOpts = append(containerOpts, di.WithLogger(logger))

	var extraChecks []repositories.DependencyCheck
	if !cfg.PubSub.Disabled {
		publisher, topic, closer, err := newEventPublisher(ctx, cfg.PubSub, logger.Named("events"), option.WithUserAgent(userAgent))
		if err != nil {
			return fmt.Errorf("initialise event publisher: %w", err)
		}
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher, closer))
		extraChecks = append(extraChecks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topic.ID())
				}
				return nil
			},
		})
	} else {
		logger.Warn("product events disabled")
	}

	provider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithClientOptions(option.WithUserAgent(userAgent)))
	registry, err := firestoreRepo.NewRegistry(provider, cfg.Firestore, extraChecks...)
	if err != nil {
		return fmt.Errorf("initialise repositories: %w", err)
	}

	container, err := di.NewContainer(cfg, registry, containerOpts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return fmt.Errorf("initialise firebase verifier: %w", err)
	}
	authenticator := auth.NewAuthenticator(verifier,
		auth.WithRoleClaim(cfg.Firebase.RoleClaim),
		auth.WithShopsClaim(cfg.Firebase.ShopsClaim),
	)

	productOpts := []handlers.ProductHandlersOption{
		handlers.WithMutationRateLimit(cfg.RateLimits.MutationsPerMinute, cfg.RateLimits.MutationBurst),
	}
	if !cfg.Idempotency.Disabled {
		store, err := idempotency.NewFirestoreStore(provider, cfg.Idempotency.Collection)
		if err != nil {
			return fmt.Errorf("initialise idempotency store: %w", err)
		}
		productOpts = append(productOpts, handlers.WithIdempotency(idempotency.Middleware(store,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
		)))
	}
	productHandlers := handlers.NewProductHandlers(authenticator, container.Products, productOpts...)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(startedAt)),
		handlers.WithHealthReporter(registry.Health()),
	)

	httpLogger := baseLogger.Named("http")
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(productHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := httpLogger.With(zap.String("addr", server.Addr))
	serveErr := make(chan error, 1)
	go func() {
		serverLogger.Info("catalog api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func newEventPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger, opts ...option.ClientOption) (*events.PubSubProductPublisher, *pubsub.Topic, func(context.Context) error, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	topic := client.Topic(cfg.ProductEventsTopic)
	publisher, err := events.NewPubSubProductPublisher(topic,
		events.WithPublishTimeout(cfg.PublishTimeout),
		events.WithLogger(logger),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	closer := func(ctx context.Context) error {
		waitErr := publisher.Wait(ctx)
		topic.Stop()
		return errors.Join(waitErr, client.Close())
	}
	return publisher, topic, closer, nil
}

func buildInfoFromEnv(started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("CATALOG_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("CATALOG_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("CATALOG_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}
