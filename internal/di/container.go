package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/catalog/internal/platform/auth"
	"github.com/hanko-field/catalog/internal/platform/config"
	"github.com/hanko-field/catalog/internal/repositories"
	"github.com/hanko-field/catalog/internal/services"
)

// Container wires repositories and the catalog service for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Products     services.ProductService
	Logger       *zap.Logger

	closers []func(context.Context) error
}

// Option customises container construction.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	events       services.ProductEventPublisher
	permissions  services.PermissionChecker
	clock        func() time.Time
	productHooks []services.ProductHook
	variantHooks []services.ProductHook
	closers      []func(context.Context) error
}

// WithLogger sets the base logger handed to the services.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEventPublisher sets the lifecycle event sink. closer runs on Close.
func WithEventPublisher(publisher services.ProductEventPublisher, closer func(context.Context) error) Option {
	return func(o *options) {
		o.events = publisher
		if closer != nil {
			o.closers = append(o.closers, closer)
		}
	}
}

// WithPermissionChecker overrides the shop scoped permission checker.
func WithPermissionChecker(checker services.PermissionChecker) Option {
	return func(o *options) { o.permissions = checker }
}

// WithClock overrides the service clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithProductHooks registers hooks run on new products and their first variant.
func WithProductHooks(hooks ...services.ProductHook) Option {
	return func(o *options) { o.productHooks = append(o.productHooks, hooks...) }
}

// WithVariantHooks registers hooks run on new variants.
func WithVariantHooks(hooks ...services.ProductHook) Option {
	return func(o *options) { o.variantHooks = append(o.variantHooks, hooks...) }
}

// NewContainer constructs the runtime dependencies. Tests can supply the
// in-memory registry.
func NewContainer(cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.permissions == nil {
		o.permissions = auth.NewShopPermissionChecker()
	}

	products, err := services.NewProductService(services.ProductServiceDeps{
		Products:                reg.Products(),
		Shops:                   reg.Shops(),
		Permissions:             o.permissions,
		Events:                  o.events,
		ProductHooks:            o.productHooks,
		VariantHooks:            o.variantHooks,
		Logger:                  o.logger.Named("catalog"),
		Clock:                   o.clock,
		DefaultFulfillmentTypes: cfg.Catalog.DefaultFulfillmentTypes,
		MaxBulkIDs:              cfg.Catalog.MaxBulkIDs,
		HandleAttempts:          cfg.Catalog.HandleAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("build product service: %w", err)
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Products:     products,
		Logger:       o.logger,
		closers:      o.closers,
	}, nil
}

// Close releases publishers first, then the repositories.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, closer := range c.closers {
		if err := closer(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
