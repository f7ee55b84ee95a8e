package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/hanko-field/catalog/internal/platform/config"
	pfirestore "github.com/hanko-field/catalog/internal/platform/firestore"
	"github.com/hanko-field/catalog/internal/repositories"
)

// Registry exposes the Firestore backed repositories.
type Registry struct {
	provider *pfirestore.Provider
	products *ProductRepository
	shops    *ShopRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the Firestore repositories. extra checks are appended to
// the readiness probe after the Firestore ping.
func NewRegistry(provider *pfirestore.Provider, cfg config.FirestoreConfig, extra ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	products, err := NewProductRepository(provider, cfg.ProductsCollection)
	if err != nil {
		return nil, err
	}
	shops, err := NewShopRepository(provider, cfg.ShopsCollection)
	if err != nil {
		return nil, err
	}

	checks := []repositories.DependencyCheck{{
		Name:    "firestore",
		Timeout: 1500 * time.Millisecond,
		Check: func(ctx context.Context) error {
			return provider.Ping(ctx, cfg.ProductsCollection)
		},
	}}
	checks = append(checks, extra...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}

	return &Registry{provider: provider, products: products, shops: shops, health: health}, nil
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Shops() repositories.ShopRepository { return r.shops }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
