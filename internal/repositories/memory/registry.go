package memory

import (
	"context"

	"github.com/hanko-field/catalog/internal/repositories"
)

// Registry bundles the in-memory repositories for local runs and tests.
type Registry struct {
	products *ProductRepository
	shops    *ShopRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wraps the given stores. Nil stores are replaced by empty ones.
func NewRegistry(products *ProductRepository, shops *ShopRepository) *Registry {
	if products == nil {
		products = NewProductRepository()
	}
	if shops == nil {
		shops = NewShopRepository()
	}
	health, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}})
	return &Registry{products: products, shops: shops, health: health}
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Shops() repositories.ShopRepository { return r.shops }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close is a no-op.
func (r *Registry) Close(context.Context) error { return nil }
