package repositories

import (
	"context"
	"time"

	domain "github.com/hanko-field/catalog/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Shops() ShopRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductRepository persists products and variants in a single flat collection.
// Lookups scoped by shop treat a record outside the shop as missing.
type ProductRepository interface {
	// Insert stores new records atomically. Returns a conflict RepositoryError when an id is taken.
	Insert(ctx context.Context, products ...domain.Product) error
	// FindByID loads a record that belongs to shopID. Returns a not-found RepositoryError otherwise.
	FindByID(ctx context.Context, id, shopID string) (domain.Product, error)
	// FindOneAndUpdate atomically applies patch to the record matched by id and shopID and
	// returns the post-update state. Returns a not-found RepositoryError when nothing matched.
	FindOneAndUpdate(ctx context.Context, id, shopID string, patch domain.ProductPatch) (domain.Product, error)
	// Find returns every record matching selector, ordered by the selector's sort.
	Find(ctx context.Context, selector ProductSelector) ([]domain.Product, error)
	// UpdateMany applies change to every listed record belonging to shopID.
	UpdateMany(ctx context.Context, ids []string, shopID string, change ProductBulkChange) (BulkResult, error)
	// UpdateSubtrees applies change to every listed root belonging to shopID and
	// to every record below those roots, whichever shops the descendants carry.
	UpdateSubtrees(ctx context.Context, rootIDs []string, shopID string, change ProductBulkChange) (BulkResult, error)
}

// ShopRepository resolves shop metadata referenced by product scopes.
type ShopRepository interface {
	// FindByIDs returns the shops that exist among ids. Missing ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]domain.Shop, error)
	// ListIDs returns every known shop id.
	ListIDs(ctx context.Context) ([]string, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// ProductBulkChange describes the fields written by UpdateMany.
type ProductBulkChange struct {
	AddTagIDs    []string
	RemoveTagIDs []string
	IsVisible    *bool
	IsDeleted    *bool
	UpdatedAt    time.Time
}

// Apply returns a copy of product with the change written over it.
func (c ProductBulkChange) Apply(product domain.Product) domain.Product {
	out := product.Clone()
	for _, tag := range c.AddTagIDs {
		if !containsString(out.TagIDs, tag) {
			out.TagIDs = append(out.TagIDs, tag)
		}
	}
	if len(c.RemoveTagIDs) > 0 {
		kept := out.TagIDs[:0]
		for _, tag := range out.TagIDs {
			if !containsString(c.RemoveTagIDs, tag) {
				kept = append(kept, tag)
			}
		}
		out.TagIDs = kept
	}
	if c.IsVisible != nil {
		out.IsVisible = *c.IsVisible
	}
	if c.IsDeleted != nil {
		out.IsDeleted = *c.IsDeleted
	}
	if !c.UpdatedAt.IsZero() {
		out.UpdatedAt = c.UpdatedAt.UTC()
	}
	return out
}

// BulkResult reports how many records UpdateMany matched and wrote.
type BulkResult struct {
	FoundCount   int
	UpdatedCount int
	UpdatedIDs   []string
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
