package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	domain "github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/repositories"
)

// ProductRepository keeps catalog records in memory. Useful for tests and local development.
type ProductRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Product
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a repository seeded with the supplied records.
func NewProductRepository(seed ...domain.Product) *ProductRepository {
	repo := &ProductRepository{records: make(map[string]domain.Product, len(seed))}
	for _, p := range seed {
		repo.records[p.ID] = p.Clone()
	}
	return repo
}

// Insert implements repositories.ProductRepository.
func (r *ProductRepository) Insert(_ context.Context, products ...domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return repositories.NewStoreError("products.insert", repositories.StoreErrorConflict, "product id is required")
		}
		if _, exists := r.records[id]; exists {
			return repositories.NewStoreError("products.insert", repositories.StoreErrorConflict, "product "+id+" already exists")
		}
		if _, dup := seen[id]; dup {
			return repositories.NewStoreError("products.insert", repositories.StoreErrorConflict, "duplicate product id "+id)
		}
		seen[id] = struct{}{}
	}
	for _, p := range products {
		r.records[p.ID] = p.Clone()
	}
	return nil
}

// FindByID implements repositories.ProductRepository.
func (r *ProductRepository) FindByID(_ context.Context, id, shopID string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.records[id]
	if !ok || !p.Shops.Contains(shopID) {
		return domain.Product{}, repositories.NewStoreError("products.get", repositories.StoreErrorNotFound, "product "+id+" not found")
	}
	return p.Clone(), nil
}

// FindOneAndUpdate implements repositories.ProductRepository.
func (r *ProductRepository) FindOneAndUpdate(_ context.Context, id, shopID string, patch domain.ProductPatch) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[id]
	if !ok || !p.Shops.Contains(shopID) {
		return domain.Product{}, repositories.NewStoreError("products.update", repositories.StoreErrorNotFound, "product "+id+" not found")
	}
	updated := patch.Apply(p)
	r.records[id] = updated
	return updated.Clone(), nil
}

// Find implements repositories.ProductRepository.
func (r *ProductRepository) Find(_ context.Context, selector repositories.ProductSelector) ([]domain.Product, error) {
	r.mu.RLock()
	out := make([]domain.Product, 0)
	for _, p := range r.records {
		if selector.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	r.mu.RUnlock()

	repositories.SortProducts(out, selector.Sort)
	return out, nil
}

// UpdateMany implements repositories.ProductRepository.
func (r *ProductRepository) UpdateMany(_ context.Context, ids []string, shopID string, change repositories.ProductBulkChange) (repositories.BulkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result repositories.BulkResult
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p, ok := r.records[id]
		if !ok || !p.Shops.Contains(shopID) {
			continue
		}
		result.FoundCount++
		r.records[id] = change.Apply(p)
		result.UpdatedCount++
		result.UpdatedIDs = append(result.UpdatedIDs, id)
	}
	return result, nil
}

// UpdateSubtrees implements repositories.ProductRepository.
func (r *ProductRepository) UpdateSubtrees(_ context.Context, rootIDs []string, shopID string, change repositories.ProductBulkChange) (repositories.BulkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result repositories.BulkResult
	roots := make(map[string]struct{}, len(rootIDs))
	for _, id := range rootIDs {
		if _, dup := roots[id]; dup {
			continue
		}
		p, ok := r.records[id]
		if !ok || !p.Shops.Contains(shopID) {
			continue
		}
		roots[id] = struct{}{}
		result.FoundCount++
		r.records[id] = change.Apply(p)
		result.UpdatedCount++
		result.UpdatedIDs = append(result.UpdatedIDs, id)
	}
	if len(roots) == 0 {
		return result, nil
	}
	var below []string
	for id, p := range r.records {
		if _, root := roots[id]; root {
			continue
		}
		if slices.ContainsFunc(p.Ancestors, func(a string) bool { _, ok := roots[a]; return ok }) {
			below = append(below, id)
		}
	}
	slices.Sort(below)
	for _, id := range below {
		result.FoundCount++
		r.records[id] = change.Apply(r.records[id])
		result.UpdatedCount++
		result.UpdatedIDs = append(result.UpdatedIDs, id)
	}
	return result, nil
}
