package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/repositories"
)

// ShopRepository is a fixed shop directory held in memory.
type ShopRepository struct {
	mu    sync.RWMutex
	shops map[string]domain.Shop
}

var _ repositories.ShopRepository = (*ShopRepository)(nil)

// NewShopRepository constructs the directory from the supplied shops.
func NewShopRepository(shops ...domain.Shop) *ShopRepository {
	repo := &ShopRepository{shops: make(map[string]domain.Shop, len(shops))}
	for _, shop := range shops {
		repo.shops[shop.ID] = shop
	}
	return repo
}

// Put adds or replaces a shop.
func (r *ShopRepository) Put(shop domain.Shop) {
	r.mu.Lock()
	r.shops[shop.ID] = shop
	r.mu.Unlock()
}

// FindByIDs implements repositories.ShopRepository.
func (r *ShopRepository) FindByIDs(_ context.Context, ids []string) ([]domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Shop, 0, len(ids))
	for _, id := range ids {
		if shop, ok := r.shops[id]; ok {
			out = append(out, shop)
		}
	}
	return out, nil
}

// ListIDs implements repositories.ShopRepository.
func (r *ShopRepository) ListIDs(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.shops))
	for id := range r.shops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
