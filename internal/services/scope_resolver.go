package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	domain "github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/platform/requestctx"
	"github.com/hanko-field/catalog/internal/repositories"
)

// ScopeResolver converts between caller-facing active shop lists and stored shop scopes.
type ScopeResolver struct {
	shops  repositories.ShopRepository
	logger *zap.Logger
}

// NewScopeResolver constructs a resolver backed by the shop directory. A nil
// logger discards lookup warnings unless the request carries its own logger.
func NewScopeResolver(shops repositories.ShopRepository, logger *zap.Logger) (*ScopeResolver, error) {
	if shops == nil {
		return nil, errors.New("scope resolver: shop repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeResolver{shops: shops, logger: logger}, nil
}

// ScopeFromActiveShops turns the caller's active shop list into a multi-shop scope.
// It reports false when the list names no shop, in which case the existing scope must be kept.
func ScopeFromActiveShops(active []domain.ActiveShop) (domain.ShopScope, bool) {
	if len(active) == 0 {
		return domain.ShopScope{}, false
	}
	ids := make([]string, 0, len(active))
	for _, shop := range active {
		ids = append(ids, shop.Value)
	}
	scope := domain.MultiShop(ids...)
	if scope.IsEmpty() {
		return domain.ShopScope{}, false
	}
	return scope, true
}

// ApplyActiveShops is the write path: a non-empty active shop list replaces scope.
func ApplyActiveShops(scope domain.ShopScope, active []domain.ActiveShop) domain.ShopScope {
	if next, ok := ScopeFromActiveShops(active); ok {
		return next
	}
	return scope
}

// Expand is the read path for a single record.
func (r *ScopeResolver) Expand(ctx context.Context, product domain.Product, viewingShopID string) domain.ProductView {
	return r.ExpandAll(ctx, []domain.Product{product}, func(domain.Product) string { return viewingShopID })[0]
}

// ExpandAll resolves shop names for every record with a single directory lookup.
// viewingShop picks the outward shop id per record. Name resolution is best
// effort: when the directory fails the views carry no active shops.
func (r *ScopeResolver) ExpandAll(ctx context.Context, products []domain.Product, viewingShop func(domain.Product) string) []domain.ProductView {
	if len(products) == 0 {
		return []domain.ProductView{}
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, product := range products {
		for _, id := range product.Shops.IDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	names := make(map[string]string, len(ids))
	if len(ids) > 0 {
		shops, err := r.shops.FindByIDs(ctx, ids)
		if err != nil {
			r.log(ctx).Warn("shop name lookup failed", zap.Strings("shopIds", ids), zap.Error(err))
		}
		for _, shop := range shops {
			names[shop.ID] = shop.Name
		}
	}

	views := make([]domain.ProductView, 0, len(products))
	for _, product := range products {
		active := make([]domain.ActiveShop, 0)
		for _, id := range product.Shops.IDs() {
			if name, ok := names[id]; ok {
				active = append(active, domain.ActiveShop{Value: id, Label: name})
			}
		}
		viewing := strings.TrimSpace(viewingShop(product))
		if viewing == "" {
			if stored := product.Shops.IDs(); len(stored) > 0 {
				viewing = stored[0]
			}
		}
		views = append(views, domain.ProductView{Product: product, ShopID: viewing, ActiveShops: active})
	}
	return views
}

func (r *ScopeResolver) log(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	return r.logger
}
