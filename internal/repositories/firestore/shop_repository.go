package firestore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/catalog/internal/domain"
	pfirestore "github.com/hanko-field/catalog/internal/platform/firestore"
	"github.com/hanko-field/catalog/internal/repositories"
)

type shopDocument struct {
	Name string `firestore:"name"`
}

// ShopRepository reads the shop directory collection.
type ShopRepository struct {
	shops *pfirestore.Collection[shopDocument]
}

var _ repositories.ShopRepository = (*ShopRepository)(nil)

// NewShopRepository binds the repository to collection.
func NewShopRepository(provider *pfirestore.Provider, collection string) (*ShopRepository, error) {
	if provider == nil {
		return nil, errors.New("shop repository requires firestore provider")
	}
	if collection == "" {
		return nil, errors.New("shop repository requires collection name")
	}
	return &ShopRepository{shops: pfirestore.NewCollection[shopDocument](provider, collection, nil, nil)}, nil
}

// FindByIDs fetches the listed shops in one round trip, preserving the order of ids.
func (r *ShopRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Shop, error) {
	docs, err := r.shops.GetAll(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc.Data.Name
	}
	out := make([]domain.Shop, 0, len(docs))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			out = append(out, domain.Shop{ID: id, Name: name})
			delete(byID, id)
		}
	}
	return out, nil
}

// ListIDs returns every shop id in the collection.
func (r *ShopRepository) ListIDs(ctx context.Context) ([]string, error) {
	docs, err := r.shops.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Select()
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	return ids, nil
}
