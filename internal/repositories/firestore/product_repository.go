package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/catalog/internal/domain"
	pfirestore "github.com/hanko-field/catalog/internal/platform/firestore"
	"github.com/hanko-field/catalog/internal/repositories"
)

// Firestore caps array-contains-any and in filters at 30 values.
const maxDisjunctionValues = 30

type productDocument struct {
	Ancestors                 []string            `firestore:"ancestors"`
	Type                      string              `firestore:"type"`
	ShopID                    any                 `firestore:"shopId"`
	Handle                    string              `firestore:"handle"`
	Title                     string              `firestore:"title"`
	PageTitle                 string              `firestore:"pageTitle,omitempty"`
	Description               string              `firestore:"description,omitempty"`
	Vendor                    string              `firestore:"vendor,omitempty"`
	SKU                       string              `firestore:"sku"`
	Price                     string              `firestore:"mPrice"`
	Images                    []string            `firestore:"mulinImages"`
	Ranking                   int                 `firestore:"ranking"`
	Quantity                  int                 `firestore:"quantity"`
	StyleID                   string              `firestore:"styleId"`
	OptionID                  string              `firestore:"optionId"`
	ShootStatus               string              `firestore:"shootStatus"`
	IsDeleted                 bool                `firestore:"isDeleted"`
	IsVisible                 bool                `firestore:"isVisible"`
	ShouldAppearInSitemap     bool                `firestore:"shouldAppearInSitemap"`
	SupportedFulfillmentTypes []string            `firestore:"supportedFulfillmentTypes"`
	Metafields                []metafieldDocument `firestore:"metafields,omitempty"`
	TagIDs                    []string            `firestore:"hashtags,omitempty"`
	Workflow                  workflowDocument    `firestore:"workflow"`
	CreatedAt                 time.Time           `firestore:"createdAt"`
	UpdatedAt                 time.Time           `firestore:"updatedAt"`
}

type metafieldDocument struct {
	Key       string `firestore:"key"`
	Namespace string `firestore:"namespace,omitempty"`
	Value     string `firestore:"value"`
}

type workflowDocument struct {
	Status   string   `firestore:"status"`
	Workflow []string `firestore:"workflow,omitempty"`
}

// ProductRepository stores products and variants in one Firestore collection.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository binds the repository to collection.
func NewProductRepository(provider *pfirestore.Provider, collection string) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	if collection == "" {
		return nil, errors.New("product repository requires collection name")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, collection, nil, nil),
	}, nil
}

// Insert creates every record inside one transaction so a taken id aborts the whole batch.
func (r *ProductRepository) Insert(ctx context.Context, products ...domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, product := range products {
			ref, err := r.products.Doc(ctx, product.ID)
			if err != nil {
				return err
			}
			payload, err := r.products.Encode(encodeProduct(product))
			if err != nil {
				return err
			}
			if err := tx.Create(ref, payload); err != nil {
				return pfirestore.WrapError(r.products.Op("insert"), err)
			}
		}
		return nil
	}, pfirestore.WithTxOp(r.products.Op("insert")))
}

// FindByID implements repositories.ProductRepository.
func (r *ProductRepository) FindByID(ctx context.Context, id, shopID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	product := decodeProduct(doc.ID, doc.Data)
	if !product.Shops.Contains(shopID) {
		return domain.Product{}, pfirestore.NotFound(r.products.Op("get"), fmt.Sprintf("product %s not found in shop %s", id, shopID))
	}
	return product, nil
}

// FindOneAndUpdate reads, patches and writes the record in one transaction.
func (r *ProductRepository) FindOneAndUpdate(ctx context.Context, id, shopID string, patch domain.ProductPatch) (domain.Product, error) {
	var updated domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.Doc(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError(r.products.Op("update"), err)
		}
		doc, err := r.products.Decode(snap)
		if err != nil {
			return err
		}
		current := decodeProduct(doc.ID, doc.Data)
		if !current.Shops.Contains(shopID) {
			return pfirestore.NotFound(r.products.Op("update"), fmt.Sprintf("product %s not found in shop %s", id, shopID))
		}
		next := patch.Apply(current)
		payload, err := r.products.Encode(encodeProduct(next))
		if err != nil {
			return err
		}
		if err := tx.Set(ref, payload); err != nil {
			return pfirestore.WrapError(r.products.Op("update"), err)
		}
		updated = next
		return nil
	}, pfirestore.WithTxOp(r.products.Op("findOneAndUpdate")))
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// Find pushes the indexable predicates down to Firestore and evaluates the rest in memory.
func (r *ProductRepository) Find(ctx context.Context, selector repositories.ProductSelector) ([]domain.Product, error) {
	var (
		docs []pfirestore.Document[productDocument]
		err  error
	)
	if len(selector.IDs) > 0 {
		docs, err = r.products.GetAll(ctx, selector.IDs)
	} else {
		docs, err = r.query(ctx, selector)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(docs))
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		if _, dup := seen[doc.ID]; dup {
			continue
		}
		seen[doc.ID] = struct{}{}
		product := decodeProduct(doc.ID, doc.Data)
		if selector.Matches(product) {
			out = append(out, product)
		}
	}
	repositories.SortProducts(out, selector.Sort)
	return out, nil
}

func (r *ProductRepository) query(ctx context.Context, selector repositories.ProductSelector) ([]pfirestore.Document[productDocument], error) {
	base := func(q firestore.Query) firestore.Query {
		if selector.Type != "" {
			q = q.Where("type", "==", string(selector.Type))
		}
		if selector.IsDeleted != nil {
			q = q.Where("isDeleted", "==", *selector.IsDeleted)
		}
		if selector.IsVisible != nil {
			q = q.Where("isVisible", "==", *selector.IsVisible)
		}
		if selector.Handle != "" {
			q = q.Where("handle", "==", selector.Handle)
		}
		if selector.AncestorsExactly != nil {
			q = q.Where("ancestors", "==", selector.AncestorsExactly)
		}
		return q
	}

	switch {
	case selector.AncestorID != "":
		return r.products.Query(ctx, func(q firestore.Query) firestore.Query {
			return base(q).Where("ancestors", "array-contains", selector.AncestorID)
		})
	case len(selector.AncestorIDs) > 0 && len(selector.AncestorIDs) <= maxDisjunctionValues:
		return r.products.Query(ctx, func(q firestore.Query) firestore.Query {
			return base(q).Where("ancestors", "array-contains-any", selector.AncestorIDs)
		})
	case len(selector.ShopIDs) > 0 && len(selector.ShopIDs) <= maxDisjunctionValues:
		// Records written before scopes became lists carry a scalar shopId.
		listed, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
			return base(q).Where("shopId", "array-contains-any", selector.ShopIDs)
		})
		if err != nil {
			return nil, err
		}
		legacy, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
			return base(q).Where("shopId", "in", selector.ShopIDs)
		})
		if err != nil {
			return nil, err
		}
		return append(listed, legacy...), nil
	default:
		return r.products.Query(ctx, base)
	}
}

// UpdateMany applies change to the in-scope records inside one transaction.
func (r *ProductRepository) UpdateMany(ctx context.Context, ids []string, shopID string, change repositories.ProductBulkChange) (repositories.BulkResult, error) {
	var result repositories.BulkResult
	if len(ids) == 0 {
		return result, nil
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = repositories.BulkResult{}
		refs := make([]*firestore.DocumentRef, 0, len(ids))
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ref, err := r.products.Doc(ctx, id)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return pfirestore.WrapError(r.products.Op("update_many"), err)
		}
		for i, snap := range snaps {
			if snap == nil || !snap.Exists() {
				continue
			}
			doc, err := r.products.Decode(snap)
			if err != nil {
				return err
			}
			product := decodeProduct(doc.ID, doc.Data)
			if !product.Shops.Contains(shopID) {
				continue
			}
			result.FoundCount++
			payload, err := r.products.Encode(encodeProduct(change.Apply(product)))
			if err != nil {
				return err
			}
			if err := tx.Set(refs[i], payload); err != nil {
				return pfirestore.WrapError(r.products.Op("update_many"), err)
			}
			result.UpdatedCount++
			result.UpdatedIDs = append(result.UpdatedIDs, product.ID)
		}
		return nil
	}, pfirestore.WithTxOp(r.products.Op("updateMany")))
	if err != nil {
		return repositories.BulkResult{}, err
	}
	return result, nil
}

// UpdateSubtrees applies change to the in-scope roots and to every record whose
// ancestors name one of them. All reads happen before the first write.
func (r *ProductRepository) UpdateSubtrees(ctx context.Context, rootIDs []string, shopID string, change repositories.ProductBulkChange) (repositories.BulkResult, error) {
	var result repositories.BulkResult
	if len(rootIDs) == 0 {
		return result, nil
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = repositories.BulkResult{}
		refs := make([]*firestore.DocumentRef, 0, len(rootIDs))
		for _, id := range rootIDs {
			ref, err := r.products.Doc(ctx, id)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return pfirestore.WrapError(r.products.Op("update_subtrees"), err)
		}

		var (
			roots   []string
			targets []domain.Product
		)
		seen := make(map[string]struct{})
		for _, snap := range snaps {
			if snap == nil || !snap.Exists() {
				continue
			}
			doc, err := r.products.Decode(snap)
			if err != nil {
				return err
			}
			product := decodeProduct(doc.ID, doc.Data)
			if _, dup := seen[product.ID]; dup || !product.Shops.Contains(shopID) {
				continue
			}
			seen[product.ID] = struct{}{}
			roots = append(roots, product.ID)
			targets = append(targets, product)
		}
		for start := 0; start < len(roots); start += maxDisjunctionValues {
			chunk := roots[start:min(start+maxDisjunctionValues, len(roots))]
			docs, err := r.products.QueryTx(ctx, tx, func(q firestore.Query) firestore.Query {
				return q.Where("ancestors", "array-contains-any", chunk)
			})
			if err != nil {
				return err
			}
			for _, doc := range docs {
				if _, dup := seen[doc.ID]; dup {
					continue
				}
				seen[doc.ID] = struct{}{}
				targets = append(targets, decodeProduct(doc.ID, doc.Data))
			}
		}

		for _, product := range targets {
			result.FoundCount++
			ref, err := r.products.Doc(ctx, product.ID)
			if err != nil {
				return err
			}
			payload, err := r.products.Encode(encodeProduct(change.Apply(product)))
			if err != nil {
				return err
			}
			if err := tx.Set(ref, payload); err != nil {
				return pfirestore.WrapError(r.products.Op("update_subtrees"), err)
			}
			result.UpdatedCount++
			result.UpdatedIDs = append(result.UpdatedIDs, product.ID)
		}
		return nil
	}, pfirestore.WithTxOp(r.products.Op("updateSubtrees")))
	if err != nil {
		return repositories.BulkResult{}, err
	}
	return result, nil
}

func encodeProduct(p domain.Product) productDocument {
	doc := productDocument{
		Ancestors:                 nonNilStrings(p.Ancestors),
		Type:                      string(p.Type),
		ShopID:                    p.Shops.IDs(),
		Handle:                    p.Handle,
		Title:                     p.Title,
		PageTitle:                 p.PageTitle,
		Description:               p.Description,
		Vendor:                    p.Vendor,
		SKU:                       p.SKU,
		Price:                     p.Price,
		Images:                    nonNilStrings(p.Images),
		Ranking:                   p.Ranking,
		Quantity:                  p.Quantity,
		StyleID:                   p.StyleID,
		OptionID:                  p.OptionID,
		ShootStatus:               p.ShootStatus,
		IsDeleted:                 p.IsDeleted,
		IsVisible:                 p.IsVisible,
		ShouldAppearInSitemap:     p.ShouldAppearInSitemap,
		SupportedFulfillmentTypes: nonNilStrings(p.SupportedFulfillmentTypes),
		TagIDs:                    p.TagIDs,
		Workflow:                  workflowDocument{Status: p.Workflow.Status, Workflow: p.Workflow.Workflow},
		CreatedAt:                 p.CreatedAt.UTC(),
		UpdatedAt:                 p.UpdatedAt.UTC(),
	}
	for _, field := range p.Metafields {
		doc.Metafields = append(doc.Metafields, metafieldDocument{Key: field.Key, Namespace: field.Namespace, Value: field.Value})
	}
	return doc
}

func decodeProduct(id string, doc productDocument) domain.Product {
	product := domain.Product{
		ID:                        id,
		Ancestors:                 nonNilStrings(doc.Ancestors),
		Type:                      domain.ProductType(doc.Type),
		Shops:                     decodeShopScope(doc.ShopID),
		Handle:                    doc.Handle,
		Title:                     doc.Title,
		PageTitle:                 doc.PageTitle,
		Description:               doc.Description,
		Vendor:                    doc.Vendor,
		SKU:                       doc.SKU,
		Price:                     doc.Price,
		Images:                    doc.Images,
		Ranking:                   doc.Ranking,
		Quantity:                  doc.Quantity,
		StyleID:                   doc.StyleID,
		OptionID:                  doc.OptionID,
		ShootStatus:               doc.ShootStatus,
		IsDeleted:                 doc.IsDeleted,
		IsVisible:                 doc.IsVisible,
		ShouldAppearInSitemap:     doc.ShouldAppearInSitemap,
		SupportedFulfillmentTypes: doc.SupportedFulfillmentTypes,
		TagIDs:                    doc.TagIDs,
		Workflow:                  domain.Workflow{Status: doc.Workflow.Status, Workflow: doc.Workflow.Workflow},
		CreatedAt:                 doc.CreatedAt.UTC(),
		UpdatedAt:                 doc.UpdatedAt.UTC(),
	}
	for _, field := range doc.Metafields {
		product.Metafields = append(product.Metafields, domain.Metafield{Key: field.Key, Namespace: field.Namespace, Value: field.Value})
	}
	return product
}

// decodeShopScope accepts both the legacy scalar and the list form.
func decodeShopScope(raw any) domain.ShopScope {
	switch v := raw.(type) {
	case string:
		return domain.SingleShop(v)
	case []string:
		return domain.MultiShop(v...)
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		return domain.MultiShop(ids...)
	default:
		return domain.ShopScope{}
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
