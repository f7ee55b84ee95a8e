package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/repositories"
)

func (s *productService) CloneProducts(ctx context.Context, cmd BulkProductCommand) (views []ProductView, err error) {
	ctx, finish := s.metrics.observe(ctx, "CloneProducts", cmd.ShopID)
	defer func() { finish(&err) }()
	return s.clone(ctx, cmd, domain.ProductTypeSimple)
}

func (s *productService) CloneVariants(ctx context.Context, cmd BulkProductCommand) (views []ProductView, err error) {
	ctx, finish := s.metrics.observe(ctx, "CloneVariants", cmd.ShopID)
	defer func() { finish(&err) }()
	return s.clone(ctx, cmd, domain.ProductTypeVariant)
}

// clone copies each named record together with its live subtree. Copies of a
// variant stay under the same parent. All copies land in one atomic insert.
func (s *productService) clone(ctx context.Context, cmd BulkProductCommand, kind domain.ProductType) ([]ProductView, error) {
	shopID, ids, err := s.bulkTarget(cmd.ShopID, cmd.IDs)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, productsResource, ActionCreate, shopID); err != nil {
		return nil, err
	}

	now := s.clock()
	reserved := make(map[string]struct{})
	var (
		records []Product
		roots   []Product
	)
	for _, id := range ids {
		source, err := s.products.FindByID(ctx, id, shopID)
		if err != nil {
			return nil, translateRepoError(err, id)
		}
		if source.Type != kind {
			return nil, invalidInput("%s is not a %s", id, kind)
		}
		live := false
		descendants, err := s.products.Find(ctx, repositories.ProductSelector{AncestorID: id, IsDeleted: &live})
		if err != nil {
			return nil, err
		}

		copies := s.copySubtree(source, descendants, now)
		root := copies[0]
		if root.Type == domain.ProductTypeSimple {
			root.Handle, err = s.uniqueHandle(ctx, source.Handle, root.Shops.IDs(), root.ID, reserved)
			if err != nil {
				return nil, err
			}
			copies[0] = root
		}
		for _, record := range copies {
			if err := s.validator.Full(record); err != nil {
				return nil, err
			}
		}
		records = append(records, copies...)
		roots = append(roots, root)
	}

	if err := s.products.Insert(ctx, records...); err != nil {
		return nil, err
	}

	views := s.scopes.ExpandAll(ctx, roots, func(Product) string { return shopID })
	s.log(ctx).Info("records cloned",
		zap.String("shopId", shopID),
		zap.Strings("sourceIds", ids),
		zap.Int("records", len(records)),
	)
	for i := range views {
		s.emit(ctx, createdEvent(shopID, &views[i]))
	}
	return views, nil
}

// copySubtree assigns fresh ids to root and its descendants and rewrites the
// ancestor chains that point inside the copied subtree.
func (s *productService) copySubtree(root Product, descendants []Product, now time.Time) []Product {
	idMap := make(map[string]string, len(descendants)+1)
	idMap[root.ID] = s.newID()
	for _, d := range descendants {
		idMap[d.ID] = s.newID()
	}

	rewrite := func(p Product) Product {
		c := p.Clone()
		c.ID = idMap[p.ID]
		for i, ancestor := range c.Ancestors {
			if mapped, ok := idMap[ancestor]; ok {
				c.Ancestors[i] = mapped
			}
		}
		c.IsDeleted = false
		c.Workflow = domain.Workflow{Status: domain.WorkflowStatusNew}
		c.CreatedAt = now
		c.UpdatedAt = now
		return c
	}

	out := make([]Product, 0, len(descendants)+1)
	out = append(out, rewrite(root))
	for _, d := range descendants {
		out = append(out, rewrite(d))
	}
	return out
}

func (s *productService) ArchiveProducts(ctx context.Context, cmd BulkProductCommand) (views []ProductView, err error) {
	ctx, finish := s.metrics.observe(ctx, "ArchiveProducts", cmd.ShopID)
	defer func() { finish(&err) }()
	return s.archive(ctx, cmd, domain.ProductTypeSimple)
}

func (s *productService) ArchiveVariants(ctx context.Context, cmd BulkProductCommand) (views []ProductView, err error) {
	ctx, finish := s.metrics.observe(ctx, "ArchiveVariants", cmd.ShopID)
	defer func() { finish(&err) }()
	return s.archive(ctx, cmd, domain.ProductTypeVariant)
}

// archive soft-deletes each named record and everything below it. Descendants
// are archived whatever shops they were scoped to.
func (s *productService) archive(ctx context.Context, cmd BulkProductCommand, kind domain.ProductType) ([]ProductView, error) {
	shopID, ids, err := s.bulkTarget(cmd.ShopID, cmd.IDs)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, productsResource, ActionUpdate, shopID); err != nil {
		return nil, err
	}

	sources := make([]Product, 0, len(ids))
	for _, id := range ids {
		source, err := s.products.FindByID(ctx, id, shopID)
		if err != nil {
			return nil, translateRepoError(err, id)
		}
		if source.Type != kind {
			return nil, invalidInput("%s is not a %s", id, kind)
		}
		sources = append(sources, source)
	}

	deleted := true
	change := repositories.ProductBulkChange{IsDeleted: &deleted, UpdatedAt: s.clock()}
	res, err := s.products.UpdateSubtrees(ctx, ids, shopID, change)
	if err != nil {
		return nil, err
	}

	archived := make([]Product, len(sources))
	for i, source := range sources {
		archived[i] = change.Apply(source)
	}
	views := s.scopes.ExpandAll(ctx, archived, func(Product) string { return shopID })
	s.log(ctx).Info("records archived",
		zap.String("shopId", shopID),
		zap.Strings("ids", ids),
		zap.Int("descendants", res.UpdatedCount-len(sources)),
	)
	for i := range views {
		view := &views[i]
		event := ProductEvent{Name: EventProductArchived, ShopID: shopID, ProductID: view.ID, Product: view}
		if view.IsVariant() {
			event = ProductEvent{
				Name:      EventVariantArchived,
				ShopID:    shopID,
				ProductID: view.TopProductID(),
				VariantID: view.ID,
				Product:   view,
			}
		}
		s.emit(ctx, event)
	}
	return views, nil
}

func (s *productService) AddTagsToProducts(ctx context.Context, cmd ProductTagsCommand) (result BulkUpdateResult, err error) {
	ctx, finish := s.metrics.observe(ctx, "AddTagsToProducts", cmd.ShopID)
	defer func() { finish(&err) }()

	tags := normalizeIDs(cmd.TagIDs)
	if len(tags) == 0 {
		return BulkUpdateResult{}, invalidInput("at least one tag id is required")
	}
	return s.bulkUpdate(ctx, cmd.ShopID, cmd.ProductIDs, repositories.ProductBulkChange{AddTagIDs: tags}, "hashtags")
}

func (s *productService) RemoveTagsFromProducts(ctx context.Context, cmd ProductTagsCommand) (result BulkUpdateResult, err error) {
	ctx, finish := s.metrics.observe(ctx, "RemoveTagsFromProducts", cmd.ShopID)
	defer func() { finish(&err) }()

	tags := normalizeIDs(cmd.TagIDs)
	if len(tags) == 0 {
		return BulkUpdateResult{}, invalidInput("at least one tag id is required")
	}
	return s.bulkUpdate(ctx, cmd.ShopID, cmd.ProductIDs, repositories.ProductBulkChange{RemoveTagIDs: tags}, "hashtags")
}

func (s *productService) UpdateProductsVisibility(ctx context.Context, cmd ProductVisibilityCommand) (result BulkUpdateResult, err error) {
	ctx, finish := s.metrics.observe(ctx, "UpdateProductsVisibility", cmd.ShopID)
	defer func() { finish(&err) }()

	visible := cmd.IsVisible
	return s.bulkUpdate(ctx, cmd.ShopID, cmd.ProductIDs, repositories.ProductBulkChange{IsVisible: &visible}, "isVisible")
}

func (s *productService) bulkUpdate(ctx context.Context, rawShopID string, rawIDs []string, change repositories.ProductBulkChange, field string) (BulkUpdateResult, error) {
	shopID, ids, err := s.bulkTarget(rawShopID, rawIDs)
	if err != nil {
		return BulkUpdateResult{}, err
	}
	if err := s.authorize(ctx, productsResource, ActionUpdate, shopID); err != nil {
		return BulkUpdateResult{}, err
	}

	change.UpdatedAt = s.clock()
	res, err := s.products.UpdateMany(ctx, ids, shopID, change)
	if err != nil {
		return BulkUpdateResult{}, err
	}
	if res.UpdatedCount > 0 {
		s.emit(ctx, ProductEvent{
			Name:       EventProductsBulkUpdate,
			ShopID:     shopID,
			ProductIDs: slices.Clone(res.UpdatedIDs),
			Fields:     []string{field, "updatedAt"},
		})
	}
	return BulkUpdateResult{FoundCount: res.FoundCount, UpdatedCount: res.UpdatedCount}, nil
}

// bulkTarget validates the shop and id list shared by every bulk command.
func (s *productService) bulkTarget(rawShopID string, rawIDs []string) (string, []string, error) {
	shopID := strings.TrimSpace(rawShopID)
	if shopID == "" {
		return "", nil, invalidInput("shop id is required")
	}
	ids := normalizeIDs(rawIDs)
	if len(ids) == 0 {
		return "", nil, invalidInput("at least one id is required")
	}
	if len(ids) > s.maxBulkIDs {
		return "", nil, invalidInput("at most %d ids may be sent at once, got %d", s.maxBulkIDs, len(ids))
	}
	return shopID, ids, nil
}

func createdEvent(shopID string, view *ProductView) ProductEvent {
	if view.IsVariant() {
		return ProductEvent{
			Name:      EventVariantCreated,
			ShopID:    shopID,
			ProductID: view.TopProductID(),
			VariantID: view.ID,
			Product:   view,
		}
	}
	return ProductEvent{Name: EventProductCreated, ShopID: shopID, ProductID: view.ID, Product: view}
}

func normalizeIDs(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || slices.Contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}
