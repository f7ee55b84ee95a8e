package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	domain "github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/repositories"
)

func (s *productService) GetProduct(ctx context.Context, query GetProductQuery) (view ProductView, err error) {
	productID := strings.TrimSpace(query.ProductID)
	shopID := strings.TrimSpace(query.ShopID)
	ctx, finish := s.metrics.observe(ctx, "GetProduct", shopID)
	defer func() { finish(&err) }()

	if productID == "" || shopID == "" {
		return ProductView{}, invalidInput("product id and shop id are required")
	}
	if err := s.authorize(ctx, productResource(productID), ActionRead, shopID); err != nil {
		return ProductView{}, err
	}
	product, err := s.products.FindByID(ctx, productID, shopID)
	if err != nil {
		return ProductView{}, translateRepoError(err, productID)
	}
	return s.scopes.Expand(ctx, product, shopID), nil
}

// ListProducts returns top-level products visible in any of the requested shops,
// newest first. The caller needs read access in every requested shop.
func (s *productService) ListProducts(ctx context.Context, filter ProductFilter) (views []ProductView, err error) {
	shopIDs := normalizeIDs(filter.ShopIDs)
	ctx, finish := s.metrics.observe(ctx, "ListProducts", strings.Join(shopIDs, ","))
	defer func() { finish(&err) }()

	if len(shopIDs) == 0 {
		return nil, invalidInput("at least one shop id is required")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, shopID := range shopIDs {
		g.Go(func() error {
			return s.authorize(gctx, productsResource, ActionRead, shopID)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	selector := repositories.ProductSelector{
		Type:      domain.ProductTypeSimple,
		ShopIDs:   shopIDs,
		IDs:       normalizeIDs(filter.ProductIDs),
		TagIDs:    normalizeIDs(filter.TagIDs),
		IsDeleted: filter.IsArchived,
		IsVisible: filter.IsVisible,
		Text:      compileQuery(filter.Query),
		Sort:      repositories.SortByCreatedAtDesc,
	}
	if key := strings.TrimSpace(filter.MetafieldKey); key != "" {
		selector.MetafieldKey = key
		selector.MetafieldValue = strings.TrimSpace(filter.MetafieldValue)
	}
	if selector.PriceMin, err = parsePriceBound(filter.PriceMin, "priceMin"); err != nil {
		return nil, err
	}
	if selector.PriceMax, err = parsePriceBound(filter.PriceMax, "priceMax"); err != nil {
		return nil, err
	}
	if selector.PriceMin != nil && selector.PriceMax != nil && selector.PriceMin.GreaterThan(*selector.PriceMax) {
		return nil, invalidInput("priceMin must not exceed priceMax")
	}

	products, err := s.products.Find(ctx, selector)
	if err != nil {
		return nil, err
	}
	return s.scopes.ExpandAll(ctx, products, func(p Product) string {
		for _, id := range shopIDs {
			if p.Shops.Contains(id) {
				return id
			}
		}
		return shopIDs[0]
	}), nil
}

// ListVariants returns the variants below NodeID ordered by ranking. Hidden and
// archived variants are included unless the matching flag is explicitly false.
func (s *productService) ListVariants(ctx context.Context, query VariantQuery) (views []ProductView, err error) {
	nodeID := strings.TrimSpace(query.NodeID)
	shopID := strings.TrimSpace(query.ShopID)
	ctx, finish := s.metrics.observe(ctx, "ListVariants", shopID)
	defer func() { finish(&err) }()

	if nodeID == "" || shopID == "" {
		return nil, invalidInput("node id and shop id are required")
	}
	if err := s.authorize(ctx, productResource(nodeID), ActionRead, shopID); err != nil {
		return nil, err
	}

	selector := repositories.ProductSelector{
		Type:    domain.ProductTypeVariant,
		ShopIDs: []string{shopID},
		Sort:    repositories.SortByRanking,
	}
	if query.TopOnly {
		selector.AncestorsExactly = []string{nodeID}
	} else {
		selector.AncestorID = nodeID
	}
	if query.ShouldIncludeHidden != nil && !*query.ShouldIncludeHidden {
		visible := true
		selector.IsVisible = &visible
	}
	if query.ShouldIncludeArchived != nil && !*query.ShouldIncludeArchived {
		live := false
		selector.IsDeleted = &live
	}

	variants, err := s.products.Find(ctx, selector)
	if err != nil {
		return nil, err
	}
	return s.scopes.ExpandAll(ctx, variants, func(Product) string { return shopID }), nil
}

// compileQuery builds a case-insensitive matcher. Input that is not a valid
// pattern is matched literally.
func compileQuery(query string) *regexp.Regexp {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if re, err := regexp.Compile("(?i)" + query); err == nil {
		return re
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
}

func parsePriceBound(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		return nil, invalidInput("%s must be a decimal number", field)
	}
	if value.IsNegative() {
		return nil, invalidInput("%s must not be negative", field)
	}
	return &value, nil
}
