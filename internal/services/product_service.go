package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	domain "github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/platform/requestctx"
	"github.com/hanko-field/catalog/internal/repositories"
)

const (
	productsResource      = "catalog:products"
	defaultMaxBulkIDs     = 200
	defaultHandleAttempts = 20
)

// ProductServiceDeps bundles constructor inputs for the product service.
type ProductServiceDeps struct {
	Products     repositories.ProductRepository
	Shops        repositories.ShopRepository
	Permissions  PermissionChecker
	Cleaner      ProductInputCleaner
	Events       ProductEventPublisher
	ProductHooks []ProductHook
	VariantHooks []ProductHook
	Logger       *zap.Logger
	Clock        func() time.Time
	IDGenerator  func() string

	DefaultFulfillmentTypes []string
	MaxBulkIDs              int
	HandleAttempts          int
}

type productService struct {
	products     repositories.ProductRepository
	shops        repositories.ShopRepository
	scopes       *ScopeResolver
	perms        PermissionChecker
	cleaner      ProductInputCleaner
	events       ProductEventPublisher
	productHooks []ProductHook
	variantHooks []ProductHook
	validator    *productValidator
	metrics      productMetrics
	logger       *zap.Logger
	clock        func() time.Time
	newID        func() string

	fulfillmentTypes []string
	maxBulkIDs       int
	handleAttempts   int
}

// NewProductService constructs the product service with the supplied dependencies.
func NewProductService(deps ProductServiceDeps) (ProductService, error) {
	if deps.Products == nil {
		return nil, errors.New("product service: product repository is required")
	}
	if deps.Shops == nil {
		return nil, errors.New("product service: shop repository is required")
	}
	if deps.Permissions == nil {
		return nil, errors.New("product service: permission checker is required")
	}
	scopes, err := NewScopeResolver(deps.Shops, deps.Logger)
	if err != nil {
		return nil, err
	}

	cleaner := deps.Cleaner
	if cleaner == nil {
		cleaner = NewInputCleaner()
	}
	events := deps.Events
	if events == nil {
		events = noopEventPublisher{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	fulfillment := slices.Clone(deps.DefaultFulfillmentTypes)
	if len(fulfillment) == 0 {
		fulfillment = []string{domain.FulfillmentTypeShipping}
	}
	maxBulk := deps.MaxBulkIDs
	if maxBulk <= 0 {
		maxBulk = defaultMaxBulkIDs
	}
	attempts := deps.HandleAttempts
	if attempts <= 0 {
		attempts = defaultHandleAttempts
	}

	return &productService{
		products:         deps.Products,
		shops:            deps.Shops,
		scopes:           scopes,
		perms:            deps.Permissions,
		cleaner:          cleaner,
		events:           events,
		productHooks:     slices.Clone(deps.ProductHooks),
		variantHooks:     slices.Clone(deps.VariantHooks),
		validator:        newProductValidator(),
		metrics:          newProductMetrics(),
		logger:           logger,
		clock:            func() time.Time { return clock().UTC() },
		newID:            idGen,
		fulfillmentTypes: fulfillment,
		maxBulkIDs:       maxBulk,
		handleAttempts:   attempts,
	}, nil
}

func (s *productService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (view ProductView, err error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	ctx, finish := s.metrics.observe(ctx, "CreateProduct", shopID)
	defer func() { finish(&err) }()

	if shopID == "" {
		return ProductView{}, invalidInput("shop id is required")
	}
	if err := s.authorize(ctx, productsResource, ActionCreate, shopID); err != nil {
		return ProductView{}, err
	}

	var input ProductInput
	if cmd.Product != nil {
		input = *cmd.Product
	}
	active := input.ActiveShops
	input.ActiveShops = nil

	patch, err := s.cleaner.CleanProductInput(ctx, CleanRequest{ShopID: shopID, Creating: true, Input: input})
	if err != nil {
		return ProductView{}, asInvalid(err)
	}
	if patch.IsDeleted != nil && *patch.IsDeleted {
		return ProductView{}, invalidInput("cannot create a product marked as deleted")
	}

	now := s.clock()
	product := patch.Apply(s.productDefaults(s.idOrNew(input.ID), now))

	product.Shops, err = s.creationScope(ctx, shopID, active, cmd.ActivateAllShops)
	if err != nil {
		return ProductView{}, err
	}
	product.Handle, err = s.uniqueHandle(ctx, product.Handle, product.Shops.IDs(), product.ID, nil)
	if err != nil {
		return ProductView{}, err
	}
	product, err = runHooks(ctx, s.productHooks, product)
	if err != nil {
		return ProductView{}, err
	}
	if err := s.validator.Full(product); err != nil {
		return ProductView{}, err
	}

	records := []Product{product}
	if cmd.ShouldCreateFirstVariant == nil || *cmd.ShouldCreateFirstVariant {
		variant, err := s.newVariant(ctx, product, ProductPatch{}, s.newID(), now)
		if err != nil {
			return ProductView{}, err
		}
		records = append(records, variant)
	}
	if err := s.products.Insert(ctx, records...); err != nil {
		return ProductView{}, err
	}

	view = s.scopes.Expand(ctx, product, shopID)
	s.log(ctx).Info("product created", zap.String("productId", product.ID), zap.String("shopId", shopID), zap.Int("records", len(records)))
	s.emit(ctx, ProductEvent{Name: EventProductCreated, ShopID: shopID, ProductID: product.ID, Product: &view})
	return view, nil
}

func (s *productService) CreateVariant(ctx context.Context, cmd CreateVariantCommand) (view ProductView, err error) {
	parentID := strings.TrimSpace(cmd.ProductID)
	shopID := strings.TrimSpace(cmd.ShopID)
	ctx, finish := s.metrics.observe(ctx, "CreateVariant", shopID)
	defer func() { finish(&err) }()

	if parentID == "" || shopID == "" {
		return ProductView{}, invalidInput("product id and shop id are required")
	}
	if err := s.authorize(ctx, productResource(parentID), ActionCreate, shopID); err != nil {
		return ProductView{}, err
	}

	parent, err := s.products.FindByID(ctx, parentID, shopID)
	if err != nil {
		return ProductView{}, translateRepoError(err, parentID)
	}

	var input ProductInput
	if cmd.Variant != nil {
		input = *cmd.Variant
	}
	active := input.ActiveShops
	input.ActiveShops = nil

	patch, err := s.cleaner.CleanVariantInput(ctx, CleanRequest{ShopID: shopID, ProductID: parentID, Creating: true, Input: input})
	if err != nil {
		return ProductView{}, asInvalid(err)
	}
	if patch.IsDeleted != nil && *patch.IsDeleted {
		return ProductView{}, invalidInput("cannot create a variant marked as deleted")
	}
	if scope, ok := ScopeFromActiveShops(active); ok {
		patch.Shops = &scope
	}

	variant, err := s.newVariant(ctx, parent, patch, s.idOrNew(input.ID), s.clock())
	if err != nil {
		return ProductView{}, err
	}
	if err := s.products.Insert(ctx, variant); err != nil {
		return ProductView{}, err
	}

	view = s.scopes.Expand(ctx, variant, shopID)
	s.emit(ctx, ProductEvent{
		Name:      EventVariantCreated,
		ShopID:    shopID,
		ProductID: variant.TopProductID(),
		VariantID: variant.ID,
		Product:   &view,
	})
	return view, nil
}

func (s *productService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (view ProductView, err error) {
	ctx, finish := s.metrics.observe(ctx, "UpdateProduct", cmd.ShopID)
	defer func() { finish(&err) }()

	view, _, err = s.update(ctx, strings.TrimSpace(cmd.ProductID), strings.TrimSpace(cmd.ShopID), cmd.Product, false)
	if err != nil {
		return ProductView{}, err
	}
	s.emit(ctx, ProductEvent{Name: EventProductUpdated, ShopID: view.ShopID, ProductID: view.ID, Product: &view})
	return view, nil
}

func (s *productService) UpdateVariant(ctx context.Context, cmd UpdateVariantCommand) (view ProductView, err error) {
	ctx, finish := s.metrics.observe(ctx, "UpdateVariant", cmd.ShopID)
	defer func() { finish(&err) }()

	view, patch, err := s.update(ctx, strings.TrimSpace(cmd.VariantID), strings.TrimSpace(cmd.ShopID), cmd.Variant, true)
	if err != nil {
		return ProductView{}, err
	}
	s.emit(ctx, ProductEvent{
		Name:      EventVariantUpdated,
		ShopID:    view.ShopID,
		ProductID: view.TopProductID(),
		VariantID: view.ID,
		Fields:    patch.Fields(),
		Product:   &view,
	})
	return view, nil
}

// update runs the shared mutation pipeline. Nothing is emitted here so a failure
// at any stage leaves no event behind.
func (s *productService) update(ctx context.Context, id, shopID string, input *ProductInput, variant bool) (ProductView, ProductPatch, error) {
	if id == "" || shopID == "" {
		return ProductView{}, ProductPatch{}, invalidInput("id and shop id are required")
	}
	if input == nil {
		return ProductView{}, ProductPatch{}, invalidInput("update payload is required")
	}
	if err := s.authorize(ctx, productResource(id), ActionUpdate, shopID); err != nil {
		return ProductView{}, ProductPatch{}, err
	}

	existing, err := s.products.FindByID(ctx, id, shopID)
	if err != nil {
		return ProductView{}, ProductPatch{}, translateRepoError(err, id)
	}
	if variant && existing.Type != domain.ProductTypeVariant {
		return ProductView{}, ProductPatch{}, fmt.Errorf("%w: %s is not a variant", ErrProductNotFound, id)
	}

	cleanInput := *input
	active := cleanInput.ActiveShops
	cleanInput.ActiveShops = nil
	req := CleanRequest{ShopID: shopID, ProductID: id, CurrentHandle: existing.Handle, Input: cleanInput}

	var patch ProductPatch
	if variant {
		patch, err = s.cleaner.CleanVariantInput(ctx, req)
	} else {
		patch, err = s.cleaner.CleanProductInput(ctx, req)
	}
	if err != nil {
		return ProductView{}, ProductPatch{}, asInvalid(err)
	}

	if scope, ok := ScopeFromActiveShops(active); ok {
		patch.Shops = &scope
	}
	if patch.IsEmpty() {
		return ProductView{}, ProductPatch{}, invalidInput("no fields to update")
	}

	// A changed handle or a widened scope is checked against every shop the
	// record will belong to.
	handle := existing.Handle
	if patch.Handle != nil {
		handle = *patch.Handle
	}
	if handle != "" && (handle != existing.Handle || patch.Shops != nil) {
		shops := existing.Shops.IDs()
		if patch.Shops != nil {
			shops = patch.Shops.IDs()
		}
		unique, err := s.uniqueHandle(ctx, handle, shops, id, nil)
		if err != nil {
			return ProductView{}, ProductPatch{}, err
		}
		if patch.Handle != nil || unique != existing.Handle {
			patch.Handle = &unique
		}
	}

	now := s.clock()
	patch.UpdatedAt = &now
	if err := s.validator.Partial(patch); err != nil {
		return ProductView{}, ProductPatch{}, err
	}

	updated, err := s.products.FindOneAndUpdate(ctx, id, shopID, patch)
	if err != nil {
		return ProductView{}, ProductPatch{}, translateRepoError(err, id)
	}
	return s.scopes.Expand(ctx, updated, shopID), patch, nil
}

func (s *productService) productDefaults(id string, now time.Time) Product {
	return Product{
		ID:                        id,
		Ancestors:                 []string{},
		Type:                      domain.ProductTypeSimple,
		Images:                    []string{},
		ShouldAppearInSitemap:     true,
		SupportedFulfillmentTypes: slices.Clone(s.fulfillmentTypes),
		Workflow:                  domain.Workflow{Status: domain.WorkflowStatusNew},
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

// newVariant builds, hooks and validates a variant placed directly below parent.
func (s *productService) newVariant(ctx context.Context, parent Product, patch ProductPatch, id string, now time.Time) (Product, error) {
	ancestors := append(slices.Clone(parent.Ancestors), parent.ID)
	variant := patch.Apply(Product{
		ID:        id,
		Ancestors: ancestors,
		Type:      domain.ProductTypeVariant,
		Shops:     parent.Shops.Clone(),
		Images:    []string{},
		Workflow:  domain.Workflow{Status: domain.WorkflowStatusNew},
		CreatedAt: now,
		UpdatedAt: now,
	})
	variant, err := runHooks(ctx, s.variantHooks, variant)
	if err != nil {
		return Product{}, err
	}
	if err := s.validator.Full(variant); err != nil {
		return Product{}, err
	}
	return variant, nil
}

func (s *productService) creationScope(ctx context.Context, shopID string, active []ActiveShop, activateAll bool) (domain.ShopScope, error) {
	if scope, ok := ScopeFromActiveShops(active); ok {
		return scope, nil
	}
	if activateAll {
		ids, err := s.shops.ListIDs(ctx)
		if err != nil {
			return domain.ShopScope{}, err
		}
		if !slices.Contains(ids, shopID) {
			ids = append([]string{shopID}, ids...)
		}
		return domain.MultiShop(ids...), nil
	}
	return domain.SingleShop(shopID), nil
}

// uniqueHandle returns base or the first free "base-N" among products sharing any of shopIDs.
// reserved holds handles claimed earlier in the same call that are not yet persisted.
func (s *productService) uniqueHandle(ctx context.Context, base string, shopIDs []string, selfID string, reserved map[string]struct{}) (string, error) {
	if base == "" || len(shopIDs) == 0 {
		return base, nil
	}
	candidate := base
	for attempt := 1; attempt <= s.handleAttempts; attempt++ {
		if _, claimed := reserved[candidate]; !claimed {
			owners, err := s.products.Find(ctx, repositories.ProductSelector{
				Type:    domain.ProductTypeSimple,
				Handle:  candidate,
				ShopIDs: shopIDs,
			})
			if err != nil {
				return "", err
			}
			if !slices.ContainsFunc(owners, func(p Product) bool { return p.ID != selfID }) {
				if reserved != nil {
					reserved[candidate] = struct{}{}
				}
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", invalidInput("handle %q is already in use", base)
}

func (s *productService) idOrNew(id *string) string {
	if id != nil {
		if trimmed := strings.TrimSpace(*id); trimmed != "" {
			return trimmed
		}
	}
	return s.newID()
}

func (s *productService) authorize(ctx context.Context, resource, action, shopID string) error {
	err := s.perms.Check(ctx, PermissionRequest{Resource: resource, Action: action, ShopID: shopID})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProductPermissionDenied) {
		return err
	}
	return fmt.Errorf("%w: %s on %s: %v", ErrProductPermissionDenied, action, resource, err)
}

// emit hands event to the sink after a successful write. The sink sees a
// context that outlives the request; failures are logged, never returned.
func (s *productService) emit(ctx context.Context, event ProductEvent) {
	event.OccurredAt = s.clock()
	if err := s.events.PublishProductEvent(context.WithoutCancel(ctx), event); err != nil {
		s.log(ctx).Warn("product event publish failed",
			zap.String("event", event.Name),
			zap.String("productId", event.ProductID),
			zap.String("shopId", event.ShopID),
			zap.Error(err),
		)
	}
}

func (s *productService) log(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	return s.logger
}

func runHooks(ctx context.Context, hooks []ProductHook, product Product) (Product, error) {
	for i, hook := range hooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, product.Clone())
		if err != nil {
			return Product{}, fmt.Errorf("product hook %d: %w", i, err)
		}
		product = next
	}
	return product, nil
}

func productResource(id string) string {
	return productsResource + ":" + id
}

func asInvalid(err error) error {
	if errors.Is(err, ErrProductInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProductInvalidInput, err)
}

type noopEventPublisher struct{}

func (noopEventPublisher) PublishProductEvent(context.Context, ProductEvent) error { return nil }
