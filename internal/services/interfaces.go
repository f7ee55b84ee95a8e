package services

import (
	"context"
	"time"

	domain "github.com/hanko-field/catalog/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product      = domain.Product
	ProductView  = domain.ProductView
	ProductInput = domain.ProductInput
	ProductPatch = domain.ProductPatch
	ActiveShop   = domain.ActiveShop
	Metafield    = domain.Metafield
)

// ProductService manages catalog products and variants across shops.
type ProductService interface {
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (ProductView, error)
	CreateVariant(ctx context.Context, cmd CreateVariantCommand) (ProductView, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (ProductView, error)
	UpdateVariant(ctx context.Context, cmd UpdateVariantCommand) (ProductView, error)
	CloneProducts(ctx context.Context, cmd BulkProductCommand) ([]ProductView, error)
	CloneVariants(ctx context.Context, cmd BulkProductCommand) ([]ProductView, error)
	ArchiveProducts(ctx context.Context, cmd BulkProductCommand) ([]ProductView, error)
	ArchiveVariants(ctx context.Context, cmd BulkProductCommand) ([]ProductView, error)
	AddTagsToProducts(ctx context.Context, cmd ProductTagsCommand) (BulkUpdateResult, error)
	RemoveTagsFromProducts(ctx context.Context, cmd ProductTagsCommand) (BulkUpdateResult, error)
	UpdateProductsVisibility(ctx context.Context, cmd ProductVisibilityCommand) (BulkUpdateResult, error)

	GetProduct(ctx context.Context, query GetProductQuery) (ProductView, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]ProductView, error)
	ListVariants(ctx context.Context, query VariantQuery) ([]ProductView, error)
}

// CreateProductCommand creates a top-level product in ShopID.
type CreateProductCommand struct {
	ShopID  string
	Product *ProductInput
	// ShouldCreateFirstVariant defaults to true when nil.
	ShouldCreateFirstVariant *bool
	// ActivateAllShops scopes the product to every shop in the directory when no active shops are supplied.
	ActivateAllShops bool
}

// CreateVariantCommand creates a variant below ProductID, which may itself be a variant.
type CreateVariantCommand struct {
	ProductID string
	ShopID    string
	Variant   *ProductInput
}

// UpdateProductCommand partially updates a product.
type UpdateProductCommand struct {
	ProductID string
	ShopID    string
	Product   *ProductInput
}

// UpdateVariantCommand partially updates a variant.
type UpdateVariantCommand struct {
	VariantID string
	ShopID    string
	Variant   *ProductInput
}

// BulkProductCommand names a set of records within a shop.
type BulkProductCommand struct {
	ShopID string
	IDs    []string
}

// ProductTagsCommand adds or removes tags on products.
type ProductTagsCommand struct {
	ShopID     string
	ProductIDs []string
	TagIDs     []string
}

// ProductVisibilityCommand toggles visibility on products.
type ProductVisibilityCommand struct {
	ShopID     string
	ProductIDs []string
	IsVisible  bool
}

// BulkUpdateResult reports the outcome of a bulk write.
type BulkUpdateResult struct {
	FoundCount   int
	UpdatedCount int
}

// GetProductQuery loads one product as seen from ShopID.
type GetProductQuery struct {
	ProductID string
	ShopID    string
}

// ProductFilter narrows product listings. ShopIDs is mandatory; all other
// criteria are optional and combined with AND.
type ProductFilter struct {
	ShopIDs        []string
	ProductIDs     []string
	TagIDs         []string
	Query          string
	IsArchived     *bool
	IsVisible      *bool
	MetafieldKey   string
	MetafieldValue string
	PriceMin       *string
	PriceMax       *string
}

// VariantQuery lists variants below NodeID.
type VariantQuery struct {
	NodeID                string
	ShopID                string
	TopOnly               bool
	ShouldIncludeHidden   *bool
	ShouldIncludeArchived *bool
}

// Permission actions checked by the catalog.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
)

// PermissionRequest describes one authorization question.
type PermissionRequest struct {
	Resource string
	Action   string
	ShopID   string
}

// PermissionChecker answers authorization questions for the current caller.
// A nil error grants access.
type PermissionChecker interface {
	Check(ctx context.Context, req PermissionRequest) error
}

// CleanRequest is the input handed to the input cleaner.
type CleanRequest struct {
	ShopID    string
	ProductID string
	Creating  bool
	// CurrentHandle is the stored handle on update. Empty on create.
	CurrentHandle string
	Input         ProductInput
}

// ProductInputCleaner normalises caller input into a patch. Implementations
// must not touch storage.
type ProductInputCleaner interface {
	CleanProductInput(ctx context.Context, req CleanRequest) (ProductPatch, error)
	CleanVariantInput(ctx context.Context, req CleanRequest) (ProductPatch, error)
}

// ProductHook transforms a record before it is first persisted. Hooks run in order,
// each receiving the previous hook's output.
type ProductHook func(ctx context.Context, product Product) (Product, error)

// Product lifecycle event names.
const (
	EventProductCreated     = "afterProductCreate"
	EventProductUpdated     = "afterProductUpdate"
	EventProductArchived    = "afterProductSoftDelete"
	EventVariantCreated     = "afterVariantCreate"
	EventVariantUpdated     = "afterVariantUpdate"
	EventVariantArchived    = "afterVariantSoftDelete"
	EventProductsBulkUpdate = "afterBulkProductUpdate"
)

// ProductEvent is emitted after a successful mutation.
type ProductEvent struct {
	Name       string
	ShopID     string
	ProductID  string
	VariantID  string
	ProductIDs []string
	Fields     []string
	Product    *ProductView
	OccurredAt time.Time
}

// ProductEventPublisher delivers lifecycle events to subscribers. Implementations
// should enqueue and return rather than wait for delivery.
type ProductEventPublisher interface {
	PublishProductEvent(ctx context.Context, event ProductEvent) error
}
