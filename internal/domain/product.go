package domain

import (
	"slices"
	"time"
)

// ProductType distinguishes top-level products from variants in the flat catalog collection.
type ProductType string

const (
	// ProductTypeSimple marks a top-level product record.
	ProductTypeSimple ProductType = "simple"
	// ProductTypeVariant marks a variant record (any depth below a product).
	ProductTypeVariant ProductType = "variant"
)

// WorkflowStatusNew is assigned to freshly created and cloned records.
const WorkflowStatusNew = "new"

// FulfillmentTypeShipping is the default fulfillment type for new products.
const FulfillmentTypeShipping = "shipping"

// Product is a catalog record. Variants share the same shape and are linked to
// their product through Ancestors.
type Product struct {
	ID                        string
	Ancestors                 []string
	Type                      ProductType
	Shops                     ShopScope
	Handle                    string
	Title                     string
	PageTitle                 string
	Description               string
	Vendor                    string
	SKU                       string
	Price                     string
	Images                    []string
	Ranking                   int
	Quantity                  int
	StyleID                   string
	OptionID                  string
	ShootStatus               string
	IsDeleted                 bool
	IsVisible                 bool
	ShouldAppearInSitemap     bool
	SupportedFulfillmentTypes []string
	Metafields                []Metafield
	TagIDs                    []string
	Workflow                  Workflow
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Metafield is a free-form key/value attached to a product.
type Metafield struct {
	Key       string
	Namespace string
	Value     string
}

// Workflow tracks the editorial state of a record.
type Workflow struct {
	Status   string
	Workflow []string
}

// IsVariant reports whether the record sits below a product.
func (p Product) IsVariant() bool {
	return len(p.Ancestors) > 0
}

// TopProductID returns the id of the product owning the record. For products it is the record id.
func (p Product) TopProductID() string {
	if len(p.Ancestors) == 0 {
		return p.ID
	}
	return p.Ancestors[0]
}

// HasAncestor reports whether id appears anywhere in the ancestors chain.
func (p Product) HasAncestor(id string) bool {
	return slices.Contains(p.Ancestors, id)
}

// Clone returns a deep copy so callers can mutate slices without aliasing stored state.
func (p Product) Clone() Product {
	out := p
	out.Ancestors = slices.Clone(p.Ancestors)
	out.Shops = p.Shops.Clone()
	out.Images = slices.Clone(p.Images)
	out.SupportedFulfillmentTypes = slices.Clone(p.SupportedFulfillmentTypes)
	out.Metafields = slices.Clone(p.Metafields)
	out.TagIDs = slices.Clone(p.TagIDs)
	out.Workflow.Workflow = slices.Clone(p.Workflow.Workflow)
	return out
}

// ActiveShop pairs a shop id with its display name as exchanged with callers.
type ActiveShop struct {
	Value string
	Label string
}

// ProductView is the outward representation of a record for a viewing shop.
// ShopID carries the viewing shop rather than the stored scope.
type ProductView struct {
	Product
	ShopID      string
	ActiveShops []ActiveShop
}

// Shop is the subset of shop metadata the catalog needs.
type Shop struct {
	ID   string
	Name string
}

// ProductInput carries caller supplied attributes for create and update mutations.
// Nil fields are treated as absent.
type ProductInput struct {
	ID                        *string
	Handle                    *string
	Title                     *string
	PageTitle                 *string
	Description               *string
	Vendor                    *string
	SKU                       *string
	Price                     *string
	Images                    *[]string
	Ranking                   *int
	Quantity                  *int
	StyleID                   *string
	OptionID                  *string
	ShootStatus               *string
	IsDeleted                 *bool
	IsVisible                 *bool
	ShouldAppearInSitemap     *bool
	SupportedFulfillmentTypes *[]string
	Metafields                *[]Metafield
	TagIDs                    *[]string
	ActiveShops               []ActiveShop
}
