package domain

import (
	"slices"
	"time"
)

// ProductPatch is a partial update. Only non-nil fields are written.
type ProductPatch struct {
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
	Shops                     *ShopScope
	UpdatedAt                 *time.Time
}

// IsEmpty reports whether the patch carries no field at all.
func (p ProductPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the persisted names of the fields the patch writes, in a stable order.
func (p ProductPatch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Handle != nil, "handle")
	add(p.Title != nil, "title")
	add(p.PageTitle != nil, "pageTitle")
	add(p.Description != nil, "description")
	add(p.Vendor != nil, "vendor")
	add(p.SKU != nil, "sku")
	add(p.Price != nil, "mPrice")
	add(p.Images != nil, "mulinImages")
	add(p.Ranking != nil, "ranking")
	add(p.Quantity != nil, "quantity")
	add(p.StyleID != nil, "styleId")
	add(p.OptionID != nil, "optionId")
	add(p.ShootStatus != nil, "shootStatus")
	add(p.IsDeleted != nil, "isDeleted")
	add(p.IsVisible != nil, "isVisible")
	add(p.ShouldAppearInSitemap != nil, "shouldAppearInSitemap")
	add(p.SupportedFulfillmentTypes != nil, "supportedFulfillmentTypes")
	add(p.Metafields != nil, "metafields")
	add(p.TagIDs != nil, "hashtags")
	add(p.Shops != nil, "shopId")
	add(p.UpdatedAt != nil, "updatedAt")
	return fields
}

// Apply returns a copy of product with the patch written over it.
func (p ProductPatch) Apply(product Product) Product {
	out := product.Clone()
	setString(&out.Handle, p.Handle)
	setString(&out.Title, p.Title)
	setString(&out.PageTitle, p.PageTitle)
	setString(&out.Description, p.Description)
	setString(&out.Vendor, p.Vendor)
	setString(&out.SKU, p.SKU)
	setString(&out.Price, p.Price)
	setString(&out.StyleID, p.StyleID)
	setString(&out.OptionID, p.OptionID)
	setString(&out.ShootStatus, p.ShootStatus)
	if p.Images != nil {
		out.Images = slices.Clone(*p.Images)
	}
	if p.Ranking != nil {
		out.Ranking = *p.Ranking
	}
	if p.Quantity != nil {
		out.Quantity = *p.Quantity
	}
	if p.IsDeleted != nil {
		out.IsDeleted = *p.IsDeleted
	}
	if p.IsVisible != nil {
		out.IsVisible = *p.IsVisible
	}
	if p.ShouldAppearInSitemap != nil {
		out.ShouldAppearInSitemap = *p.ShouldAppearInSitemap
	}
	if p.SupportedFulfillmentTypes != nil {
		out.SupportedFulfillmentTypes = slices.Clone(*p.SupportedFulfillmentTypes)
	}
	if p.Metafields != nil {
		out.Metafields = slices.Clone(*p.Metafields)
	}
	if p.TagIDs != nil {
		out.TagIDs = slices.Clone(*p.TagIDs)
	}
	if p.Shops != nil {
		out.Shops = p.Shops.Clone()
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = p.UpdatedAt.UTC()
	}
	return out
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}
