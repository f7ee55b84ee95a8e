package handlers

import (
	"time"

	"github.com/hanko-field/catalog/internal/services"
)

type metafieldPayload struct {
	Key       string `json:"key"`
	Namespace string `json:"namespace"`
	Value     string `json:"value"`
}

type activeShopPayload struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// productPayload mirrors services.ProductInput. Absent fields stay nil so
// updates only touch what the caller sent.
type productPayload struct {
	ID                        *string             `json:"id,omitempty"`
	Handle                    *string             `json:"handle,omitempty"`
	Title                     *string             `json:"title,omitempty"`
	PageTitle                 *string             `json:"pageTitle,omitempty"`
	Description               *string             `json:"description,omitempty"`
	Vendor                    *string             `json:"vendor,omitempty"`
	SKU                       *string             `json:"sku,omitempty"`
	Price                     *string             `json:"price,omitempty"`
	Images                    *[]string           `json:"images,omitempty"`
	Ranking                   *int                `json:"ranking,omitempty"`
	Quantity                  *int                `json:"quantity,omitempty"`
	StyleID                   *string             `json:"styleId,omitempty"`
	OptionID                  *string             `json:"optionId,omitempty"`
	ShootStatus               *string             `json:"shootStatus,omitempty"`
	IsDeleted                 *bool               `json:"isDeleted,omitempty"`
	IsVisible                 *bool               `json:"isVisible,omitempty"`
	ShouldAppearInSitemap     *bool               `json:"shouldAppearInSitemap,omitempty"`
	SupportedFulfillmentTypes *[]string           `json:"supportedFulfillmentTypes,omitempty"`
	Metafields                *[]metafieldPayload `json:"metafields,omitempty"`
	TagIDs                    *[]string           `json:"tagIds,omitempty"`
	ActiveShops               []activeShopPayload `json:"activeShops,omitempty"`
}

func (p *productPayload) toInput() *services.ProductInput {
	if p == nil {
		return nil
	}
	input := &services.ProductInput{
		ID:                        p.ID,
		Handle:                    p.Handle,
		Title:                     p.Title,
		PageTitle:                 p.PageTitle,
		Description:               p.Description,
		Vendor:                    p.Vendor,
		SKU:                       p.SKU,
		Price:                     p.Price,
		Images:                    p.Images,
		Ranking:                   p.Ranking,
		Quantity:                  p.Quantity,
		StyleID:                   p.StyleID,
		OptionID:                  p.OptionID,
		ShootStatus:               p.ShootStatus,
		IsDeleted:                 p.IsDeleted,
		IsVisible:                 p.IsVisible,
		ShouldAppearInSitemap:     p.ShouldAppearInSitemap,
		SupportedFulfillmentTypes: p.SupportedFulfillmentTypes,
		TagIDs:                    p.TagIDs,
	}
	if p.Metafields != nil {
		metafields := make([]services.Metafield, 0, len(*p.Metafields))
		for _, m := range *p.Metafields {
			metafields = append(metafields, services.Metafield{Key: m.Key, Namespace: m.Namespace, Value: m.Value})
		}
		input.Metafields = &metafields
	}
	for _, shop := range p.ActiveShops {
		input.ActiveShops = append(input.ActiveShops, services.ActiveShop{Value: shop.Value, Label: shop.Label})
	}
	return input
}

type createProductRequest struct {
	Product                  *productPayload `json:"product"`
	ShouldCreateFirstVariant *bool           `json:"shouldCreateFirstVariant,omitempty"`
	ActivateAllShops         bool            `json:"activateAllShops,omitempty"`
}

type bulkIDsRequest struct {
	IDs []string `json:"ids"`
}

type productTagsRequest struct {
	ProductIDs []string `json:"productIds"`
	TagIDs     []string `json:"tagIds"`
}

type productVisibilityRequest struct {
	ProductIDs []string `json:"productIds"`
	IsVisible  *bool    `json:"isVisible"`
}

type workflowResponse struct {
	Status   string   `json:"status"`
	Workflow []string `json:"workflow"`
}

type productResponse struct {
	ID                        string              `json:"id"`
	Type                      string              `json:"type"`
	Ancestors                 []string            `json:"ancestors"`
	ShopID                    string              `json:"shopId"`
	ActiveShops               []activeShopPayload `json:"activeShops"`
	Handle                    string              `json:"handle,omitempty"`
	Title                     string              `json:"title"`
	PageTitle                 string              `json:"pageTitle,omitempty"`
	Description               string              `json:"description,omitempty"`
	Vendor                    string              `json:"vendor,omitempty"`
	SKU                       string              `json:"sku,omitempty"`
	Price                     string              `json:"price,omitempty"`
	Images                    []string            `json:"images"`
	Ranking                   int                 `json:"ranking"`
	Quantity                  int                 `json:"quantity"`
	StyleID                   string              `json:"styleId,omitempty"`
	OptionID                  string              `json:"optionId,omitempty"`
	ShootStatus               string              `json:"shootStatus,omitempty"`
	IsDeleted                 bool                `json:"isDeleted"`
	IsVisible                 bool                `json:"isVisible"`
	ShouldAppearInSitemap     bool                `json:"shouldAppearInSitemap"`
	SupportedFulfillmentTypes []string            `json:"supportedFulfillmentTypes"`
	Metafields                []metafieldPayload  `json:"metafields"`
	TagIDs                    []string            `json:"tagIds"`
	Workflow                  workflowResponse    `json:"workflow"`
	CreatedAt                 string              `json:"createdAt,omitempty"`
	UpdatedAt                 string              `json:"updatedAt,omitempty"`
}

type productListResponse struct {
	Items []productResponse `json:"items"`
}

type bulkUpdateResponse struct {
	FoundCount   int `json:"foundCount"`
	UpdatedCount int `json:"updatedCount"`
}

func newProductResponse(view services.ProductView) productResponse {
	resp := productResponse{
		ID:                        view.ID,
		Type:                      string(view.Type),
		Ancestors:                 nonNil(view.Ancestors),
		ShopID:                    view.ShopID,
		ActiveShops:               make([]activeShopPayload, 0, len(view.ActiveShops)),
		Handle:                    view.Handle,
		Title:                     view.Title,
		PageTitle:                 view.PageTitle,
		Description:               view.Description,
		Vendor:                    view.Vendor,
		SKU:                       view.SKU,
		Price:                     view.Price,
		Images:                    nonNil(view.Images),
		Ranking:                   view.Ranking,
		Quantity:                  view.Quantity,
		StyleID:                   view.StyleID,
		OptionID:                  view.OptionID,
		ShootStatus:               view.ShootStatus,
		IsDeleted:                 view.IsDeleted,
		IsVisible:                 view.IsVisible,
		ShouldAppearInSitemap:     view.ShouldAppearInSitemap,
		SupportedFulfillmentTypes: nonNil(view.SupportedFulfillmentTypes),
		Metafields:                make([]metafieldPayload, 0, len(view.Metafields)),
		TagIDs:                    nonNil(view.TagIDs),
		Workflow: workflowResponse{
			Status:   view.Workflow.Status,
			Workflow: nonNil(view.Workflow.Workflow),
		},
		CreatedAt: formatTime(view.CreatedAt),
		UpdatedAt: formatTime(view.UpdatedAt),
	}
	for _, shop := range view.ActiveShops {
		resp.ActiveShops = append(resp.ActiveShops, activeShopPayload{Value: shop.Value, Label: shop.Label})
	}
	for _, m := range view.Metafields {
		resp.Metafields = append(resp.Metafields, metafieldPayload{Key: m.Key, Namespace: m.Namespace, Value: m.Value})
	}
	return resp
}

func newProductListResponse(views []services.ProductView) productListResponse {
	items := make([]productResponse, 0, len(views))
	for _, view := range views {
		items = append(items, newProductResponse(view))
	}
	return productListResponse{Items: items}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
