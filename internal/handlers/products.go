package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/catalog/internal/platform/auth"
	"github.com/hanko-field/catalog/internal/platform/httpx"
	"github.com/hanko-field/catalog/internal/platform/requestctx"
	"github.com/hanko-field/catalog/internal/services"
)

// ProductHandlers exposes the catalog over HTTP.
type ProductHandlers struct {
	authn    *auth.Authenticator
	products services.ProductService
	limiter  rateLimiter
	replay   func(http.Handler) http.Handler
}

// ProductHandlersOption customises ProductHandlers.
type ProductHandlersOption func(*ProductHandlers)

// WithMutationRateLimit throttles mutation endpoints per caller.
func WithMutationRateLimit(perMinute, burst int) ProductHandlersOption {
	return func(h *ProductHandlers) {
		h.limiter = newRateLimiter(perMinute, burst, nil)
	}
}

// WithIdempotency guards mutation endpoints with an idempotency middleware.
func WithIdempotency(mw func(http.Handler) http.Handler) ProductHandlersOption {
	return func(h *ProductHandlers) {
		h.replay = mw
	}
}

// NewProductHandlers constructs catalog handlers. A nil authenticator skips
// token verification, which tests rely on.
func NewProductHandlers(authn *auth.Authenticator, products services.ProductService, opts ...ProductHandlersOption) *ProductHandlers {
	h := &ProductHandlers{authn: authn, products: products}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers catalog endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(rt chi.Router) {
		if h.authn != nil {
			rt.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff))
		}
		rt.Get("/products", h.listProducts)

		rt.Route("/shops/{shopID}", func(shop chi.Router) {
			shop.Get("/products/{productID}", h.getProduct)
			shop.Get("/products/{productID}/variants", h.listVariants)

			shop.Group(func(mut chi.Router) {
				mut.Use(rateLimitMiddleware(h.limiter))
				if h.replay != nil {
					mut.Use(h.replay)
				}
				mut.Post("/products", h.createProduct)
				mut.Patch("/products/{productID}", h.updateProduct)
				mut.Post("/products/{productID}/variants", h.createVariant)
				mut.Patch("/variants/{variantID}", h.updateVariant)
				mut.Post("/products:clone", h.cloneProducts)
				mut.Post("/products:archive", h.archiveProducts)
				mut.Post("/variants:clone", h.cloneVariants)
				mut.Post("/variants:archive", h.archiveVariants)
				mut.Post("/products:addTags", h.addTags)
				mut.Post("/products:removeTags", h.removeTags)
				mut.Post("/products:visibility", h.updateVisibility)
			})
		})
	})
}

func (h *ProductHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.products == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	var req createProductRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.products.CreateProduct(ctx, services.CreateProductCommand{
		ShopID:                   chi.URLParam(r, "shopID"),
		Product:                  req.Product.toInput(),
		ShouldCreateFirstVariant: req.ShouldCreateFirstVariant,
		ActivateAllShops:         req.ActivateAllShops,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("product created", zap.String("productId", view.ID))
	httpx.WriteJSON(w, http.StatusCreated, newProductResponse(view))
}

func (h *ProductHandlers) createVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	var payload productPayload
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.products.CreateVariant(ctx, services.CreateVariantCommand{
		ProductID: chi.URLParam(r, "productID"),
		ShopID:    chi.URLParam(r, "shopID"),
		Variant:   payload.toInput(),
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newProductResponse(view))
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	var payload productPayload
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.products.UpdateProduct(ctx, services.UpdateProductCommand{
		ProductID: chi.URLParam(r, "productID"),
		ShopID:    chi.URLParam(r, "shopID"),
		Product:   payload.toInput(),
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProductResponse(view))
}

func (h *ProductHandlers) updateVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	var payload productPayload
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	view, err := h.products.UpdateVariant(ctx, services.UpdateVariantCommand{
		VariantID: chi.URLParam(r, "variantID"),
		ShopID:    chi.URLParam(r, "shopID"),
		Variant:   payload.toInput(),
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProductResponse(view))
}

func (h *ProductHandlers) cloneProducts(w http.ResponseWriter, r *http.Request) {
	h.bulkViews(w, r, http.StatusCreated, services.ProductService.CloneProducts)
}

func (h *ProductHandlers) cloneVariants(w http.ResponseWriter, r *http.Request) {
	h.bulkViews(w, r, http.StatusCreated, services.ProductService.CloneVariants)
}

func (h *ProductHandlers) archiveProducts(w http.ResponseWriter, r *http.Request) {
	h.bulkViews(w, r, http.StatusOK, services.ProductService.ArchiveProducts)
}

func (h *ProductHandlers) archiveVariants(w http.ResponseWriter, r *http.Request) {
	h.bulkViews(w, r, http.StatusOK, services.ProductService.ArchiveVariants)
}

type (
	bulkViewsFunc func(services.ProductService, context.Context, services.BulkProductCommand) ([]services.ProductView, error)
	bulkTagsFunc  func(services.ProductService, context.Context, services.ProductTagsCommand) (services.BulkUpdateResult, error)
)

func (h *ProductHandlers) bulkViews(w http.ResponseWriter, r *http.Request, status int, run bulkViewsFunc) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	var req bulkIDsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	views, err := run(h.products, ctx, services.BulkProductCommand{ShopID: chi.URLParam(r, "shopID"), IDs: req.IDs})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, status, newProductListResponse(views))
}

func (h *ProductHandlers) addTags(w http.ResponseWriter, r *http.Request) {
	h.tags(w, r, services.ProductService.AddTagsToProducts)
}

func (h *ProductHandlers) removeTags(w http.ResponseWriter, r *http.Request) {
	h.tags(w, r, services.ProductService.RemoveTagsFromProducts)
}

func (h *ProductHandlers) tags(w http.ResponseWriter, r *http.Request, run bulkTagsFunc) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	var req productTagsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	result, err := run(h.products, ctx, services.ProductTagsCommand{
		ShopID:     chi.URLParam(r, "shopID"),
		ProductIDs: req.ProductIDs,
		TagIDs:     req.TagIDs,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bulkUpdateResponse{FoundCount: result.FoundCount, UpdatedCount: result.UpdatedCount})
}

func (h *ProductHandlers) updateVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	var req productVisibilityRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if req.IsVisible == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "isVisible is required", http.StatusBadRequest))
		return
	}
	result, err := h.products.UpdateProductsVisibility(ctx, services.ProductVisibilityCommand{
		ShopID:     chi.URLParam(r, "shopID"),
		ProductIDs: req.ProductIDs,
		IsVisible:  *req.IsVisible,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bulkUpdateResponse{FoundCount: result.FoundCount, UpdatedCount: result.UpdatedCount})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	view, err := h.products.GetProduct(ctx, services.GetProductQuery{
		ProductID: chi.URLParam(r, "productID"),
		ShopID:    chi.URLParam(r, "shopID"),
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProductResponse(view))
}

func (h *ProductHandlers) listVariants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	values := r.URL.Query()
	query := services.VariantQuery{
		NodeID: chi.URLParam(r, "productID"),
		ShopID: chi.URLParam(r, "shopID"),
	}
	var err error
	if query.TopOnly, err = parseBool(values, "topOnly"); err == nil {
		if query.ShouldIncludeHidden, err = parseOptionalBool(values, "includeHidden"); err == nil {
			query.ShouldIncludeArchived, err = parseOptionalBool(values, "includeArchived")
		}
	}
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	views, err := h.products.ListVariants(ctx, query)
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProductListResponse(views))
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	views, err := h.products.ListProducts(ctx, filter)
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProductListResponse(views))
}

func parseProductFilter(values url.Values) (services.ProductFilter, error) {
	filter := services.ProductFilter{
		ShopIDs:        splitList(values, "shopIds"),
		ProductIDs:     splitList(values, "ids"),
		TagIDs:         splitList(values, "tagIds"),
		Query:          strings.TrimSpace(values.Get("q")),
		MetafieldKey:   strings.TrimSpace(values.Get("metafieldKey")),
		MetafieldValue: strings.TrimSpace(values.Get("metafieldValue")),
		PriceMin:       optionalString(values, "priceMin"),
		PriceMax:       optionalString(values, "priceMax"),
	}
	var err error
	if filter.IsArchived, err = parseOptionalBool(values, "archived"); err != nil {
		return services.ProductFilter{}, err
	}
	if filter.IsVisible, err = parseOptionalBool(values, "visible"); err != nil {
		return services.ProductFilter{}, err
	}
	return filter, nil
}

// splitList accepts both repeated keys and comma separated values.
func splitList(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func optionalString(values url.Values, key string) *string {
	if !values.Has(key) {
		return nil
	}
	value := strings.TrimSpace(values.Get(key))
	return &value
}

func parseBool(values url.Values, key string) (bool, error) {
	ptr, err := parseOptionalBool(values, key)
	if err != nil || ptr == nil {
		return false, err
	}
	return *ptr, nil
}

func parseOptionalBool(values url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", key)
	}
	return &parsed, nil
}
