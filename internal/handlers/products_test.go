package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/catalog/internal/domain"
	"github.com/hanko-field/catalog/internal/platform/idempotency"
	"github.com/hanko-field/catalog/internal/repositories"
	"github.com/hanko-field/catalog/internal/services"
)

type stubProductService struct {
	err error

	creates       int
	createCmd     services.CreateProductCommand
	createVarCmd  services.CreateVariantCommand
	updateCmd     services.UpdateProductCommand
	updateVarCmd  services.UpdateVariantCommand
	bulkCmd       services.BulkProductCommand
	bulkOp        string
	tagsCmd       services.ProductTagsCommand
	visibilityCmd services.ProductVisibilityCommand
	getQuery      services.GetProductQuery
	filter        services.ProductFilter
	variantQuery  services.VariantQuery

	view   services.ProductView
	views  []services.ProductView
	result services.BulkUpdateResult
}

func (s *stubProductService) CreateProduct(_ context.Context, cmd services.CreateProductCommand) (services.ProductView, error) {
	s.creates++
	s.createCmd = cmd
	return s.view, s.err
}

func (s *stubProductService) CreateVariant(_ context.Context, cmd services.CreateVariantCommand) (services.ProductView, error) {
	s.createVarCmd = cmd
	return s.view, s.err
}

func (s *stubProductService) UpdateProduct(_ context.Context, cmd services.UpdateProductCommand) (services.ProductView, error) {
	s.updateCmd = cmd
	return s.view, s.err
}

func (s *stubProductService) UpdateVariant(_ context.Context, cmd services.UpdateVariantCommand) (services.ProductView, error) {
	s.updateVarCmd = cmd
	return s.view, s.err
}

func (s *stubProductService) bulk(op string, cmd services.BulkProductCommand) ([]services.ProductView, error) {
	s.bulkOp = op
	s.bulkCmd = cmd
	return s.views, s.err
}

func (s *stubProductService) CloneProducts(_ context.Context, cmd services.BulkProductCommand) ([]services.ProductView, error) {
	return s.bulk("cloneProducts", cmd)
}

func (s *stubProductService) CloneVariants(_ context.Context, cmd services.BulkProductCommand) ([]services.ProductView, error) {
	return s.bulk("cloneVariants", cmd)
}

func (s *stubProductService) ArchiveProducts(_ context.Context, cmd services.BulkProductCommand) ([]services.ProductView, error) {
	return s.bulk("archiveProducts", cmd)
}

func (s *stubProductService) ArchiveVariants(_ context.Context, cmd services.BulkProductCommand) ([]services.ProductView, error) {
	return s.bulk("archiveVariants", cmd)
}

func (s *stubProductService) AddTagsToProducts(_ context.Context, cmd services.ProductTagsCommand) (services.BulkUpdateResult, error) {
	s.bulkOp = "addTags"
	s.tagsCmd = cmd
	return s.result, s.err
}

func (s *stubProductService) RemoveTagsFromProducts(_ context.Context, cmd services.ProductTagsCommand) (services.BulkUpdateResult, error) {
	s.bulkOp = "removeTags"
	s.tagsCmd = cmd
	return s.result, s.err
}

func (s *stubProductService) UpdateProductsVisibility(_ context.Context, cmd services.ProductVisibilityCommand) (services.BulkUpdateResult, error) {
	s.visibilityCmd = cmd
	return s.result, s.err
}

func (s *stubProductService) GetProduct(_ context.Context, query services.GetProductQuery) (services.ProductView, error) {
	s.getQuery = query
	return s.view, s.err
}

func (s *stubProductService) ListProducts(_ context.Context, filter services.ProductFilter) ([]services.ProductView, error) {
	s.filter = filter
	return s.views, s.err
}

func (s *stubProductService) ListVariants(_ context.Context, query services.VariantQuery) ([]services.ProductView, error) {
	s.variantQuery = query
	return s.views, s.err
}

var _ services.ProductService = (*stubProductService)(nil)

func newProductRouter(svc services.ProductService, opts ...ProductHandlersOption) chi.Router {
	router := chi.NewRouter()
	NewProductHandlers(nil, svc, opts...).Routes(router)
	return router
}

func serve(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func sampleView() services.ProductView {
	created := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	return services.ProductView{
		Product: domain.Product{
			ID:        "prod-1",
			Type:      domain.ProductTypeSimple,
			Shops:     domain.MultiShop("shop1", "shop2"),
			Handle:    "mug",
			Title:     "Mug",
			Price:     "12.50",
			IsVisible: true,
			Workflow:  domain.Workflow{Status: "new"},
			CreatedAt: created,
			UpdatedAt: created,
		},
		ShopID:      "shop2",
		ActiveShops: []domain.ActiveShop{{Value: "shop1", Label: "Main Street"}, {Value: "shop2", Label: "Harbour"}},
	}
}

func TestProductHandlers_CreateProduct(t *testing.T) {
	svc := &stubProductService{view: sampleView()}
	router := newProductRouter(svc)

	rr := serve(router, http.MethodPost, "/shops/shop2/products", map[string]any{
		"product": map[string]any{
			"title":       "Mug",
			"price":       "12.50",
			"activeShops": []map[string]string{{"value": "shop1", "label": "ignored"}},
		},
		"shouldCreateFirstVariant": false,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.createCmd.ShopID != "shop2" {
		t.Fatalf("expected shop from path, got %q", svc.createCmd.ShopID)
	}
	if svc.createCmd.Product == nil || svc.createCmd.Product.Title == nil || *svc.createCmd.Product.Title != "Mug" {
		t.Fatalf("expected title to be forwarded, got %#v", svc.createCmd.Product)
	}
	if len(svc.createCmd.Product.ActiveShops) != 1 || svc.createCmd.Product.ActiveShops[0].Value != "shop1" {
		t.Fatalf("expected active shops to be forwarded, got %#v", svc.createCmd.Product.ActiveShops)
	}
	if svc.createCmd.ShouldCreateFirstVariant == nil || *svc.createCmd.ShouldCreateFirstVariant {
		t.Fatalf("expected shouldCreateFirstVariant=false")
	}

	var resp productResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ShopID != "shop2" || len(resp.ActiveShops) != 2 || resp.ActiveShops[1].Label != "Harbour" {
		t.Fatalf("unexpected response %#v", resp)
	}
	if resp.CreatedAt != "2025-02-01T08:00:00Z" {
		t.Fatalf("unexpected createdAt %q", resp.CreatedAt)
	}
}

func TestProductHandlers_RejectsUnknownFields(t *testing.T) {
	svc := &stubProductService{}
	router := newProductRouter(svc)

	rr := serve(router, http.MethodPatch, "/shops/shop1/products/prod-1", map[string]any{"colour": "red"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if svc.updateCmd.ProductID != "" {
		t.Fatalf("service should not be called")
	}
}

func TestProductHandlers_UpdateRoutesUsePathIDs(t *testing.T) {
	svc := &stubProductService{view: sampleView()}
	router := newProductRouter(svc)

	rr := serve(router, http.MethodPatch, "/shops/shop1/products/prod-1", map[string]any{"isVisible": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.updateCmd.ProductID != "prod-1" || svc.updateCmd.ShopID != "shop1" {
		t.Fatalf("unexpected update command %#v", svc.updateCmd)
	}
	if svc.updateCmd.Product.IsVisible == nil || *svc.updateCmd.Product.IsVisible {
		t.Fatalf("expected isVisible=false to be forwarded")
	}
	if svc.updateCmd.Product.Title != nil {
		t.Fatalf("absent fields must stay nil")
	}

	rr = serve(router, http.MethodPatch, "/shops/shop1/variants/var-9", map[string]any{"sku": "MUG-R"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.updateVarCmd.VariantID != "var-9" || *svc.updateVarCmd.Variant.SKU != "MUG-R" {
		t.Fatalf("unexpected variant command %#v", svc.updateVarCmd)
	}

	rr = serve(router, http.MethodPost, "/shops/shop1/products/prod-1/variants", map[string]any{"title": "Red"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if svc.createVarCmd.ProductID != "prod-1" || svc.createVarCmd.ShopID != "shop1" {
		t.Fatalf("unexpected create variant command %#v", svc.createVarCmd)
	}
}

func TestProductHandlers_BulkRoutes(t *testing.T) {
	cases := []struct {
		path   string
		op     string
		status int
	}{
		{"/shops/shop1/products:clone", "cloneProducts", http.StatusCreated},
		{"/shops/shop1/variants:clone", "cloneVariants", http.StatusCreated},
		{"/shops/shop1/products:archive", "archiveProducts", http.StatusOK},
		{"/shops/shop1/variants:archive", "archiveVariants", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			svc := &stubProductService{views: []services.ProductView{sampleView()}}
			router := newProductRouter(svc)

			rr := serve(router, http.MethodPost, tc.path, map[string]any{"ids": []string{"a", "b"}})
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if svc.bulkOp != tc.op {
				t.Fatalf("expected %s, got %s", tc.op, svc.bulkOp)
			}
			if svc.bulkCmd.ShopID != "shop1" || len(svc.bulkCmd.IDs) != 2 {
				t.Fatalf("unexpected command %#v", svc.bulkCmd)
			}
			var resp productListResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if len(resp.Items) != 1 || resp.Items[0].ID != "prod-1" {
				t.Fatalf("unexpected items %#v", resp.Items)
			}
		})
	}
}

func TestProductHandlers_TagsAndVisibility(t *testing.T) {
	svc := &stubProductService{result: services.BulkUpdateResult{FoundCount: 2, UpdatedCount: 1}}
	router := newProductRouter(svc)

	rr := serve(router, http.MethodPost, "/shops/shop1/products:addTags", map[string]any{
		"productIds": []string{"a", "b"},
		"tagIds":     []string{"sale"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.bulkOp != "addTags" || svc.tagsCmd.TagIDs[0] != "sale" {
		t.Fatalf("unexpected tags command %#v", svc.tagsCmd)
	}
	var result bulkUpdateResponse
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.FoundCount != 2 || result.UpdatedCount != 1 {
		t.Fatalf("unexpected result %#v", result)
	}

	rr = serve(router, http.MethodPost, "/shops/shop1/products:removeTags", map[string]any{
		"productIds": []string{"a"},
		"tagIds":     []string{"sale"},
	})
	if rr.Code != http.StatusOK || svc.bulkOp != "removeTags" {
		t.Fatalf("expected removeTags, got %d %s", rr.Code, svc.bulkOp)
	}

	rr = serve(router, http.MethodPost, "/shops/shop1/products:visibility", map[string]any{"productIds": []string{"a"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without isVisible, got %d", rr.Code)
	}

	rr = serve(router, http.MethodPost, "/shops/shop1/products:visibility", map[string]any{
		"productIds": []string{"a"},
		"isVisible":  false,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.visibilityCmd.IsVisible || svc.visibilityCmd.ProductIDs[0] != "a" {
		t.Fatalf("unexpected visibility command %#v", svc.visibilityCmd)
	}
}

func TestProductHandlers_ListProductsParsesFilter(t *testing.T) {
	svc := &stubProductService{views: []services.ProductView{sampleView()}}
	router := newProductRouter(svc)

	rr := serve(router, http.MethodGet, "/products?shopIds=shop1,shop2&shopIds=shop3&tagIds=sale&q=mug&archived=false&priceMin=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	f := svc.filter
	if len(f.ShopIDs) != 3 || f.ShopIDs[2] != "shop3" {
		t.Fatalf("unexpected shop ids %v", f.ShopIDs)
	}
	if f.Query != "mug" || len(f.TagIDs) != 1 {
		t.Fatalf("unexpected filter %#v", f)
	}
	if f.IsArchived == nil || *f.IsArchived {
		t.Fatalf("expected archived=false")
	}
	if f.IsVisible != nil {
		t.Fatalf("visible should be unset")
	}
	if f.PriceMin == nil || *f.PriceMin != "10" || f.PriceMax != nil {
		t.Fatalf("unexpected price bounds %v %v", f.PriceMin, f.PriceMax)
	}

	rr = serve(router, http.MethodGet, "/products?shopIds=shop1&visible=maybe", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad boolean, got %d", rr.Code)
	}
}

func TestProductHandlers_GetAndListVariants(t *testing.T) {
	svc := &stubProductService{view: sampleView()}
	router := newProductRouter(svc)

	rr := serve(router, http.MethodGet, "/shops/shop2/products/prod-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.getQuery.ProductID != "prod-1" || svc.getQuery.ShopID != "shop2" {
		t.Fatalf("unexpected query %#v", svc.getQuery)
	}

	rr = serve(router, http.MethodGet, "/shops/shop2/products/prod-1/variants?topOnly=true&includeHidden=false", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	q := svc.variantQuery
	if q.NodeID != "prod-1" || !q.TopOnly {
		t.Fatalf("unexpected variant query %#v", q)
	}
	if q.ShouldIncludeHidden == nil || *q.ShouldIncludeHidden || q.ShouldIncludeArchived != nil {
		t.Fatalf("unexpected include flags %#v", q)
	}
}

func TestProductHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", fmt.Errorf("%w: title is required", services.ErrProductInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"denied", services.ErrProductPermissionDenied, http.StatusForbidden, "permission_denied"},
		{"not found", fmt.Errorf("%w: prod-1", services.ErrProductNotFound), http.StatusNotFound, "product_not_found"},
		{"conflict", repositories.NewStoreError("insert", repositories.StoreErrorConflict, "id taken"), http.StatusConflict, "product_conflict"},
		{"unavailable", repositories.NewStoreError("find", repositories.StoreErrorUnavailable, ""), http.StatusServiceUnavailable, "catalog_unavailable"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "catalog_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newProductRouter(&stubProductService{err: tc.err})
			rr := serve(router, http.MethodGet, "/shops/shop1/products/prod-1", nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body["error"])
			}
		})
	}
}

func TestProductHandlers_NilServiceUnavailable(t *testing.T) {
	router := newProductRouter(nil)
	rr := serve(router, http.MethodPost, "/shops/shop1/products:archive", map[string]any{"ids": []string{"a"}})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestProductHandlers_MutationRateLimit(t *testing.T) {
	svc := &stubProductService{view: sampleView()}
	router := newProductRouter(svc, WithMutationRateLimit(1, 1))

	first := serve(router, http.MethodPatch, "/shops/shop1/products/prod-1", map[string]any{"title": "A"})
	if first.Code != http.StatusOK {
		t.Fatalf("expected first mutation to pass, got %d", first.Code)
	}
	second := serve(router, http.MethodPatch, "/shops/shop1/products/prod-1", map[string]any{"title": "B"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	read := serve(router, http.MethodGet, "/shops/shop1/products/prod-1", nil)
	if read.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", read.Code)
	}
}

func TestProductHandlers_IdempotentCreateReplays(t *testing.T) {
	svc := &stubProductService{view: sampleView()}
	router := newProductRouter(svc, WithIdempotency(idempotency.Middleware(idempotency.NewMemoryStore())))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/shops/shop1/products", bytes.NewBufferString(`{"product":{"title":"Mug"}}`))
		req.Header.Set("Idempotency-Key", "create-mug")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	first := send()
	second := send()
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if svc.creates != 1 {
		t.Fatalf("expected one create call, got %d", svc.creates)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replayed response")
	}
}
