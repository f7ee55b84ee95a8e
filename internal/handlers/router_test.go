package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestNewRouter_DefaultMounts(t *testing.T) {
	router := NewRouter()

	t.Run("healthz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("catalog not implemented", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected 501, got %d", rr.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["error"] != errorNotFoundCode {
			t.Fatalf("unexpected error code %v", body["error"])
		}
		if body["request_id"] == nil {
			t.Fatalf("expected request id to be stamped")
		}
	})
}

func TestNewRouter_MountsCatalogRoutes(t *testing.T) {
	svc := &stubProductService{view: sampleView()}
	handlers := NewProductHandlers(nil, svc)
	router := NewRouter(WithCatalogRoutes(handlers.Routes))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/shops/shop1/products/prod-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.getQuery.ShopID != "shop1" {
		t.Fatalf("unexpected query %#v", svc.getQuery)
	}
}

func TestNewRouter_AppliesMiddlewares(t *testing.T) {
	var seen bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = true
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(
		WithMiddlewares(mw),
		WithBasePath("/v2"),
		WithCatalogRoutes(func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		}),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v2/ping", nil))
	if rr.Code != http.StatusNoContent || !seen {
		t.Fatalf("expected middleware to run, code %d seen %v", rr.Code, seen)
	}
}

func TestNewRouter_RequestTimeoutAppliesToCatalogOnly(t *testing.T) {
	var hasDeadline bool
	router := NewRouter(
		WithRequestTimeout(time.Second),
		WithCatalogRoutes(func(r chi.Router) {
			r.Get("/deadline", func(w http.ResponseWriter, req *http.Request) {
				_, hasDeadline = req.Context().Deadline()
				w.WriteHeader(http.StatusNoContent)
			})
		}),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/deadline", nil))
	if rr.Code != http.StatusNoContent || !hasDeadline {
		t.Fatalf("expected bounded context, code %d deadline %v", rr.Code, hasDeadline)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
