package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/catalog/internal/platform/httpx"
)

const errorNotFoundCode = "route_not_found"

// RouteRegistrar mounts a route group on r.
type RouteRegistrar func(r chi.Router)

// Option customises NewRouter.
type Option func(*routerConfig)

type routerConfig struct {
	basePath    string
	timeout     time.Duration
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	catalog     RouteRegistrar
}

// WithMiddlewares runs mw after the request id and real ip middleware.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		for _, m := range mw {
			if m != nil {
				cfg.middlewares = append(cfg.middlewares, m)
			}
		}
	}
}

// WithHealthHandlers serves /healthz and /readyz from h.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithCatalogRoutes mounts the catalog under the base path.
func WithCatalogRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.catalog = reg }
}

// WithRequestTimeout bounds API handlers. Zero disables the bound.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(cfg *routerConfig) { cfg.timeout = timeout }
}

// WithBasePath replaces /api/v1.
func WithBasePath(path string) Option {
	return func(cfg *routerConfig) {
		if path != "" {
			cfg.basePath = path
		}
	}
}

// NewRouter builds the HTTP surface of the catalog service. Probes live at
// the root, catalog routes under the base path.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{basePath: "/api/v1", timeout: 30 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	health := cfg.health
	if health == nil {
		health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(cfg.middlewares...)
	r.NotFound(writeStatus(errorNotFoundCode, "route not found", http.StatusNotFound))
	r.MethodNotAllowed(writeStatus("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		if cfg.timeout > 0 {
			api.Use(middleware.Timeout(cfg.timeout))
		}
		if cfg.catalog != nil {
			cfg.catalog(api)
			return
		}
		unavailable := writeStatus("not_implemented", "catalog routes are not mounted", http.StatusNotImplemented)
		api.HandleFunc("/*", unavailable)
		api.NotFound(unavailable)
	})
	return r
}

func writeStatus(code, message string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError(code, message, status).WithDetails(map[string]any{"path": r.URL.Path}))
	}
}
