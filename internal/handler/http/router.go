// Package http exposes the catalog service over HTTP.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SofiaQuintana/products-inventory/pkg/health"
	"github.com/SofiaQuintana/products-inventory/pkg/httputil"
	"github.com/SofiaQuintana/products-inventory/pkg/middleware"
)

// queryTimeout bounds search and suggest requests.
const queryTimeout = 30 * time.Second

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName string
	Version     string

	// AdminJWTSecret guards the load route when set.
	AdminJWTSecret string
	// LoadTimeout bounds the load route. 0 leaves it unbounded.
	LoadTimeout time.Duration

	// RateLimitRPS limits query routes per client. 0 disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	SearchCacheTTL  time.Duration
	SuggestCacheTTL time.Duration

	EnablePprof       bool
	PprofAllowedCIDRs []string
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Name      string            `json:"name"`
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// NewRouter creates a chi router with all catalog routes registered.
// ctx bounds background work of the middleware, such as rate limiter cleanup.
func NewRouter(
	ctx context.Context,
	h *CatalogHandler,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error": "Endpoint not found",
			"path":  r.URL.Path,
		})
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, ServiceInfo{
			Name:    cfg.ServiceName,
			Status:  "running",
			Version: cfg.Version,
			Endpoints: map[string]string{
				"load":    "POST /index/load",
				"search":  "GET /search?q=<query>&page=<page>&limit=<limit>",
				"suggest": "GET /suggest?q=<query>",
				"health":  "GET /health/ready",
				"metrics": "GET /metrics",
			},
		})
	})

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.EnablePprof {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	// Query endpoints
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(queryTimeout))
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		}
		r.With(middleware.CacheControl(cfg.SearchCacheTTL)).Get("/search", h.Search)
		r.With(middleware.CacheControl(cfg.SuggestCacheTTL)).Get("/suggest", h.Suggest)
	})

	// Ingestion
	r.Group(func(r chi.Router) {
		if cfg.AdminJWTSecret != "" {
			r.Use(middleware.AdminAuth(cfg.AdminJWTSecret, logger))
		}
		if cfg.LoadTimeout > 0 {
			r.Use(chimw.Timeout(cfg.LoadTimeout))
		}
		r.Post("/index/load", h.Load)
	})

	return r
}
