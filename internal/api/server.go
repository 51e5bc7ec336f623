// Package api wires the HTTP router: middleware, health checks, the v1
// query and command endpoints, Prometheus metrics and Swagger UI.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/orderpulse/internal/api/handler"
	"github.com/albapepper/orderpulse/internal/cache"
	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/store"
)

// Deps are the collaborators the router serves. Gatherer defaults to the
// Prometheus default registry.
type Deps struct {
	Runner   *cycle.Runner
	Store    store.Gateway
	Cache    *cache.Cache
	Config   *config.Config
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(d Deps) *chi.Mux {
	cfg := d.Config
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware(d.Logger))
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(d.Runner, d.Store, d.Cache, cfg, d.Logger)

	// --- Routes ---

	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	// Swagger UI over the spec registered by the docs package.
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Queries
		r.Get("/snapshot", h.GetSnapshot)
		r.Get("/daily", h.GetDaily)
		r.Get("/top", h.GetTop)
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/orders/recent", h.GetRecentOrders)
		r.Get("/products", h.GetProducts)

		// Commands
		r.Post("/cycle", h.TriggerCycle)
		r.Get("/subscribers", h.GetSubscribers)
		r.Post("/subscribers", h.UpsertSubscriber)
		r.Put("/subscribers/{id}/subscriptions/{kind}", h.SetSubscription)
	})

	return r
}
