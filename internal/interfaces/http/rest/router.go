// Package rest exposes the engine over HTTP.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/infrastructure/observability"
)

// Router assembles the HTTP surface.
type Router struct {
	edges     *EdgeHandler
	collector *observability.Collector
	service   string
	tracing   bool
	logger    *zap.Logger
	started   time.Time
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithCollector exposes /metrics and records request metrics.
func WithCollector(c *observability.Collector) RouterOption {
	return func(r *Router) { r.collector = c }
}

// WithTracing starts a server span per request.
func WithTracing(serviceName string) RouterOption {
	return func(r *Router) {
		r.tracing = true
		r.service = serviceName
	}
}

// NewRouter creates a Router.
func NewRouter(edges *EdgeHandler, logger *zap.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{edges: edges, logger: logger.Named("http"), started: time.Now()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Setup builds the chi router.
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(RequestID)
	router.Use(chimiddleware.Recoverer)
	if rt.tracing {
		router.Use(observability.TracingMiddleware(rt.service))
	}
	if rt.collector != nil {
		router.Use(observability.MetricsMiddleware(rt.collector))
	}
	router.Use(Logger(rt.logger))

	router.Get("/health", rt.health)
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/edges", rt.edges.Create)
		r.Post("/edges/lookup", rt.edges.Lookup)
		r.Post("/edges/search", rt.edges.Search)
		r.Post("/edges/adjacent", rt.edges.Adjacent)
		r.Post("/edges/aggregate", rt.edges.Aggregate)
	})

	return router
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(rt.started).Round(time.Second).String(),
	})
}
