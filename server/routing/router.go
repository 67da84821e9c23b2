// Package routing wires the sous HTTP surface onto a chi router.
package routing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/sous/config"
	"github.com/teilomillet/sous/errors"
	"github.com/teilomillet/sous/server/handlers"
	"github.com/teilomillet/sous/server/metrics"
	"github.com/teilomillet/sous/server/middleware"
	"go.uber.org/zap"
)

// IngredientsPath is the ingredient lookup endpoint.
const IngredientsPath = "/api/get-ingredients"

// Dependencies are the components the router mounts. Optional fields may be nil.
type Dependencies struct {
	Ingredients *handlers.IngredientHandler
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Queue       *middleware.QueueMiddleware
	Version     string
}

// Router handles HTTP routing for the service.
type Router struct {
	router chi.Router
	logger *zap.Logger
}

// NewRouter builds the router. Global middleware runs in this order:
// request ID, panic recovery, logging, metrics, CORS. Rate limiting and the
// admission queue only guard the ingredient route.
func NewRouter(cfg *config.Config, deps Dependencies, logger *zap.Logger) *Router {
	r := &Router{
		router: chi.NewRouter(),
		logger: logger,
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(errors.ErrorHandler(logger))
	r.router.Use(middleware.Logging(logger))
	if deps.Metrics != nil {
		r.router.Use(middleware.PrometheusMetrics(deps.Metrics))
	}
	r.router.Use(middleware.CORS(cfg.CORS))

	r.router.Group(func(api chi.Router) {
		if deps.RateLimiter != nil {
			api.Use(deps.RateLimiter.Handler)
		}
		if deps.Queue != nil {
			api.Use(deps.Queue.Handler)
		}
		api.Method(http.MethodPost, IngredientsPath, deps.Ingredients)
	})

	r.router.Get("/api/health", handlers.Health(deps.Ingredients.Configured))

	endpoints := []string{
		"POST " + IngredientsPath,
		"GET /api/health",
		"GET /test.html",
	}
	if deps.Metrics != nil && cfg.Metrics.Enabled {
		r.router.Method(http.MethodGet, cfg.Metrics.Path, deps.Metrics.Handler())
		endpoints = append(endpoints, "GET "+cfg.Metrics.Path)
	}

	r.router.Get("/test.html", handlers.TestPage(cfg.Server.StaticDir))
	r.router.Get("/", handlers.Root(handlers.ServiceInfo{
		Status:    "ok",
		Service:   "sous",
		Version:   deps.Version,
		Endpoints: endpoints,
	}))

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
