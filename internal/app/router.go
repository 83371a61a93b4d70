// Package app wires application components and startup helpers.
//
// It provides dependency injection and application initialization.
// The package coordinates between different layers and provides
// a clean application bootstrap process.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/peter0524/service-fabric/internal/adapter/httpserver"
	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/config"
	"github.com/peter0524/service-fabric/internal/domain"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{"*"}
	}
	if s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the gateway's HTTP handler: the admin surface,
// the per-service reverse-proxy routes, and the user-configuration API.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(cfg.GatewayBackendTimeout))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", srv.HealthHandler())
	r.Get("/health", srv.HealthHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/services/status", srv.ServicesStatusHandler())

	// Mutating admin/cache/breaker routes and the per-user config surface
	// are rate-limited and, if admin credentials are configured, guarded.
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
		wr.Use(httpserver.PerUserRateLimit(srv.RateLimiter, cfg.RateLimitPerMin))
		if cfg.AdminEnabled() {
			wr.Use(srv.AdminAPIGuard())
			wr.Use(srv.CSRFGuard())
		}

		wr.Get("/cache/stats", srv.CacheStatsHandler())
		wr.Post("/cache/clear", srv.CacheClearHandler())
		wr.Post("/cache/warm-up", srv.CacheWarmUpHandler())

		wr.Get("/circuit-breaker/status", srv.CircuitBreakerStatusHandler())
		wr.Post("/circuit-breaker/{service}/reset", srv.CircuitBreakerResetHandler())

		wr.Post("/services/{service}/toggle", srv.ServiceToggleHandler())

		wr.Post("/users/profile", srv.RegisterProfileHandler())
		wr.Get("/users/{id}/profile", srv.ProfileHandler())
		wr.Put("/users/{id}/profile", srv.ProfileHandler())
		wr.Get("/users/{id}/config", srv.ConfigHandler())
		wr.Patch("/users/{id}/config", srv.UpdateConfigHandler())
		wr.Get("/users/{id}/stocks", srv.StocksHandler())
		wr.Put("/users/{id}/stocks", srv.StocksHandler())
		wr.Delete("/users/{id}/stocks/{code}", srv.StockHandler())
		wr.Post("/users/{id}/stocks/batch", srv.StocksBatchHandler())
		wr.Get("/users/{id}/model", srv.ModelHandler())
		wr.Put("/users/{id}/model", srv.ModelHandler())
		wr.Get("/users/{id}/wanted-services", srv.WantedServicesHandler())
		wr.Post("/users/{id}/wanted-services", srv.WantedServicesHandler())
		wr.Put("/users/{id}/wanted-services", srv.WantedServicesHandler())
	})

	// Per-service reverse-proxy surface: /api/<service>/{health,check-schedule,execute,signal,...}
	for _, kind := range domain.ServiceKinds {
		r.Mount("/api/"+string(kind), http.HandlerFunc(srv.ProxyHandler(kind)))
	}

	if cfg.AdminEnabled() {
		admin, err := httpserver.NewAdminServer(cfg, srv)
		if err == nil {
			r.Get("/admin/prometheus", admin.AdminBearerRequired(func(w http.ResponseWriter, r *http.Request) {
				promhttp.Handler().ServeHTTP(w, r)
			}))
		}
	}

	return httpserver.SecurityHeaders(r)
}
