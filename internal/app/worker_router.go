package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/peter0524/service-fabric/internal/adapter/httpserver"
	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/config"
)

// BuildWorkerRouter constructs a worker process's HTTP handler: health,
// the coordinator's check-schedule tick, the execute bypass and the
// latest-signal read, all served at the process root (the gateway
// strips the "/api/<service>" prefix before forwarding here).
func BuildWorkerRouter(cfg config.Config, ws *httpserver.WorkerServer) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(cfg.GatewayBackendTimeout))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Get("/", ws.HealthHandler())
	r.Get("/health", ws.HealthHandler())
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/check-schedule", ws.CheckScheduleHandler())
	r.Post("/execute", ws.ExecuteHandler())
	r.Get("/signal", ws.SignalHandler())

	return httpserver.SecurityHeaders(r)
}
