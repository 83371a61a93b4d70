// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// BackendResponseDuration records latency of gateway calls to a
	// backend service instance, distinct from the total request duration
	// above which also includes cache/breaker overhead.
	BackendResponseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_response_seconds",
			Help:    "Gateway-to-backend response duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"service"},
	)

	// CircuitBreakerState is a gauge of the current breaker state per
	// service (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service"},
	)

	// CacheHitsTotal / CacheMissesTotal track gateway response-cache
	// effectiveness by backend kind.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Total gateway cache hits",
		},
		[]string{"backend"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_misses_total",
			Help: "Total gateway cache misses",
		},
		[]string{"backend"},
	)

	// SchedulerDecisionsTotal counts shouldExecuteNow outcomes per
	// service and decision (decision is "execute" or "skip").
	SchedulerDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_decisions_total",
			Help: "Total scheduler decisions by service and outcome",
		},
		[]string{"service", "decision"},
	)

	// SignalsEmittedTotal counts signals appended to a worker's store.
	SignalsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_emitted_total",
			Help: "Total signals emitted by a worker",
		},
		[]string{"service"},
	)

	// LLMRequestsTotal counts LLM generation calls by vendor and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total LLM requests by vendor and outcome",
		},
		[]string{"vendor", "outcome"},
	)
	// LLMRequestDuration records LLM call latency by vendor.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"vendor"},
	)
	// LLMTokenUsage tracks prompt/completion token consumption by vendor.
	LLMTokenUsage = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens used",
		},
		[]string{"vendor", "type"},
	)

	// NotificationsSentTotal counts outbound notification deliveries.
	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total notifications sent by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// CoordinatorTicksTotal counts coordinator sweep outcomes.
	CoordinatorTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_ticks_total",
			Help: "Total coordinator ticks by outcome",
		},
		[]string{"service", "outcome"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(BackendResponseDuration)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(SchedulerDecisionsTotal)
	prometheus.MustRegister(SignalsEmittedTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokenUsage)
	prometheus.MustRegister(NotificationsSentTotal)
	prometheus.MustRegister(CoordinatorTicksTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordBackendResponse records gateway-to-backend latency for a service.
func RecordBackendResponse(service string, dur time.Duration) {
	BackendResponseDuration.WithLabelValues(service).Observe(dur.Seconds())
}

// RecordCircuitBreakerState sets the gauge for a service's breaker state.
// state must be one of 0 (closed), 1 (open), 2 (half-open).
func RecordCircuitBreakerState(service string, state int) {
	CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCacheResult increments the hit or miss counter for a backend.
func RecordCacheResult(backend string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(backend).Inc()
		return
	}
	CacheMissesTotal.WithLabelValues(backend).Inc()
}

// RecordSchedulerDecision records a shouldExecuteNow outcome.
func RecordSchedulerDecision(service string, executed bool) {
	decision := "skip"
	if executed {
		decision = "execute"
	}
	SchedulerDecisionsTotal.WithLabelValues(service, decision).Inc()
}

// RecordSignalEmitted increments the per-service signal counter.
func RecordSignalEmitted(service string) {
	SignalsEmittedTotal.WithLabelValues(service).Inc()
}

// RecordLLMRequest records an LLM call's outcome, latency, and token usage.
func RecordLLMRequest(vendor string, err error, dur time.Duration, promptTokens, completionTokens int) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMRequestsTotal.WithLabelValues(vendor, outcome).Inc()
	LLMRequestDuration.WithLabelValues(vendor).Observe(dur.Seconds())
	if promptTokens > 0 {
		LLMTokenUsage.WithLabelValues(vendor, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokenUsage.WithLabelValues(vendor, "completion").Add(float64(completionTokens))
	}
}

// RecordNotificationSent increments the notification delivery counter.
func RecordNotificationSent(channel string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	NotificationsSentTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordCoordinatorTick records one coordinator sweep outcome for a service.
func RecordCoordinatorTick(service string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CoordinatorTicksTotal.WithLabelValues(service, outcome).Inc()
}
