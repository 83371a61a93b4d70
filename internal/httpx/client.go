// Package httpx provides the one traced HTTP client constructor every
// outbound adapter (LLM vendors, the notification bot, the gateway's
// per-backend pools) builds on, so every external call carries an
// OpenTelemetry span the way the teacher's freemodels/ai clients do.
package httpx

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTracedClient returns an *http.Client whose transport is wrapped
// with otelhttp, grounded on the teacher's freemodels.service and
// ai/rate_limit_checker clients which both do exactly this before
// issuing any vendor call.
func NewTracedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Host + r.URL.Path
			}),
		),
	}
}
