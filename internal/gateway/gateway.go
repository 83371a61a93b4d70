package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/cache"
	"github.com/peter0524/service-fabric/internal/domain"
)

// Gateway is the explicit Fabric value constructed once in cmd/gateway's
// main and threaded through every handler. It holds no package-level
// state.
type Gateway struct {
	Services map[domain.ServiceKind]*Service
	Cache    domain.KVCache
	Logger   *slog.Logger
}

// NewGateway constructs a Gateway over the given service set and cache
// backend. No I/O; the health monitor is started separately via
// StartHealthMonitor(ctx).
func NewGateway(services map[domain.ServiceKind]*Service, kv domain.KVCache, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{Services: services, Cache: kv, Logger: logger}
}

// RouteResult is what Route returns to the HTTP handler layer.
type RouteResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FromCache  bool
}

// cacheableTTL is the default TTL cached responses are stored with (spec
// §4.1.3: "typ. 300s").
const cacheableTTL = 300 * time.Second

// Route implements the forwarding algorithm of §4.1.2.
func (g *Gateway) Route(ctx context.Context, kind domain.ServiceKind, method, path, rawQuery string, headers http.Header, body []byte) (RouteResult, error) {
	svc, ok := g.Services[kind]
	if !ok {
		return RouteResult{}, fmt.Errorf("service %q: %w", kind, domain.ErrNotFound)
	}
	if !svc.IsEnabled() {
		return RouteResult{}, domain.ErrServiceDisabled
	}

	idempotent := method == http.MethodGet || method == http.MethodHead
	fingerprint := cache.Fingerprint(string(kind), method, path, rawQuery)
	if idempotent && g.Cache != nil {
		cached, hit, err := g.Cache.Get(ctx, fingerprint)
		if err == nil {
			observability.RecordCacheResult(string(kind), hit)
			if hit {
				return decodeCachedResponse(cached), nil
			}
		}
	}

	candidates := svc.HealthyOrDegraded()
	if len(candidates) == 0 {
		return RouteResult{}, domain.ErrServiceUnavailable
	}

	instance := svc.LB.Next(candidates)

	if !svc.Breaker.Allow() {
		return RouteResult{}, domain.ErrBreakerOpen
	}

	reqCtx, cancel := context.WithTimeout(ctx, svc.Timeout)
	defer cancel()

	target := strings.TrimRight(instance, "/") + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(reqCtx, method, target, bytes.NewReader(body))
	if err != nil {
		return RouteResult{}, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("X-Gateway-Request-ID", NewRequestID())

	backendStart := time.Now()
	resp, err := svc.Client.Do(req)
	observability.RecordBackendResponse(string(kind), time.Since(backendStart))
	if err != nil {
		svc.Breaker.RecordFailure()
		observability.RecordCircuitBreakerState(string(kind), int(svc.Breaker.GetState()))
		return RouteResult{}, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		svc.Breaker.RecordFailure()
		observability.RecordCircuitBreakerState(string(kind), int(svc.Breaker.GetState()))
		return RouteResult{}, fmt.Errorf("%w: read upstream body: %v", domain.ErrServiceUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		svc.Breaker.RecordFailure()
		observability.RecordCircuitBreakerState(string(kind), int(svc.Breaker.GetState()))
		return RouteResult{}, domain.ErrServiceUnavailable
	}
	svc.Breaker.RecordSuccess()
	observability.RecordCircuitBreakerState(string(kind), int(svc.Breaker.GetState()))

	result := RouteResult{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: respBody}

	if idempotent && resp.StatusCode < 400 && g.Cache != nil {
		if encoded, err := encodeCachedResponse(result); err == nil {
			_ = g.Cache.Set(ctx, fingerprint, encoded, cacheableTTL)
		}
	}
	return result, nil
}

var requestIDEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0) //nolint:gosec // ULID entropy, not cryptographic.

// NewRequestID generates the ULID attached as X-Gateway-Request-ID.
func NewRequestID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), requestIDEntropy)
	if err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return id.String()
}

// HealthSnapshot is a pure read of the current per-service status.
type HealthSnapshot struct {
	Name             domain.ServiceKind `json:"name"`
	Enabled          bool               `json:"enabled"`
	Health           string             `json:"health"`
	HealthyInstances int                `json:"healthy_instances"`
	BreakerState     string             `json:"breaker_state"`
}

func (g *Gateway) HealthSnapshot() map[domain.ServiceKind]HealthSnapshot {
	out := make(map[domain.ServiceKind]HealthSnapshot, len(g.Services))
	for kind, svc := range g.Services {
		out[kind] = HealthSnapshot{
			Name:             kind,
			Enabled:          svc.IsEnabled(),
			Health:           svc.AggregateHealth().String(),
			HealthyInstances: len(svc.HealthyOrDegraded()),
			BreakerState:     svc.Breaker.GetState().String(),
		}
	}
	return out
}

// ResetBreaker is the administrative resetBreaker(ServiceKind) operation.
func (g *Gateway) ResetBreaker(kind domain.ServiceKind) error {
	svc, ok := g.Services[kind]
	if !ok {
		return domain.ErrNotFound
	}
	svc.Breaker.Reset()
	return nil
}

// ToggleService flips a service's enabled flag and returns the new state.
func (g *Gateway) ToggleService(kind domain.ServiceKind) (bool, error) {
	svc, ok := g.Services[kind]
	if !ok {
		return false, domain.ErrNotFound
	}
	return svc.Toggle(), nil
}

func (g *Gateway) ClearCache(ctx context.Context) error {
	if g.Cache == nil {
		return nil
	}
	return g.Cache.Clear(ctx)
}

// WarmCache pre-populates the cache for a known set of GET routes. The
// source specification leaves warm-up's candidate set to the operator;
// here it accepts one service and an explicit list of its paths to prefetch.
func (g *Gateway) WarmCache(ctx context.Context, kind domain.ServiceKind, paths []string) (int, error) {
	warmed := 0
	for _, p := range paths {
		if _, err := g.Route(ctx, kind, http.MethodGet, p, "", http.Header{}, nil); err == nil {
			warmed++
		}
	}
	return warmed, nil
}

func (g *Gateway) CircuitBreakerStats() map[domain.ServiceKind]map[string]any {
	out := make(map[domain.ServiceKind]map[string]any, len(g.Services))
	for kind, svc := range g.Services {
		out[kind] = svc.Breaker.Stats()
	}
	return out
}

func encodeCachedResponse(r RouteResult) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(strconv.Itoa(r.StatusCode))
	buf.WriteByte('\n')
	buf.Write(r.Body)
	return buf.Bytes(), nil
}

func decodeCachedResponse(raw []byte) RouteResult {
	idx := bytes.IndexByte(raw, '\n')
	if idx < 0 {
		return RouteResult{StatusCode: http.StatusOK, Body: raw, FromCache: true}
	}
	status, _ := strconv.Atoi(string(raw[:idx]))
	return RouteResult{StatusCode: status, Body: raw[idx+1:], FromCache: true}
}
