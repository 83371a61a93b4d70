package app_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpserver "github.com/peter0524/service-fabric/internal/adapter/httpserver"
	"github.com/peter0524/service-fabric/internal/app"
	"github.com/peter0524/service-fabric/internal/cache"
	"github.com/peter0524/service-fabric/internal/config"
	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/gateway"
)

func TestBuildRouter_Health(t *testing.T) {
	cfg := config.Config{Port: 8080, RateLimitPerMin: 1000, GatewayBackendTimeout: 5 * time.Second, CORSAllowOrigins: "*"}
	gw := gateway.NewGateway(map[domain.ServiceKind]*gateway.Service{}, cache.NewLocal(10), nil)
	srv := httpserver.NewServer(cfg, gw, nil, nil)
	h := app.BuildRouter(cfg, srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Result().StatusCode)
}

func TestBuildRouter_UnknownServiceProxyIs404(t *testing.T) {
	cfg := config.Config{Port: 8080, RateLimitPerMin: 1000, GatewayBackendTimeout: 5 * time.Second, CORSAllowOrigins: "*"}
	gw := gateway.NewGateway(map[domain.ServiceKind]*gateway.Service{}, cache.NewLocal(10), nil)
	srv := httpserver.NewServer(cfg, gw, nil, nil)
	h := app.BuildRouter(cfg, srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart/health", nil))
	require.Equal(t, http.StatusNotFound, rec.Result().StatusCode)
}
