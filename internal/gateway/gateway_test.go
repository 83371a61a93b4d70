package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peter0524/service-fabric/internal/cache"
	"github.com/peter0524/service-fabric/internal/domain"
)

func newTestGateway(t *testing.T, kind domain.ServiceKind, handler http.HandlerFunc, failMax int) (*Gateway, *Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewService(kind, []string{srv.URL}, time.Second, failMax, 50*time.Millisecond)
	svc.SetHealth(srv.URL, domain.HealthHealthy)

	gw := NewGateway(map[domain.ServiceKind]*Service{kind: svc}, cache.NewLocal(100), nil)
	return gw, svc, srv
}

func TestGateway_BasicForward(t *testing.T) {
	gw, _, _ := newTestGateway(t, domain.ServiceChart, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}, 3)

	res, err := gw.Route(context.Background(), domain.ServiceChart, http.MethodGet, "/health", "", http.Header{}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(res.Body), "ok")
}

func TestGateway_UnknownServiceIs404WithoutTouchingBackend(t *testing.T) {
	gw, _, _ := newTestGateway(t, domain.ServiceChart, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend should never be called for an unknown service")
	}, 3)

	_, err := gw.Route(context.Background(), domain.ServiceKind("unknown"), http.MethodGet, "/health", "", http.Header{}, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGateway_CircuitBreakerOpensAfterFailMax(t *testing.T) {
	calls := 0
	gw, _, _ := newTestGateway(t, domain.ServiceChart, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}, 3)

	for i := 0; i < 3; i++ {
		_, err := gw.Route(context.Background(), domain.ServiceChart, http.MethodGet, "/x", "", http.Header{}, nil)
		require.True(t, errors.Is(err, domain.ErrServiceUnavailable))
	}
	require.Equal(t, 3, calls)

	_, err := gw.Route(context.Background(), domain.ServiceChart, http.MethodGet, "/x", "", http.Header{}, nil)
	require.ErrorIs(t, err, domain.ErrBreakerOpen)
	require.Equal(t, 3, calls, "breaker must fail fast without an upstream call")
}

func TestGateway_CacheIdempotence(t *testing.T) {
	calls := 0
	gw, _, _ := newTestGateway(t, domain.ServiceChart, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("response-body"))
	}, 3)

	r1, err := gw.Route(context.Background(), domain.ServiceChart, http.MethodGet, "/signal", "a=1", http.Header{}, nil)
	require.NoError(t, err)
	r2, err := gw.Route(context.Background(), domain.ServiceChart, http.MethodGet, "/signal", "a=1", http.Header{}, nil)
	require.NoError(t, err)

	require.Equal(t, r1.Body, r2.Body)
	require.True(t, r2.FromCache)
	require.Equal(t, 1, calls)
}

func TestGateway_DisabledServiceIsRefused(t *testing.T) {
	gw, svc, _ := newTestGateway(t, domain.ServiceChart, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("disabled service must not be called")
	}, 3)
	svc.Toggle()

	_, err := gw.Route(context.Background(), domain.ServiceChart, http.MethodGet, "/x", "", http.Header{}, nil)
	require.ErrorIs(t, err, domain.ErrServiceDisabled)
}

func TestGateway_ResetBreaker(t *testing.T) {
	gw, _, _ := newTestGateway(t, domain.ServiceChart, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, 1)

	_, err := gw.Route(context.Background(), domain.ServiceChart, http.MethodGet, "/x", "", http.Header{}, nil)
	require.Error(t, err)

	require.NoError(t, gw.ResetBreaker(domain.ServiceChart))
	snap := gw.HealthSnapshot()[domain.ServiceChart]
	require.Equal(t, "closed", snap.BreakerState)
}
