// Package gateway implements L4: the reverse-proxy core described in
// spec §4.1 — connection-pooled forwarding, round-robin load balancing,
// response caching, per-backend circuit breakers and a background
// health monitor.
package gateway

import (
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/peter0524/service-fabric/internal/breaker"
	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/loadbalancer"
)

// Service is the gateway's view of one backend ServiceKind.
type Service struct {
	Name        domain.ServiceKind
	Instances   []string
	Enabled     bool
	Timeout     time.Duration
	RetryBudget uint8

	Breaker *breaker.Breaker
	LB      *loadbalancer.RoundRobin
	Client  *http.Client

	mu      sync.RWMutex
	health  map[string]domain.HealthState
}

// NewService constructs a Service with its own connection pool, breaker
// and load balancer. Pools are built once here, in main's wiring path,
// never lazily inside a request handler.
func NewService(name domain.ServiceKind, instances []string, timeout time.Duration, failMax int, resetTimeout time.Duration) *Service {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 30,
		IdleConnTimeout:     30 * time.Second,
	}
	health := make(map[string]domain.HealthState, len(instances))
	for _, inst := range instances {
		health[inst] = domain.HealthUnknown
	}
	traced := otelhttp.NewTransport(transport, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return r.Method + " " + r.URL.Host + r.URL.Path
	}))
	return &Service{
		Name:      name,
		Instances: instances,
		Enabled:   true,
		Timeout:   timeout,
		Breaker:   breaker.New(failMax, resetTimeout),
		LB:        loadbalancer.New(),
		Client:    &http.Client{Transport: traced},
		health:    health,
	}
}

// HealthyOrDegraded returns the instance subset eligible for routing
// (step 4 of the forwarding algorithm): health monitoring shapes
// candidate selection but never short-circuits the breaker — they are
// independent signals.
func (s *Service) HealthyOrDegraded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.Instances))
	for _, inst := range s.Instances {
		switch s.health[inst] {
		case domain.HealthHealthy, domain.HealthDegraded, domain.HealthUnknown:
			out = append(out, inst)
		}
	}
	return out
}

func (s *Service) SetHealth(instance string, state domain.HealthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.health == nil {
		s.health = map[string]domain.HealthState{}
	}
	s.health[instance] = state
}

// AggregateHealth summarizes per-instance health into the single value
// the §4.1.4 health monitor computes for the service as a whole.
func (s *Service) AggregateHealth() domain.HealthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.health) == 0 {
		return domain.HealthUnknown
	}
	healthy := 0
	for _, st := range s.health {
		if st == domain.HealthHealthy {
			healthy++
		}
	}
	switch {
	case healthy == len(s.health):
		return domain.HealthHealthy
	case healthy == 0:
		return domain.HealthUnhealthy
	default:
		return domain.HealthDegraded
	}
}

func (s *Service) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Enabled = !s.Enabled
	return s.Enabled
}

func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Enabled
}
