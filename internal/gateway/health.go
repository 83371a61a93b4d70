package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/peter0524/service-fabric/internal/domain"
)

// HealthMonitorInterval is the fixed wake cadence from §4.1.4.
const HealthMonitorInterval = 30 * time.Second

// instanceProbeTimeout bounds each per-instance GET /health call.
const instanceProbeTimeout = 5 * time.Second

// StartHealthMonitor runs the background prober until ctx is canceled.
// It is never started from a constructor — callers opt in explicitly,
// per the "background tasks spawned from constructors" design note.
func (g *Gateway) StartHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(HealthMonitorInterval)
	defer ticker.Stop()

	g.probeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.probeOnce(ctx)
		}
	}
}

func (g *Gateway) probeOnce(ctx context.Context) {
	for _, svc := range g.Services {
		if !svc.IsEnabled() {
			continue
		}
		for _, instance := range svc.Instances {
			go g.probeInstance(ctx, svc, instance)
		}
	}
}

func (g *Gateway) probeInstance(ctx context.Context, svc *Service, instance string) {
	probeCtx, cancel := context.WithTimeout(ctx, instanceProbeTimeout)
	defer cancel()

	url := strings.TrimRight(instance, "/") + "/health"
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		svc.SetHealth(instance, domain.HealthUnhealthy)
		return
	}
	resp, err := svc.Client.Do(req)
	if err != nil {
		g.Logger.Debug("health probe failed", slog.String("instance", instance), slog.Any("error", err))
		svc.SetHealth(instance, domain.HealthUnhealthy)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		svc.SetHealth(instance, domain.HealthHealthy)
	} else {
		svc.SetHealth(instance, domain.HealthUnhealthy)
	}
}
