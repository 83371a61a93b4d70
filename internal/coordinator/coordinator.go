// Package coordinator implements the L5 process-wide loop described in
// spec §4.6: at a fixed cadence it invokes POST /check-schedule on each
// schedulable worker through the gateway. The coordinator never makes a
// scheduling decision itself — it only drives workers, which remain
// correct (if idle) when the coordinator pauses.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/httpx"
)

// schedulableKinds excludes ServiceUser, which hosts profile CRUD, not a
// scheduler-gated analysis pipeline.
var schedulableKinds = []domain.ServiceKind{
	domain.ServiceNews,
	domain.ServiceDisclosure,
	domain.ServiceChart,
	domain.ServiceFlow,
	domain.ServiceReport,
}

// Coordinator ticks every schedulable worker's check-schedule endpoint
// through the gateway's reverse-proxy surface (original_source's
// run_stock_trend.py drives services the same way: one outer loop
// issuing HTTP calls against an already-running fleet).
type Coordinator struct {
	GatewayBaseURL string
	Interval       time.Duration
	Deadline       time.Duration
	Client         *http.Client
	Logger         *slog.Logger
}

// New constructs a Coordinator. No I/O happens until Run is called.
func New(gatewayBaseURL string, interval, deadline time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		GatewayBaseURL: gatewayBaseURL,
		Interval:       interval,
		Deadline:       deadline,
		Client:         httpx.NewTracedClient(deadline),
		Logger:         logger,
	}
}

// Run blocks, ticking every Interval until ctx is canceled. Each tick
// issues one POST per schedulable kind, bounded by Deadline; failures
// are logged and non-fatal (spec §4.6).
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	for _, kind := range schedulableKinds {
		c.tickOne(ctx, kind)
	}
}

type checkScheduleResponse struct {
	Executed bool   `json:"executed"`
	Message  string `json:"message"`
}

func (c *Coordinator) tickOne(ctx context.Context, kind domain.ServiceKind) {
	tickCtx, cancel := context.WithTimeout(ctx, c.Deadline)
	defer cancel()

	url := fmt.Sprintf("%s/api/%s/check-schedule", c.GatewayBaseURL, kind)
	req, err := http.NewRequestWithContext(tickCtx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		c.Logger.Error("coordinator tick build failed", slog.String("service", string(kind)), slog.Any("error", err))
		observability.RecordCoordinatorTick(string(kind), err)
		return
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		c.Logger.Warn("coordinator tick failed", slog.String("service", string(kind)), slog.Any("error", err))
		observability.RecordCoordinatorTick(string(kind), err)
		return
	}
	defer resp.Body.Close()

	var decoded checkScheduleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.Logger.Warn("coordinator tick response decode failed", slog.String("service", string(kind)), slog.Any("error", err))
		observability.RecordCoordinatorTick(string(kind), err)
		return
	}

	observability.RecordCoordinatorTick(string(kind), nil)
	c.Logger.Debug("coordinator tick complete",
		slog.String("service", string(kind)),
		slog.Bool("executed", decoded.Executed),
		slog.String("message", decoded.Message))
}
