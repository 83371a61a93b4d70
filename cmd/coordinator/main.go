// Command coordinator runs the fabric's L5 scheduler-driving loop: a
// fixed-cadence sweep that ticks every schedulable worker's
// check-schedule endpoint through the gateway (spec §4.6).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/config"
	"github.com/peter0524/service-fabric/internal/coordinator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancel()
	}()

	c := coordinator.New(cfg.GatewayBaseURL, cfg.CoordinatorInterval, cfg.CoordinatorDeadline, logger)
	slog.Info("coordinator starting", slog.String("gateway_base_url", cfg.GatewayBaseURL), slog.Duration("interval", cfg.CoordinatorInterval))
	c.Run(ctx)
	slog.Info("coordinator stopped")
}
