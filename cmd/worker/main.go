// Command worker starts one fabric worker process (L3/L2): exactly one
// ServiceKind domain, selected via the SERVICE_KIND environment
// variable, hosting the scheduler decision, user-rebind protocol,
// analysis pipeline and signal emission described in spec §4.3–§4.5.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peter0524/service-fabric/internal/adapter/datasource"
	"github.com/peter0524/service-fabric/internal/adapter/httpserver"
	"github.com/peter0524/service-fabric/internal/adapter/llm"
	"github.com/peter0524/service-fabric/internal/adapter/notify"
	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/adapter/repo/postgres"
	"github.com/peter0524/service-fabric/internal/adapter/signalbus"
	"github.com/peter0524/service-fabric/internal/analysis"
	"github.com/peter0524/service-fabric/internal/app"
	"github.com/peter0524/service-fabric/internal/clock"
	"github.com/peter0524/service-fabric/internal/config"
	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/scheduler"
	"github.com/peter0524/service-fabric/internal/userconfig"
	"github.com/peter0524/service-fabric/internal/worker"
)

// defaultLookback bounds how far back the analysis pipeline asks the
// data source for history on each run.
const defaultLookback = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	kind := domain.ServiceKind(cfg.ServiceKind)
	if !kind.Valid() {
		fmt.Fprintf(os.Stderr, "SERVICE_KIND must be one of %v, got %q\n", domain.ServiceKinds, cfg.ServiceKind)
		os.Exit(1)
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

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.UserConfigDSN)
	if err != nil {
		slog.Error("user config db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := userconfig.NewCachedStore(userconfig.NewPostgresStore(pool), cfg.UserConfigCacheTTL)

	var notifier domain.NotificationAdapter
	if cfg.NotifyBotToken != "" {
		notifier = notify.NewTelegramClient(cfg.NotifyBotToken, cfg.NotifyBaseURL)
	}

	llmMgr := llm.NewManagerFromConfig(cfg)

	var ds domain.DataSourceAdapter
	if cfg.DataSourceWSURL != "" {
		ds = datasource.NewWebSocketSource(cfg.DataSourceWSURL)
	} else {
		ds = datasource.Stub{}
	}

	pipeline := analysis.New(kind, ds, llmMgr, defaultLookback, logger)

	mclock := clock.NewMarketClock()
	table := scheduler.DefaultTable()

	w := worker.New(kind, mclock, table, store, pipeline, notifier, logger)
	if len(cfg.KafkaBrokers) > 0 {
		bus, err := signalbus.NewKafkaBus(cfg.KafkaBrokers, logger)
		if err != nil {
			slog.Error("kafka signal bus connect failed, falling back to no-op", slog.Any("error", err))
		} else {
			w.Bus = bus
			defer bus.Close()
		}
	}

	if kind == domain.ServiceFlow {
		startFlowLifecycle(ctx, w, ds, mclock, logger)
	}

	ws := httpserver.NewWorkerServer(w)
	handler := app.BuildWorkerRouter(cfg, ws)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("worker http server starting", slog.String("service_kind", string(kind)), slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}

// startFlowLifecycle runs the Flow worker's websocket subscribe/teardown
// loop in the background, driven by market-phase polling: the fabric has
// no push notification for phase transitions, so this watches the clock
// on a short tick and lets FlowLifecycle.OnPhaseChange's idempotence
// absorb repeated calls within the same phase.
func startFlowLifecycle(ctx context.Context, w *worker.Worker, ds domain.DataSourceAdapter, clk domain.Clock, logger *slog.Logger) {
	lifecycle := worker.NewFlowLifecycle(ds, datasource.StaticTokenSource{}, logger)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			now := time.Now()
			phase := clk.Phase(now)
			if tickers := w.CurrentConfig().WatchedTickers; len(tickers) > 0 {
				lifecycle.OnPhaseChange(ctx, phase, tickers[0], func([]byte) {})
			}
			select {
			case <-ctx.Done():
				lifecycle.TearDown(context.Background())
				return
			case <-ticker.C:
			}
		}
	}()
}
