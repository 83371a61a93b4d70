// Command gateway starts the fabric's L4 reverse proxy and admin surface
// (spec §4.1/§6.1): connection-pooled forwarding to worker instances,
// response caching, circuit breakers, round-robin load balancing and the
// user-configuration CRUD API served directly out of this process.
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

	"github.com/redis/go-redis/v9"

	"github.com/peter0524/service-fabric/internal/adapter/httpserver"
	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/adapter/repo/postgres"
	"github.com/peter0524/service-fabric/internal/app"
	"github.com/peter0524/service-fabric/internal/cache"
	"github.com/peter0524/service-fabric/internal/config"
	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/gateway"
	"github.com/peter0524/service-fabric/internal/service/ratelimiter"
	"github.com/peter0524/service-fabric/internal/userconfig"
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

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.UserConfigDSN)
	if err != nil {
		slog.Error("user config db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var users domain.UserConfigStore = userconfig.NewCachedStore(userconfig.NewPostgresStore(pool), cfg.UserConfigCacheTTL)

	var kv domain.KVCache
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis url", slog.Any("error", err))
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		kv = cache.NewRedis(rdb, "gwcache:")
		slog.Info("gateway cache backend selected", slog.String("backend", "redis"))
	} else {
		kv = cache.NewLocal(cfg.LocalCacheCapacity)
		slog.Info("gateway cache backend selected", slog.String("backend", "local"))
	}

	var limiter *ratelimiter.RedisLuaLimiter
	if rdb != nil {
		limiter = ratelimiter.NewRedisLuaLimiter(rdb, pool, nil)
	}

	services := map[domain.ServiceKind]*gateway.Service{}
	for _, kind := range domain.ServiceKinds {
		instances := cfg.InstancesFor(string(kind))
		if len(instances) == 0 {
			continue
		}
		services[kind] = gateway.NewService(kind, instances, cfg.GatewayBackendTimeout, cfg.BreakerFailMax, cfg.BreakerResetTimeout)
	}

	gw := gateway.NewGateway(services, kv, logger)

	healthCtx, cancelHealth := context.WithCancel(ctx)
	defer cancelHealth()
	go gw.StartHealthMonitor(healthCtx)

	srv := httpserver.NewServer(cfg, gw, users, limiter)
	srv.DBCheck, srv.RedisCheck = app.BuildReadinessChecks(pool, rdb)
	handler := app.BuildRouter(cfg, srv)

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
		slog.Info("gateway http server starting", slog.Int("port", cfg.Port), slog.Int("services", len(services)))
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
