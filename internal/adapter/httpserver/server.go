package httpserver

import (
	"context"
	"fmt"

	"github.com/peter0524/service-fabric/internal/config"
	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/gateway"
	"github.com/peter0524/service-fabric/internal/service/ratelimiter"
)

// ReadinessCheck is one dependency ping run by ReadyzHandler.
type ReadinessCheck func(ctx context.Context) error

// Server is the explicit value constructed in cmd/gateway's main and
// threaded through the router and its middleware. It carries the
// config needed by the admin guard, the Gateway used by the forwarding
// and admin handlers, and the user-configuration store served directly
// out of the gateway process.
type Server struct {
	Cfg     config.Config
	Gateway *gateway.Gateway
	Users   domain.UserConfigStore

	// RateLimiter is optional: nil when Redis is unconfigured, in which
	// case PerUserRateLimit degrades to a no-op.
	RateLimiter *ratelimiter.RedisLuaLimiter

	// DBCheck and RedisCheck back ReadyzHandler; either may be nil, in
	// which case that dependency is skipped rather than reported down.
	DBCheck    ReadinessCheck
	RedisCheck ReadinessCheck
}

// NewServer builds a Server. No I/O is performed here.
func NewServer(cfg config.Config, gw *gateway.Gateway, users domain.UserConfigStore, limiter *ratelimiter.RedisLuaLimiter) *Server {
	return &Server{Cfg: cfg, Gateway: gw, Users: users, RateLimiter: limiter}
}

// AdminServer hosts the Bearer-JWT-guarded admin API. It is constructed
// only when AdminEnabled() is true.
type AdminServer struct {
	cfg            config.Config
	server         *Server
	sessionManager *SessionManager
}

// NewAdminServer builds an AdminServer bound to the given Server. It
// fails if no session secret is configured since JWTs cannot be signed
// without one.
func NewAdminServer(cfg config.Config, server *Server) (*AdminServer, error) {
	if cfg.AdminSessionSecret == "" {
		return nil, fmt.Errorf("admin session secret is required")
	}
	return &AdminServer{cfg: cfg, server: server, sessionManager: NewSessionManager(cfg)}, nil
}
