package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/peter0524/service-fabric/internal/domain"
)

// ProxyHandler forwards the remainder of the chi route's {rest} wildcard
// to the named backend through the gateway's Route algorithm.
func (s *Server) ProxyHandler(kind domain.ServiceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := chi.URLParam(r, "*")
		path := "/" + strings.TrimPrefix(rest, "/")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, domain.ErrInvalidArgument, nil)
			return
		}

		res, err := s.Gateway.Route(r.Context(), kind, r.Method, path, r.URL.RawQuery, r.Header, body)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		for k, vs := range res.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		if res.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(res.StatusCode)
		_, _ = w.Write(res.Body)
	}
}

// HealthHandler reports the gateway's own liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs the configured DBCheck and RedisCheck and reports
// 503 if either fails, per spec's readiness-vs-liveness distinction
// (HealthHandler never touches a dependency; this does).
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		ok := true
		if s.DBCheck != nil {
			if err := s.DBCheck(r.Context()); err != nil {
				status["db"] = err.Error()
				ok = false
			} else {
				status["db"] = "ok"
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(r.Context()); err != nil {
				status["redis"] = err.Error()
				ok = false
			} else {
				status["redis"] = "ok"
			}
		}
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"ready": ok, "checks": status})
	}
}

// ServicesStatusHandler exposes the per-service HealthSnapshot map.
func (s *Server) ServicesStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Gateway.HealthSnapshot())
	}
}

// CacheStatsHandler exposes the configured cache backend's Stats().
func (s *Server) CacheStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Gateway.Cache == nil {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, s.Gateway.Cache.Stats())
	}
}

// CacheClearHandler drops every cached response.
func (s *Server) CacheClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Gateway.ClearCache(r.Context()); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

// cacheWarmupRequest is the body of POST /cache/warm-up.
type cacheWarmupRequest struct {
	Service domain.ServiceKind `json:"service"`
	Paths   []string           `json:"paths"`
}

// CacheWarmUpHandler prefetches a set of GET routes into the cache.
func (s *Server) CacheWarmUpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cacheWarmupRequest
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, err.Error())
			return
		}
		warmed, err := s.Gateway.WarmCache(r.Context(), req.Service, req.Paths)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"warmed": warmed})
	}
}

// CircuitBreakerResetHandler resets a single service's breaker.
func (s *Server) CircuitBreakerResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := domain.ServiceKind(chi.URLParam(r, "service"))
		if err := s.Gateway.ResetBreaker(kind); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

// CircuitBreakerStatusHandler exposes every breaker's stats snapshot.
func (s *Server) CircuitBreakerStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Gateway.CircuitBreakerStats())
	}
}

// ServiceToggleHandler flips a service's enabled flag.
func (s *Server) ServiceToggleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := domain.ServiceKind(chi.URLParam(r, "service"))
		enabled, err := s.Gateway.ToggleService(kind)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"service": kind, "enabled": enabled})
	}
}
