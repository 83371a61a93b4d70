package httpserver

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/peter0524/service-fabric/internal/service/ratelimiter"
)

// PerUserRateLimit admits requests through a distributed token bucket keyed
// by the caller's X-User-ID header, on top of the router's per-IP
// httprate limit. It exists because the IP limit alone charges every user
// behind a shared NAT or corporate proxy against the same bucket; this
// layer gives each registered user their own budget that survives across
// gateway replicas, since RedisLuaLimiter's buckets live in Redis rather
// than in process memory.
//
// limiter may be nil (Redis unconfigured); RedisLuaLimiter.Allow already
// fails open on a nil receiver, so the middleware degrades to a no-op.
func PerUserRateLimit(limiter *ratelimiter.RedisLuaLimiter, perMinute int) func(http.Handler) http.Handler {
	cfg := ratelimiter.NewBucketConfigFromPerMinute(perMinute)
	var registered sync.Map // userID -> struct{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := "user:" + userID
			if _, ok := registered.Load(key); !ok {
				limiter.SetBucketConfig(key, cfg)
				registered.Store(key, struct{}{})
			}

			allowed, retryAfter, err := limiter.Allow(r.Context(), key, 1)
			if err != nil {
				// Fail open: a Redis hiccup should not block legitimate traffic.
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
				writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
					Error: apiError{Code: "RATE_LIMITED", Message: "per-user rate limit exceeded"},
					Path:  r.URL.Path,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
