package userconfig

import (
	"context"
	"sync"
	"time"

	"github.com/peter0524/service-fabric/internal/domain"
)

// entry pairs a cached snapshot with its load time so staleness can be
// bounded by TTL (spec: "staleness bound is the cache TTL, default 300s;
// this is acceptable").
type entry struct {
	snapshot domain.UserConfig
	loadedAt time.Time
}

// CachedStore wraps a domain.UserConfigStore with an in-process,
// TTL-invalidated map from user_id to snapshot. Every mutating operation
// removes the corresponding key so a subsequent read observes the
// authoritative value, modulo the propagation bound described above.
type CachedStore struct {
	backend domain.UserConfigStore
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]entry

	// Instrumentation for scenario (e) of the testable properties: counts
	// backend hits, so tests can assert "exactly one store call" /
	// "zero additional store calls within cache TTL".
	backendCalls int
}

// NewCachedStore wraps backend with a TTL-bounded cache (spec default
// 300s).
func NewCachedStore(backend domain.UserConfigStore, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &CachedStore{backend: backend, ttl: ttl, cache: make(map[string]entry)}
}

// BackendCalls returns the number of times GetUserConfig actually reached
// the backend store (cache misses), for tests.
func (c *CachedStore) BackendCalls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backendCalls
}

func (c *CachedStore) GetUserConfig(ctx context.Context, userID string) (domain.UserConfig, error) {
	c.mu.RLock()
	e, ok := c.cache[userID]
	c.mu.RUnlock()
	if ok && time.Since(e.loadedAt) < c.ttl {
		return e.snapshot, nil
	}

	cfg, err := c.backend.GetUserConfig(ctx, userID)
	if err != nil {
		return domain.UserConfig{}, err
	}

	c.mu.Lock()
	c.backendCalls++
	c.cache[userID] = entry{snapshot: cfg, loadedAt: time.Now()}
	c.mu.Unlock()
	return cfg, nil
}

func (c *CachedStore) invalidate(userID string) {
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()
}

func (c *CachedStore) UpdateUserConfig(ctx context.Context, userID string, patch domain.UserConfigPatch) error {
	if err := c.backend.UpdateUserConfig(ctx, userID, patch); err != nil {
		return err
	}
	c.invalidate(userID)
	return nil
}

func (c *CachedStore) GetUserStocks(ctx context.Context, userID string) ([]domain.TickerCode, error) {
	cfg, err := c.GetUserConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cfg.WatchedTickers, nil
}

func (c *CachedStore) SetUserStocks(ctx context.Context, userID string, tickers []domain.TickerCode) error {
	if err := c.backend.SetUserStocks(ctx, userID, tickers); err != nil {
		return err
	}
	c.invalidate(userID)
	return nil
}

func (c *CachedStore) GetModelChoice(ctx context.Context, userID string) (domain.LLMKind, error) {
	cfg, err := c.GetUserConfig(ctx, userID)
	if err != nil {
		return "", err
	}
	return cfg.LLMChoice, nil
}

func (c *CachedStore) SetModelChoice(ctx context.Context, userID string, kind domain.LLMKind) error {
	if err := c.backend.SetModelChoice(ctx, userID, kind); err != nil {
		return err
	}
	c.invalidate(userID)
	return nil
}

func (c *CachedStore) RegisterProfile(ctx context.Context, cfg domain.UserConfig) error {
	if err := c.backend.RegisterProfile(ctx, cfg); err != nil {
		return err
	}
	c.invalidate(cfg.UserID)
	return nil
}

func (c *CachedStore) SetWantedServices(ctx context.Context, userID string, enabled map[domain.ServiceKind]bool) error {
	if err := c.backend.SetWantedServices(ctx, userID, enabled); err != nil {
		return err
	}
	c.invalidate(userID)
	return nil
}
