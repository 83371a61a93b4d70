package userconfig

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peter0524/service-fabric/internal/domain"
)

// fakeStore is an in-memory domain.UserConfigStore used to test the
// caching layer in isolation from Postgres.
type fakeStore struct {
	mu    sync.Mutex
	calls int
	data  map[string]domain.UserConfig
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string]domain.UserConfig{}} }

func (f *fakeStore) GetUserConfig(_ context.Context, userID string) (domain.UserConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	cfg, ok := f.data[userID]
	if !ok {
		return domain.UserConfig{}, domain.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeStore) UpdateUserConfig(_ context.Context, userID string, patch domain.UserConfigPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.data[userID]
	if patch.LLMChoice != nil {
		cfg.LLMChoice = *patch.LLMChoice
	}
	f.data[userID] = cfg
	return nil
}

func (f *fakeStore) GetUserStocks(ctx context.Context, userID string) ([]domain.TickerCode, error) {
	cfg, err := f.GetUserConfig(ctx, userID)
	return cfg.WatchedTickers, err
}
func (f *fakeStore) SetUserStocks(_ context.Context, userID string, tickers []domain.TickerCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.data[userID]
	cfg.WatchedTickers = tickers
	f.data[userID] = cfg
	return nil
}
func (f *fakeStore) GetModelChoice(ctx context.Context, userID string) (domain.LLMKind, error) {
	cfg, err := f.GetUserConfig(ctx, userID)
	return cfg.LLMChoice, err
}
func (f *fakeStore) SetModelChoice(_ context.Context, userID string, kind domain.LLMKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.data[userID]
	cfg.LLMChoice = kind
	f.data[userID] = cfg
	return nil
}
func (f *fakeStore) RegisterProfile(_ context.Context, cfg domain.UserConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[cfg.UserID] = cfg
	return nil
}
func (f *fakeStore) SetWantedServices(_ context.Context, userID string, enabled map[domain.ServiceKind]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.data[userID]
	cfg.EnabledServices = enabled
	f.data[userID] = cfg
	return nil
}

func TestCachedStore_RebindCallsBackendOnceWithinTTL(t *testing.T) {
	backend := newFakeStore()
	require.NoError(t, backend.RegisterProfile(context.Background(), domain.NewDefaultUserConfig("42")))

	cached := NewCachedStore(backend, time.Minute)
	ctx := context.Background()

	_, err := cached.GetUserConfig(ctx, "42")
	require.NoError(t, err)
	_, err = cached.GetUserConfig(ctx, "42")
	require.NoError(t, err)
	_, err = cached.GetUserConfig(ctx, "42")
	require.NoError(t, err)

	require.Equal(t, 1, cached.BackendCalls())
}

func TestCachedStore_MutationInvalidates(t *testing.T) {
	backend := newFakeStore()
	require.NoError(t, backend.RegisterProfile(context.Background(), domain.NewDefaultUserConfig("42")))
	cached := NewCachedStore(backend, time.Minute)
	ctx := context.Background()

	_, err := cached.GetUserConfig(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, 1, cached.BackendCalls())

	require.NoError(t, cached.SetModelChoice(ctx, "42", domain.LLMGemini))

	cfg, err := cached.GetUserConfig(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, domain.LLMGemini, cfg.LLMChoice)
	require.Equal(t, 2, cached.BackendCalls())
}

func TestCachedStore_RoundTripSetUserStocks(t *testing.T) {
	backend := newFakeStore()
	require.NoError(t, backend.RegisterProfile(context.Background(), domain.NewDefaultUserConfig("u1")))
	cached := NewCachedStore(backend, time.Minute)
	ctx := context.Background()

	tickers := []domain.TickerCode{"005930", "000660"}
	require.NoError(t, cached.SetUserStocks(ctx, "u1", tickers))

	got, err := cached.GetUserStocks(ctx, "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, tickers, got)
}
