package domain

import (
	"context"
	"time"
)

// Bar is a single OHLCV candle returned by a DataSourceAdapter.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// DataSourceAdapter is the narrow contract to an out-of-scope market-data
// collaborator (exchange APIs, regulatory-filing APIs, news crawlers).
type DataSourceAdapter interface {
	FetchHistory(ctx context.Context, ticker TickerCode, start, end time.Time) ([]Bar, error)
	Subscribe(ctx context.Context, ticker TickerCode, onMessage func([]byte)) error
	Unsubscribe(ctx context.Context, ticker TickerCode) error
}

// LLMAdapter generates text completions for one vendor.
type LLMAdapter interface {
	Kind() LLMKind
	Generate(ctx context.Context, prompt string, params map[string]any) (string, error)
}

// NotificationAdapter fans signals out to chat channels.
type NotificationAdapter interface {
	SendText(ctx context.Context, channelID, message string) error
	SendDocument(ctx context.Context, channelID string, content []byte, filename, caption string) error
}

// KVCache is the gateway's response cache port; implementations are
// Local (bounded, in-process) or Redis (distributed, preferred).
type KVCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	Stats() map[string]any
}

// UserConfigStore is the L1 adapter backing user-configuration fan-out.
type UserConfigStore interface {
	GetUserConfig(ctx context.Context, userID string) (UserConfig, error)
	UpdateUserConfig(ctx context.Context, userID string, patch UserConfigPatch) error
	GetUserStocks(ctx context.Context, userID string) ([]TickerCode, error)
	SetUserStocks(ctx context.Context, userID string, tickers []TickerCode) error
	GetModelChoice(ctx context.Context, userID string) (LLMKind, error)
	SetModelChoice(ctx context.Context, userID string, kind LLMKind) error
	RegisterProfile(ctx context.Context, cfg UserConfig) error
	SetWantedServices(ctx context.Context, userID string, enabled map[ServiceKind]bool) error
}

// AnalysisAdapter runs one domain's analysis pipeline for a user's watched
// tickers and returns zero or more emitted signals. A per-ticker failure
// must not abort the remaining tickers (see Run's contract in pipeline.go).
type AnalysisAdapter interface {
	Run(ctx context.Context, cfg UserConfig) ([]Signal, error)
}

// Clock produces a typed market phase for an instant. Implementations are
// pure functions of (now, location); see the clock package.
type Clock interface {
	Phase(now time.Time) MarketPhase
}
