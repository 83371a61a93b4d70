package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/peter0524/service-fabric/internal/domain"
)

// FlowState is one of the Flow worker's websocket-lifecycle states.
type FlowState int

const (
	FlowOff FlowState = iota
	FlowSubscribing
	FlowSubscribed
	FlowReconnecting
)

func (s FlowState) String() string {
	switch s {
	case FlowSubscribing:
		return "subscribing"
	case FlowSubscribed:
		return "subscribed"
	case FlowReconnecting:
		return "reconnecting"
	default:
		return "off"
	}
}

// TokenSource vends the approval token the Flow worker's subscribe call
// requires, refreshing it before the next subscribe when fewer than 5
// minutes of lifetime remain.
type TokenSource interface {
	Token(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// FlowLifecycle drives the Off/Subscribing/Subscribed/Reconnecting state
// machine described in §4.4. It is a specialization layered on top of a
// Worker's EOD scheduling. The constructor starts nothing; a subscription
// goroutine starts only when OnPhaseChange sees MarketHours.
type FlowLifecycle struct {
	Source domain.DataSourceAdapter
	Tokens TokenSource
	Logger *slog.Logger

	mu           sync.Mutex
	state        FlowState
	ticker       domain.TickerCode
	tokenExpiry  time.Time
	token        string
	attempt      int
	cancelSub    context.CancelFunc
}

// NewFlowLifecycle constructs the lifecycle controller. No I/O.
func NewFlowLifecycle(source domain.DataSourceAdapter, tokens TokenSource, logger *slog.Logger) *FlowLifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowLifecycle{Source: source, Tokens: tokens, Logger: logger, state: FlowOff}
}

// State returns the current lifecycle state.
func (f *FlowLifecycle) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnPhaseChange applies the §4.4 transition rules for a new market phase.
// It is safe to call repeatedly with the same phase (idempotent): two
// rapid MarketHours -> AfterMarket -> MarketHours transitions never leave
// more than one live subscription, because TearDown always cancels the
// previous subscription's context before a fresh Subscribing begins.
func (f *FlowLifecycle) OnPhaseChange(ctx context.Context, phase domain.MarketPhase, ticker domain.TickerCode, onMessage func([]byte)) {
	f.mu.Lock()
	state := f.state
	f.mu.Unlock()

	if phase == domain.PhaseMarketHours {
		if state == FlowOff {
			f.subscribe(ctx, ticker, onMessage)
		}
		return
	}

	if state == FlowSubscribing || state == FlowSubscribed || state == FlowReconnecting {
		f.TearDown(ctx)
	}
}

func (f *FlowLifecycle) ensureToken(ctx context.Context) error {
	f.mu.Lock()
	needRefresh := f.token == "" || time.Until(f.tokenExpiry) < 5*time.Minute
	f.mu.Unlock()
	if !needRefresh || f.Tokens == nil {
		return nil
	}
	token, expiry, err := f.Tokens.Token(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.token = token
	f.tokenExpiry = expiry
	f.mu.Unlock()
	return nil
}

func (f *FlowLifecycle) subscribe(ctx context.Context, ticker domain.TickerCode, onMessage func([]byte)) {
	if err := f.ensureToken(ctx); err != nil {
		f.Logger.Error("flow token refresh failed", slog.Any("error", err))
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.state = FlowSubscribing
	f.ticker = ticker
	f.cancelSub = cancel
	f.attempt = 0
	f.mu.Unlock()

	go f.runSubscription(subCtx, ticker, onMessage)
}

func (f *FlowLifecycle) runSubscription(ctx context.Context, ticker domain.TickerCode, onMessage func([]byte)) {
	if err := f.Source.Subscribe(ctx, ticker, onMessage); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		f.Logger.Warn("flow subscription failed, reconnecting", slog.Any("error", err))
		f.reconnect(ctx, ticker, onMessage)
		return
	}
	f.mu.Lock()
	f.state = FlowSubscribed
	f.mu.Unlock()
}

// reconnect implements delay = min(base * 2^attempt, 300s) by driving
// Subscribe through backoff.ExponentialBackOff, resetting the attempt
// counter on success.
func (f *FlowLifecycle) reconnect(ctx context.Context, ticker domain.TickerCode, onMessage func([]byte)) {
	f.mu.Lock()
	f.state = FlowReconnecting
	f.mu.Unlock()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.Multiplier = 2
	bo.MaxInterval = 300 * time.Second
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0
	bounded := backoff.WithContext(bo, ctx)

	attempt := 0
	op := func() error {
		attempt++
		f.mu.Lock()
		f.attempt = attempt
		f.mu.Unlock()
		return f.Source.Subscribe(ctx, ticker, onMessage)
	}

	if err := backoff.Retry(op, bounded); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		f.Logger.Error("flow reconnect abandoned", slog.Any("error", err))
		return
	}

	f.mu.Lock()
	f.state = FlowSubscribed
	f.attempt = 0
	f.mu.Unlock()
}

// TearDown cancels any live subscription and returns the lifecycle to Off.
func (f *FlowLifecycle) TearDown(ctx context.Context) {
	f.mu.Lock()
	cancel := f.cancelSub
	ticker := f.ticker
	f.cancelSub = nil
	f.state = FlowOff
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if f.Source != nil && ticker != "" {
		_ = f.Source.Unsubscribe(ctx, ticker)
	}
}
