// Package analysis implements the default domain.AnalysisAdapter: the
// connective pipeline every worker process runs on each scheduled or
// on-demand execution. The concrete analysis algorithms (news NLP,
// chart indicators, flow detection) are explicitly out of scope (spec
// §1's opaque-collaborator list); what this package owns is the
// fan-out shared by every ServiceKind — fetch history for each watched
// ticker, ask the user's chosen LLM vendor for a verdict, and turn that
// into zero or more Signals — grounded on original_source's per-service
// main loops, which all follow exactly this fetch → analyze → signal
// shape regardless of domain.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/peter0524/service-fabric/internal/adapter/llm"
	"github.com/peter0524/service-fabric/internal/domain"
)

// Pipeline is the default AnalysisAdapter, parameterized by the
// ServiceKind it runs under. One Pipeline value is constructed per
// worker process in cmd/worker's main.
type Pipeline struct {
	Kind       domain.ServiceKind
	DataSource domain.DataSourceAdapter
	LLM        *llm.Manager
	Lookback   time.Duration
	Logger     *slog.Logger
}

// New constructs a Pipeline. lookback is how far back FetchHistory is
// asked to look (e.g. 24h for chart, longer for report); logger
// defaults to slog.Default() when nil.
func New(kind domain.ServiceKind, ds domain.DataSourceAdapter, mgr *llm.Manager, lookback time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Kind: kind, DataSource: ds, LLM: mgr, Lookback: lookback, Logger: logger}
}

// Run implements domain.AnalysisAdapter. A failure analyzing one ticker
// is logged and skipped; it never aborts the remaining tickers (spec
// §3's PatternSignal/FlowRecord opacity note and the AnalysisAdapter
// contract in ports.go both require this).
func (p *Pipeline) Run(ctx context.Context, cfg domain.UserConfig) ([]domain.Signal, error) {
	if len(cfg.WatchedTickers) == 0 {
		return nil, nil
	}

	now := time.Now()
	signals := make([]domain.Signal, 0, len(cfg.WatchedTickers))
	for _, ticker := range cfg.WatchedTickers {
		sig, err := p.runOne(ctx, cfg, ticker, now)
		if err != nil {
			p.Logger.Warn("analysis failed for ticker",
				slog.String("service", string(p.Kind)),
				slog.String("ticker", string(ticker)),
				slog.Any("error", err))
			continue
		}
		if sig != nil {
			signals = append(signals, *sig)
		}
	}
	return signals, nil
}

func (p *Pipeline) runOne(ctx context.Context, cfg domain.UserConfig, ticker domain.TickerCode, now time.Time) (*domain.Signal, error) {
	var bars []domain.Bar
	if p.DataSource != nil {
		var err error
		bars, err = p.DataSource.FetchHistory(ctx, ticker, now.Add(-p.Lookback), now)
		if err != nil {
			return nil, domain.NewAdapterError("datasource", err)
		}
	}
	if len(bars) == 0 {
		return nil, nil
	}

	if p.LLM == nil {
		return nil, nil
	}
	prompt := p.buildPrompt(ticker, bars, cfg.Thresholds)
	verdict, err := p.LLM.Generate(ctx, cfg.LLMChoice, prompt, map[string]any{"temperature": 0.2})
	if err != nil {
		return nil, err
	}
	if verdict == "" {
		return nil, nil
	}

	return &domain.Signal{
		StockCode: string(ticker),
		EmittedAt: now,
		Kind:      p.Kind,
		Message:   verdict,
		Payload:   map[string]any{"bars_considered": len(bars)},
	}, nil
}

func (p *Pipeline) buildPrompt(ticker domain.TickerCode, bars []domain.Bar, th domain.ThresholdSet) string {
	last := bars[len(bars)-1]
	return fmt.Sprintf(
		"Service %s is evaluating ticker %s with %d recent bars (last close %.2f at %s). "+
			"Apply thresholds similarity=%.2f impact=%.2f relevance=%.2f. "+
			"Respond with a concise signal message, or an empty response if nothing crosses threshold.",
		p.Kind, ticker, len(bars), last.Close, last.Timestamp.Format(time.RFC3339),
		th.Similarity, th.Impact, th.Relevance,
	)
}
