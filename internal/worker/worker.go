// Package worker hosts the L3 runtime shared by every ServiceKind: the
// scheduler decision, the user-rebind protocol, analysis invocation,
// signal emission and notification fan-out. Exactly one Worker process
// exists per ServiceKind; the fabric scales by running independent
// worker processes, never by sharding a single one.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/adapter/signalbus"
	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/scheduler"
	"github.com/peter0524/service-fabric/internal/signalstore"
)

// Worker is an explicit value, constructed once in cmd/worker's main and
// never held as a package-level singleton (per the "module-level
// singletons and lazy globals" re-architecture note).
type Worker struct {
	Kind    domain.ServiceKind
	Clock   domain.Clock
	Table   scheduler.Table
	Store   domain.UserConfigStore
	Signals *signalstore.Store
	Analyze domain.AnalysisAdapter
	Notify  domain.NotificationAdapter
	Bus     signalbus.Bus
	Logger  *slog.Logger

	runMu sync.Mutex // serializes pipeline runs; see CheckSchedule

	stateMu         sync.RWMutex
	lastExecutionAt time.Time
	currentUserID   string
	currentCfg      domain.UserConfig
}

// New constructs a Worker. No I/O happens here; background work starts
// only elsewhere in the process (the Flow worker's websocket lifecycle,
// via FlowLifecycle.OnPhaseChange), per the "background tasks spawned
// from constructors" re-architecture note.
func New(kind domain.ServiceKind, clk domain.Clock, table scheduler.Table, store domain.UserConfigStore, analyze domain.AnalysisAdapter, notify domain.NotificationAdapter, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		Kind:          kind,
		Clock:         clk,
		Table:         table,
		Store:         store,
		Signals:       signalstore.New(domain.RingCapacity),
		Analyze:       analyze,
		Notify:        notify,
		Bus:           signalbus.NoopBus{},
		Logger:        logger,
		currentUserID: domain.DefaultUserID,
		currentCfg:    domain.NewDefaultUserConfig(domain.DefaultUserID),
	}
}

// CheckScheduleResult mirrors the POST /check-schedule response body.
type CheckScheduleResult struct {
	Executed bool   `json:"executed"`
	Message  string `json:"message"`
	Details  any    `json:"details,omitempty"`
}

// CheckSchedule evaluates shouldExecuteNow and, if due, runs the
// analysis pipeline to completion for the currently bound user. Two
// overlapping calls that both observe "due" serialize on runMu so that
// only one performs the run; the second blocks, then (since
// lastExecutionAt has since advanced) is very likely to observe
// "not due" once it proceeds — but it still correctly re-evaluates
// rather than assuming so.
func (w *Worker) CheckSchedule(ctx context.Context, now time.Time) CheckScheduleResult {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.stateMu.RLock()
	last := w.lastExecutionAt
	w.stateMu.RUnlock()

	decision := scheduler.ShouldExecuteNow(w.Kind, last, now, w.Clock, w.Table)
	observability.RecordSchedulerDecision(string(w.Kind), decision.Execute)
	if !decision.Execute {
		return CheckScheduleResult{Executed: false, Message: decision.Reason}
	}

	signals, err := w.runPipelineLocked(ctx)
	if err != nil {
		w.Logger.Error("pipeline run failed", slog.String("service", string(w.Kind)), slog.Any("error", err))
		return CheckScheduleResult{Executed: false, Message: "pipeline error: " + err.Error()}
	}

	w.stateMu.Lock()
	w.lastExecutionAt = now
	w.stateMu.Unlock()

	return CheckScheduleResult{Executed: true, Message: decision.Reason, Details: map[string]any{"signals_emitted": len(signals)}}
}

// runPipelineLocked invokes the analysis adapter for the currently bound
// user and fans out every emitted signal: the signal is saved to the
// ring first, then sent on the notification channel second — on send
// failure the signal remains discoverable via GET /signal (per the
// design notes' resolution of the save/send-ordering ambiguity).
func (w *Worker) runPipelineLocked(ctx context.Context) ([]domain.Signal, error) {
	w.stateMu.RLock()
	cfg := w.currentCfg
	w.stateMu.RUnlock()

	signals, err := w.Analyze.Run(ctx, cfg)
	if err != nil {
		return nil, domain.NewAdapterError("analysis", err)
	}

	for _, sig := range signals {
		w.Signals.Append(sig)
		observability.RecordSignalEmitted(string(w.Kind))
		if w.Bus != nil {
			if err := w.Bus.Publish(ctx, w.Kind, sig); err != nil {
				w.Logger.Warn("signal bus publish failed", slog.String("service", string(w.Kind)), slog.Any("error", err))
			}
		}
		if w.Notify == nil {
			continue
		}
		channelID := domain.DefaultUserID
		if cfg.Notify.ChatID != nil {
			channelID = *cfg.Notify.ChatID
		}
		if err := w.Notify.SendText(ctx, channelID, sig.Message); err != nil {
			w.Logger.Warn("notification send failed", slog.String("service", string(w.Kind)), slog.Any("error", err))
		}
	}
	return signals, nil
}

// CurrentConfig returns the UserConfig snapshot the worker is currently
// bound to, for callers (e.g. the Flow lifecycle driver) that need to
// know which tickers to subscribe to without reaching into Worker's
// private state.
func (w *Worker) CurrentConfig() domain.UserConfig {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.currentCfg
}

// Rebind implements the user-rebind protocol: if the worker's bound
// user differs from userID, it loads that user's config and atomically
// swaps the runtime view. In-flight work that already captured the
// prior view (via runPipelineLocked's read of currentCfg) finishes under
// that prior view; there is no tearing because the swap replaces the
// whole struct value under one lock acquisition.
func (w *Worker) Rebind(ctx context.Context, userID string) (domain.UserConfig, error) {
	if userID == "" {
		userID = domain.DefaultUserID
	}

	w.stateMu.RLock()
	same := w.currentUserID == userID
	cfg := w.currentCfg
	w.stateMu.RUnlock()
	if same {
		return cfg, nil
	}

	cfg, err := w.Store.GetUserConfig(ctx, userID)
	if err != nil {
		return domain.UserConfig{}, err
	}

	w.stateMu.Lock()
	w.currentUserID = userID
	w.currentCfg = cfg
	w.stateMu.Unlock()
	return cfg, nil
}

// Execute runs one on-demand pipeline invocation for userID, bypassing
// the schedule gate (POST /api/<service>/execute).
func (w *Worker) Execute(ctx context.Context, userID string) (CheckScheduleResult, error) {
	if _, err := w.Rebind(ctx, userID); err != nil {
		return CheckScheduleResult{}, err
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()

	signals, err := w.runPipelineLocked(ctx)
	if err != nil {
		return CheckScheduleResult{Executed: false, Message: err.Error()}, nil
	}
	w.stateMu.Lock()
	w.lastExecutionAt = time.Now()
	w.stateMu.Unlock()
	return CheckScheduleResult{Executed: true, Message: "executed", Details: map[string]any{"signals_emitted": len(signals)}}, nil
}
