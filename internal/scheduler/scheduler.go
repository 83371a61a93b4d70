// Package scheduler implements the L3 per-service gating function
// shouldExecuteNow and the authoritative interval table from spec §4.3.
package scheduler

import (
	"fmt"
	"time"

	"github.com/peter0524/service-fabric/internal/clock"
	"github.com/peter0524/service-fabric/internal/domain"
)

// IntervalRule describes how one ServiceKind's interval gating behaves
// for a single market phase.
type IntervalRule struct {
	// Interval is the minimum gap since last_execution_at before the
	// worker may run again in this phase. Zero means "never runs in this
	// phase" (n/a).
	Interval time.Duration
	// PeakInterval, if non-zero, overrides Interval during PeakWindows
	// (News: 10 min during peaks vs 60 min otherwise).
	PeakInterval  time.Duration
	PeakWindows   []clock.PeakWindow
	// IdleAfter additionally idles the worker for this long after a run
	// in this phase before the *next* phase-specific interval applies
	// (Chart: 60 min then idle 14h during AfterMarket).
	IdleAfter time.Duration
	// Anchor, if set, additionally requires the wall clock to fall
	// within this window before a run is permitted.
	Anchor *clock.Anchor
	// MinGapSinceLast enforces an additional minimum real-time gap on
	// top of Interval (Report: "at least 6-day gap since last run").
	MinGapSinceLast time.Duration
}

// Table maps a ServiceKind to its per-phase rules. main builds it once
// with DefaultTable; no configuration setting overrides its rules or the
// News peak windows.
type Table map[domain.ServiceKind]map[domain.MarketPhase]IntervalRule

// DefaultTable returns the authoritative interval table from the
// specification's §4.3 table, using clock.DefaultNewsPeakWindows and the
// Flow/Report anchors.
func DefaultTable() Table {
	flowAnchor := clock.FlowAnchor()
	reportAnchor := clock.ReportAnchor()

	return Table{
		domain.ServiceNews: {
			domain.PhaseMarketHours: {Interval: 60 * time.Minute, PeakInterval: 10 * time.Minute, PeakWindows: clock.DefaultNewsPeakWindows()},
			domain.PhasePreMarket:   {Interval: 60 * time.Minute, PeakInterval: 10 * time.Minute, PeakWindows: clock.DefaultNewsPeakWindows()},
			domain.PhaseAfterMarket: {Interval: 60 * time.Minute, PeakInterval: 10 * time.Minute, PeakWindows: clock.DefaultNewsPeakWindows()},
		},
		domain.ServiceDisclosure: {
			domain.PhaseMarketHours: {Interval: 60 * time.Minute},
			domain.PhaseAfterMarket: {Interval: 60 * time.Minute},
			domain.PhaseWeekend:     {Interval: 60 * time.Minute},
			domain.PhasePreMarket:   {Interval: 60 * time.Minute},
		},
		domain.ServiceChart: {
			domain.PhaseMarketHours: {Interval: 5 * time.Minute},
			domain.PhaseAfterMarket: {Interval: 60 * time.Minute, IdleAfter: 14 * time.Hour},
			domain.PhaseWeekend:     {Interval: 24 * time.Hour},
			domain.PhasePreMarket:   {Interval: 60 * time.Minute},
		},
		domain.ServiceFlow: {
			domain.PhaseAfterMarket: {Interval: 24 * time.Hour, Anchor: &flowAnchor},
			domain.PhaseWeekend:     {Interval: 24 * time.Hour, Anchor: &flowAnchor},
		},
		domain.ServiceReport: {
			domain.PhaseWeekend: {Interval: 7 * 24 * time.Hour, Anchor: &reportAnchor, MinGapSinceLast: 6 * 24 * time.Hour},
		},
	}
}

// Decision is the outcome of a single shouldExecuteNow evaluation.
type Decision struct {
	Execute bool
	Reason  string
}

// ShouldExecuteNow implements §4.3's general gating algorithm for one
// ServiceKind given its last execution time (zero value means "never
// run"), the current instant and the configured clock/table.
func ShouldExecuteNow(kind domain.ServiceKind, lastExecutionAt time.Time, now time.Time, c domain.Clock, table Table) Decision {
	phase := c.Phase(now)
	rules, ok := table[kind]
	if !ok {
		return Decision{Execute: false, Reason: "no schedule for service"}
	}
	rule, ok := rules[phase]
	if !ok {
		return Decision{Execute: false, Reason: fmt.Sprintf("not scheduled during %s", phase)}
	}

	// The anchor window gates every run, including the first one: an
	// anchored service (Report, Flow) with a null last-run must still
	// wait for its wall-clock window (spec §8 scenario (d): Report at
	// Sunday 19:59:59 KST with no prior run is "waiting", not "first
	// run", and only fires one second later at the 20:00 anchor).
	if rule.Anchor != nil && !clock.InAnchorWindow(now, *rule.Anchor) {
		return Decision{Execute: false, Reason: "waiting for anchor window"}
	}

	if lastExecutionAt.IsZero() {
		return Decision{Execute: true, Reason: "first run"}
	}

	required := rule.Interval
	if rule.PeakInterval > 0 && clock.InPeakWindow(now, rule.PeakWindows) {
		required = rule.PeakInterval
	}
	if rule.IdleAfter > 0 {
		// "60 min then idle 14h": the first AfterMarket check still
		// gates on Interval (so it fires ~60 min after the last
		// MarketHours run); IdleAfter only takes over once a run has
		// already happened earlier in this same AfterMarket session,
		// identified by the last run also having been in AfterMarket on
		// the same exchange calendar date.
		alreadyRanThisSession := c.Phase(lastExecutionAt) == domain.PhaseAfterMarket && clock.SameKSTDate(lastExecutionAt, now)
		if alreadyRanThisSession {
			required = rule.IdleAfter
		}
	}

	elapsed := now.Sub(lastExecutionAt)
	if elapsed < required {
		return Decision{Execute: false, Reason: fmt.Sprintf("%s until next run", (required - elapsed).Round(time.Second))}
	}

	if rule.MinGapSinceLast > 0 && elapsed < rule.MinGapSinceLast {
		return Decision{Execute: false, Reason: "minimum gap since last run not yet elapsed"}
	}

	return Decision{Execute: true, Reason: "interval elapsed"}
}
