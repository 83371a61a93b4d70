// Package breaker implements the gateway's per-service circuit breaker.
//
// It is adapted from the teacher's own circuit breaker (which allows an
// unbounded number of concurrent probes while half-open) to the fabric's
// stricter contract: HalfOpen admits exactly one in-flight probe. Every
// other caller observing HalfOpen before that probe resolves is refused
// exactly as if the breaker were still Open.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

// State is one of Closed, Open or HalfOpen.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is safe for concurrent use by many callers of a single backend.
type Breaker struct {
	mu sync.Mutex

	failMax        int
	resetTimeout   time.Duration

	state          State
	failCount      int
	lastFailureAt  time.Time
	probeInFlight  bool

	totalRequests  int64
	totalFailures  int64
	stateChanges   int64
}

// New constructs a Breaker with the given failure threshold and Open→HalfOpen
// reset timeout.
func New(failMax int, resetTimeout time.Duration) *Breaker {
	if failMax <= 0 {
		failMax = 1
	}
	return &Breaker{failMax: failMax, resetTimeout: resetTimeout, state: Closed}
}

// Allow reports whether a call may proceed. When it transitions Open to
// HalfOpen it admits exactly the caller making this call as the single
// probe; every other concurrent caller is refused until that probe
// reports success or failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureAt) < b.resetTimeout {
			return false
		}
		b.state = HalfOpen
		b.probeInFlight = true
		b.stateChanges++
		slog.Info("circuit breaker admitting probe", slog.Duration("reset_timeout", b.resetTimeout))
		return true
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call. In HalfOpen this closes the
// breaker and resets all counters.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if b.state == HalfOpen {
		b.state = Closed
		b.stateChanges++
		slog.Info("circuit breaker closed after successful probe")
	}
	b.failCount = 0
	b.probeInFlight = false
}

// RecordFailure reports a failed call. In Closed it increments the
// failure count, opening the breaker once failMax consecutive failures
// have been observed. In HalfOpen, any failure reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	b.totalFailures++
	b.lastFailureAt = time.Now()
	b.probeInFlight = false

	switch b.state {
	case Closed:
		b.failCount++
		if b.failCount >= b.failMax {
			b.state = Open
			b.stateChanges++
			slog.Warn("circuit breaker opened", slog.Int("fail_count", b.failCount), slog.Int("fail_max", b.failMax))
		}
	case HalfOpen:
		b.state = Open
		b.stateChanges++
		slog.Warn("circuit breaker reopened after failed probe")
	}
}

// GetState returns the current state.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to Closed, clearing the consecutive
// failure count, the half-open probe flag and the last failure time. The
// cumulative request, failure and state-change totals are kept. Used by
// the administrative resetBreaker operation.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failCount = 0
	b.probeInFlight = false
	b.lastFailureAt = time.Time{}
}

// Stats returns a snapshot suitable for the /circuit-breaker/status route.
func (b *Breaker) Stats() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]any{
		"state":          b.state.String(),
		"fail_max":       b.failMax,
		"reset_timeout":  b.resetTimeout.String(),
		"fail_count":     b.failCount,
		"total_requests": b.totalRequests,
		"total_failures": b.totalFailures,
		"state_changes":  b.stateChanges,
	}
}
