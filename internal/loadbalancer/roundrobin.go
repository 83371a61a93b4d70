// Package loadbalancer implements the gateway's per-ServiceKind instance
// selection policy.
package loadbalancer

import "sync/atomic"

// RoundRobin picks successive instances from a candidate list using a
// monotonic per-kind counter modulo the candidate count. Tie-breaks are
// deterministic because the counter only ever increases.
type RoundRobin struct {
	counter atomic.Uint64
}

// New constructs a RoundRobin balancer.
func New() *RoundRobin { return &RoundRobin{} }

// Next returns the chosen element of candidates. Callers pass the
// currently healthy-or-degraded subset; candidates must be non-empty.
func (r *RoundRobin) Next(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	n := r.counter.Add(1) - 1
	return candidates[int(n%uint64(len(candidates)))]
}
