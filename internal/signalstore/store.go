// Package signalstore implements the L2 per-worker ring buffer of recent
// signals plus a single "latest" slot. Concurrency model: multi-reader /
// single-writer, guarded by a coarse mutex — acceptable per the spec
// because the write rate is seconds-to-minutes, never per-request.
package signalstore

import (
	"sync"

	"github.com/peter0524/service-fabric/internal/domain"
)

// Store holds up to domain.RingCapacity recent signals plus the latest
// one. The zero value is not usable; construct with New.
type Store struct {
	mu       sync.RWMutex
	capacity int
	ring     []domain.Signal // logical order, oldest first
	latest   *domain.Signal
}

// New constructs a Store with the given ring capacity (the spec default
// is 100).
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = domain.RingCapacity
	}
	return &Store{capacity: capacity, ring: make([]domain.Signal, 0, capacity)}
}

// Append records a signal. If the ring is full the oldest entry is
// overwritten. latest is overwritten unconditionally, regardless of
// whether the ring itself needed eviction.
func (s *Store) Append(sig domain.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ring) >= s.capacity {
		s.ring = append(s.ring[1:], sig)
	} else {
		s.ring = append(s.ring, sig)
	}
	latest := sig
	s.latest = &latest
}

// ListRecent returns a snapshot copy in insertion order, most-recent-last.
func (s *Store) ListRecent() []domain.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Signal, len(s.ring))
	copy(out, s.ring)
	return out
}

// LatestOrNone returns the most recently appended signal, if any.
func (s *Store) LatestOrNone() (domain.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return domain.Signal{}, false
	}
	return *s.latest, true
}
