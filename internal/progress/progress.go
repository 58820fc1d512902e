// Package progress implements the shared (current, total, message) signal
// described by the cross-cutting progress contract: a small mutable record
// guarded by a read-write lock rather than a channel, because progress is
// sampled by observers, not streamed to them.
package progress

import "sync"

// Snapshot is an immutable read of a Sink at a point in time.
type Snapshot struct {
	Current int64
	Total   int64
	Message string
}

// Sink is a single-writer, multi-reader progress record. The zero value is
// ready to use. A Sink is safe to pass as nil: every method on a nil *Sink
// is a no-op / zero Snapshot, so a disconnected observer never blocks or
// crashes the producer.
type Sink struct {
	mu      sync.RWMutex
	current int64
	total   int64
	message string
}

// New creates a Sink with an initial total and message.
func New(total int64, message string) *Sink {
	return &Sink{total: total, message: message}
}

// Set overwrites all three fields under a brief write lock.
func (s *Sink) Set(current, total int64, message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.current, s.total, s.message = current, total, message
	s.mu.Unlock()
}

// Advance increments current by delta and updates message, leaving total
// untouched. This is the common case for per-item progress loops.
func (s *Sink) Advance(delta int64, message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.current += delta
	if message != "" {
		s.message = message
	}
	s.mu.Unlock()
}

// SetTotal updates only the total, e.g. once the detector knows how many
// files need hashing.
func (s *Sink) SetTotal(total int64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.total = total
	s.mu.Unlock()
}

// Snapshot takes a read lock and returns the current state.
func (s *Sink) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Current: s.current, Total: s.total, Message: s.message}
}
