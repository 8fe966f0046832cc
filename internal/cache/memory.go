package cache

import (
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// MemoryStore is an in-memory Store. Payloads are deep-copied on the way in
// and out so callers never share state with the store.
type MemoryStore[T any] struct {
	mu     sync.RWMutex
	entry  *Snapshot[T]
	maxAge time.Duration
	now    func() time.Time
}

// NewMemoryStore creates a store whose Get honours maxAge. A nil clock uses time.Now.
func NewMemoryStore[T any](maxAge time.Duration, now func() time.Time) *MemoryStore[T] {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore[T]{maxAge: maxAge, now: now}
}

func (s *MemoryStore[T]) copyOf(kind Kind) *Snapshot[T] {
	if s.entry == nil {
		return nil
	}
	out := &Snapshot[T]{CapturedAt: s.entry.CapturedAt, Kind: kind}
	if err := deepcopy.Copy(&out.Payload, &s.entry.Payload); err != nil {
		out.Payload = s.entry.Payload
	}
	return out
}

// Get returns the snapshot while it is younger than maxAge.
func (s *MemoryStore[T]) Get() *Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil || s.entry.Age(s.now()) >= s.maxAge {
		return nil
	}
	return s.copyOf(s.entry.Kind)
}

// GetFallback returns the last snapshot marked as a fallback.
func (s *MemoryStore[T]) GetFallback() *Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(KindFallback)
}

// IsStale reports whether the snapshot is missing or older than maxAge.
func (s *MemoryStore[T]) IsStale(maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry == nil || s.entry.Age(s.now()) > maxAge
}

// Put replaces the snapshot.
func (s *MemoryStore[T]) Put(payload T) error {
	snap := &Snapshot[T]{CapturedAt: s.now(), Kind: KindFresh}
	if err := deepcopy.Copy(&snap.Payload, &payload); err != nil {
		return err
	}
	s.mu.Lock()
	s.entry = snap
	s.mu.Unlock()
	return nil
}

// Clear drops the snapshot.
func (s *MemoryStore[T]) Clear() error {
	s.mu.Lock()
	s.entry = nil
	s.mu.Unlock()
	return nil
}

// Seed installs a snapshot with an explicit capture time (for testing).
func (s *MemoryStore[T]) Seed(payload T, capturedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = &Snapshot[T]{Payload: payload, CapturedAt: capturedAt, Kind: KindFresh}
}
