package cache

import (
	"sync"
	"time"

	"github.com/colthorp/eater-cli-go/internal/kv"
)

type persistedSnapshot[T any] struct {
	Payload    T     `json:"payload"`
	CapturedAt int64 `json:"captured_at"`
}

// KVStore keeps a single snapshot in a kv.Store under one key, so it survives
// restarts. Unreadable entries read as absent.
type KVStore[T any] struct {
	mu     sync.Mutex
	kv     kv.Store
	key    string
	maxAge time.Duration
	now    func() time.Time
}

// NewKVStore creates a store persisted under key.
func NewKVStore[T any](store kv.Store, key string, maxAge time.Duration, now func() time.Time) *KVStore[T] {
	if now == nil {
		now = time.Now
	}
	return &KVStore[T]{kv: store, key: key, maxAge: maxAge, now: now}
}

func (s *KVStore[T]) load() *persistedSnapshot[T] {
	var p persistedSnapshot[T]
	if !kv.GetJSON(s.kv, s.key, &p) || p.CapturedAt == 0 {
		return nil
	}
	return &p
}

func (p *persistedSnapshot[T]) snapshot(kind Kind) *Snapshot[T] {
	return &Snapshot[T]{Payload: p.Payload, CapturedAt: time.UnixMilli(p.CapturedAt), Kind: kind}
}

// Get returns the snapshot while it is younger than maxAge.
func (s *KVStore[T]) Get() *Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	if p == nil {
		return nil
	}
	snap := p.snapshot(KindFresh)
	if snap.Age(s.now()) >= s.maxAge {
		return nil
	}
	return snap
}

// GetFallback returns the persisted snapshot marked as a fallback.
func (s *KVStore[T]) GetFallback() *Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	if p == nil {
		return nil
	}
	return p.snapshot(KindFallback)
}

// IsStale reports whether the snapshot is missing or older than maxAge.
func (s *KVStore[T]) IsStale(maxAge time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	return p == nil || p.snapshot(KindFresh).Age(s.now()) > maxAge
}

// Put persists payload as the new snapshot.
func (s *KVStore[T]) Put(payload T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.SetJSON(s.kv, s.key, persistedSnapshot[T]{Payload: payload, CapturedAt: s.now().UnixMilli()})
}

// Clear removes the persisted snapshot.
func (s *KVStore[T]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(s.key)
}
