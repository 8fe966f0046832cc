// Package cache holds the local snapshot stores the sync core reads before it
// goes to the network.
//
// # Snapshots
//
// Every store keeps at most one Snapshot per key. A snapshot is replaced
// wholesale on each successful fetch and is never merged. Get returns the
// snapshot only while it is younger than the store's max age; GetFallback
// returns whatever was last stored, marked as KindFallback, so the caller can
// show it while a refresh runs.
//
// # Freshness
//
// Classify turns a snapshot and two thresholds into one of Missing, Fresh,
// AgingFresh or Stale:
//
//   - Missing: no snapshot at all
//   - Stale: a fallback snapshot, or age >= freshness window
//   - AgingFresh: usable, but age >= background refresh threshold
//   - Fresh: everything else
//
// The two thresholds are separate settings. Collapsing them removes the
// AgingFresh band and with it the silent background refresh.
//
// # Domains
//
// Invalidation works on domains (Product, Statistics, Image). Each domain is
// backed by something that can Clear itself.
package cache

import "time"

// Kind tags how a snapshot may be used.
type Kind int

const (
	// KindFresh snapshots may drive "is data current" decisions.
	KindFresh Kind = iota
	// KindFallback snapshots are for display only.
	KindFallback
)

func (k Kind) String() string {
	if k == KindFallback {
		return "fallback"
	}
	return "fresh"
}

// Snapshot is one cached payload and the time it was captured.
type Snapshot[T any] struct {
	Payload    T
	CapturedAt time.Time
	Kind       Kind
}

// Age returns how old the snapshot is at now. Snapshots captured in the
// future have age zero.
func (s *Snapshot[T]) Age(now time.Time) time.Duration {
	age := now.Sub(s.CapturedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Store is the contract of a single-snapshot local store.
type Store[T any] interface {
	// Get returns the snapshot if it is younger than the store's max age.
	Get() *Snapshot[T]
	// GetFallback returns the last stored snapshot regardless of age.
	GetFallback() *Snapshot[T]
	// IsStale reports whether there is no snapshot or it is older than maxAge.
	IsStale(maxAge time.Duration) bool
	// Put replaces the snapshot with payload captured now.
	Put(payload T) error
	// Clear drops the snapshot.
	Clear() error
}

// Domain names a group of caches cleared together.
type Domain string

const (
	DomainProduct    Domain = "product"
	DomainStatistics Domain = "statistics"
	DomainImage      Domain = "image"
)

// Clearer is anything a domain can be cleared through.
type Clearer interface {
	Clear() error
}
