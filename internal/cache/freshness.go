package cache

import "time"

// Freshness is the classification of a cached snapshot.
type Freshness int

const (
	Missing Freshness = iota
	Fresh
	AgingFresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case AgingFresh:
		return "aging_fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

// Usable reports whether the payload can be displayed without a blocking fetch.
func (f Freshness) Usable() bool {
	return f == Fresh || f == AgingFresh
}

// Policy carries the two freshness thresholds.
type Policy struct {
	FreshnessWindow            time.Duration
	BackgroundRefreshThreshold time.Duration
}

// ClassifyAge classifies a present snapshot by kind and capture time.
func (p Policy) ClassifyAge(kind Kind, capturedAt, now time.Time) Freshness {
	if kind == KindFallback {
		return Stale
	}
	age := now.Sub(capturedAt)
	if age < 0 {
		age = 0
	}
	switch {
	case age >= p.FreshnessWindow:
		return Stale
	case age >= p.BackgroundRefreshThreshold:
		return AgingFresh
	default:
		return Fresh
	}
}

// Classify is a pure function of the snapshot, the clock and the thresholds.
func Classify[T any](snap *Snapshot[T], now time.Time, freshnessWindow, backgroundRefreshThreshold time.Duration) Freshness {
	if snap == nil {
		return Missing
	}
	p := Policy{FreshnessWindow: freshnessWindow, BackgroundRefreshThreshold: backgroundRefreshThreshold}
	return p.ClassifyAge(snap.Kind, snap.CapturedAt, now)
}
