// Package core provides shared constants, configuration and UTC day helpers
// for the eater sync core.
package core

import (
	"os"
	"path/filepath"
	"time"
)

// Date formats
const (
	// DayKeyFmt is the canonical UTC day key used by ledgers and caches.
	DayKeyFmt = "2006-01-02"
	// StatsDateFmt is the date format the statistics backend expects.
	StatsDateFmt = "02-01-2006"
)

// Freshness defaults. FreshnessWindow and BackgroundRefreshThreshold are
// deliberately separate knobs; collapsing them removes the silent refresh.
const (
	DefaultFreshnessWindow            = 4 * time.Hour
	DefaultBackgroundRefreshThreshold = 30 * time.Minute
)

// Statistics cache expiry per date.
const (
	StatsTodayExpiry = 4 * time.Hour
	StatsPastExpiry  = 7 * 24 * time.Hour
)

// Day boundary and endpoint switching.
const (
	DefaultDayPollInterval     = 5 * time.Minute
	DefaultEndpointSwitchDelay = 500 * time.Millisecond
)

// WeightDeltaThreshold is the smallest weight change (kg) that triggers a
// recomputation of automatic calorie limits.
const WeightDeltaThreshold = 0.1

// Statistics loader parallelism
const (
	DefaultStatsParallel = 3
	FriendsPageSize      = 20
)

// DataRoot returns the default directory for local state.
func DataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".eater")
}

// Version is the current CLI version.
const Version = "0.3.0"
