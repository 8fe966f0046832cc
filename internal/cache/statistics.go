package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/kv"
)

// statisticsKey is the kv key holding the whole per-day map.
const statisticsKey = "statistics_cache"

type cachedStatistics struct {
	Summary  api.MacroSummary `json:"summary"`
	CachedAt int64            `json:"cached_at"`
}

// StatisticsStore caches macro summaries per day. Today's entry expires after
// StatsTodayExpiry, past days after StatsPastExpiry.
type StatisticsStore struct {
	mu  sync.Mutex
	kv  kv.Store
	now func() time.Time
}

// NewStatisticsStore creates a store persisted in store.
func NewStatisticsStore(store kv.Store, now func() time.Time) *StatisticsStore {
	if now == nil {
		now = time.Now
	}
	return &StatisticsStore{kv: store, now: now}
}

func (s *StatisticsStore) load() map[string]cachedStatistics {
	m := make(map[string]cachedStatistics)
	if !kv.GetJSON(s.kv, statisticsKey, &m) {
		return make(map[string]cachedStatistics)
	}
	return m
}

func (s *StatisticsStore) save(m map[string]cachedStatistics) error {
	return kv.SetJSON(s.kv, statisticsKey, m)
}

func (s *StatisticsStore) expired(dayKey string, e cachedStatistics, now time.Time) bool {
	expiry := core.StatsPastExpiry
	if dayKey == core.DayKey(now) {
		expiry = core.StatsTodayExpiry
	}
	return now.Sub(time.UnixMilli(e.CachedAt)) > expiry
}

// Get returns the cached summary for dayKey unless missing or expired.
func (s *StatisticsStore) Get(dayKey string) (api.MacroSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.load()[dayKey]
	if !ok || s.expired(dayKey, e, s.now()) {
		return api.MacroSummary{}, false
	}
	return e.Summary, true
}

// Put caches summary for dayKey.
func (s *StatisticsStore) Put(dayKey string, summary api.MacroSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.load()
	m[dayKey] = cachedStatistics{Summary: summary, CachedAt: s.now().UnixMilli()}
	return s.save(m)
}

// MissingDates returns the day keys that are absent or expired, in input order.
func (s *StatisticsStore) MissingDates(dayKeys []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.load()
	now := s.now()
	missing := make([]string, 0)
	for _, d := range dayKeys {
		e, ok := m[d]
		if !ok || s.expired(d, e, now) {
			missing = append(missing, d)
		}
	}
	return missing
}

// ClearExpired drops expired entries.
func (s *StatisticsStore) ClearExpired() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.load()
	now := s.now()
	for d, e := range m {
		if s.expired(d, e, now) {
			delete(m, d)
		}
	}
	return s.save(m)
}

// Days returns the cached day keys, sorted.
func (s *StatisticsStore) Days() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.load()
	days := make([]string, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Clear drops every cached summary.
func (s *StatisticsStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(statisticsKey)
}
