// Package stats loads multi-day macro statistics and alcohol history.
package stats

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/metrics"
)

const resource = "statistics_range"

// Period is a statistics window ending today.
type Period int

const (
	Week        Period = 7
	Month       Period = 30
	TwoMonths   Period = 60
	ThreeMonths Period = 90
)

// Days returns the number of days in the period.
func (p Period) Days() int { return int(p) }

func (p Period) String() string {
	switch p {
	case Week:
		return "week"
	case Month:
		return "month"
	case TwoMonths:
		return "two_months"
	case ThreeMonths:
		return "three_months"
	default:
		return fmt.Sprintf("%dd", int(p))
	}
}

// ParsePeriod accepts week, month, two_months and three_months.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "week", "7":
		return Week, nil
	case "month", "30":
		return Month, nil
	case "two_months", "2months", "60":
		return TwoMonths, nil
	case "three_months", "3months", "90":
		return ThreeMonths, nil
	}
	return 0, fmt.Errorf("unknown statistics period %q", s)
}

// Remote is the part of the backend the loader reads.
type Remote interface {
	FetchStatistics(ctx context.Context, date *time.Time) (api.MacroSummary, error)
	FetchAlcohol(ctx context.Context, r api.DateRange) ([]api.AlcoholEvent, error)
}

// Cache is the per-date statistics cache.
type Cache interface {
	Get(dayKey string) (api.MacroSummary, bool)
	Put(dayKey string, summary api.MacroSummary) error
	MissingDates(dayKeys []string) []string
	ClearExpired() error
}

// Day is one point of a series. Cached is false when the date could not be loaded.
type Day struct {
	DayKey  string           `json:"day"`
	Summary api.MacroSummary `json:"summary"`
	Cached  bool             `json:"cached"`
}

// Series is a period of daily summaries, oldest first.
type Series struct {
	Period  Period
	Days    []Day
	Loading bool
}

// Averages are per-day means over days with data.
type Averages struct {
	DaysWithData int
	Calories     float64
	Proteins     float64
	Fats         float64
	Carbs        float64
	Sugar        float64
	Weight       float64
}

// Averages computes means over days that have data. Weight is averaged
// over days with a recorded weight only.
func (s Series) Averages() Averages {
	var a Averages
	weighed := 0
	for _, d := range s.Days {
		if !d.Cached || !d.Summary.HasData {
			continue
		}
		a.DaysWithData++
		a.Calories += float64(d.Summary.TotalCalories)
		a.Proteins += d.Summary.Proteins
		a.Fats += d.Summary.Fats
		a.Carbs += d.Summary.Carbohydrates
		a.Sugar += d.Summary.Sugar
		if d.Summary.PersonWeight > 0 {
			a.Weight += d.Summary.PersonWeight
			weighed++
		}
	}
	if a.DaysWithData > 0 {
		n := float64(a.DaysWithData)
		a.Calories /= n
		a.Proteins /= n
		a.Fats /= n
		a.Carbs /= n
		a.Sugar /= n
	}
	if weighed > 0 {
		a.Weight /= float64(weighed)
	}
	return a
}

// Loader fills the statistics cache for a period with bounded parallelism.
type Loader struct {
	remote   Remote
	cache    Cache
	parallel int
	now      func() time.Time
	log      *zap.SugaredLogger

	guard *semaphore.Weighted

	mu          sync.Mutex
	lastAlcohol []api.AlcoholEvent
	haveAlcohol bool
}

// NewLoader creates a Loader. parallel <= 0 uses the default.
func NewLoader(remote Remote, cache Cache, parallel int, now func() time.Time, log *zap.SugaredLogger) *Loader {
	if parallel <= 0 {
		parallel = core.DefaultStatsParallel
	}
	if now == nil {
		now = time.Now
	}
	return &Loader{
		remote:   remote,
		cache:    cache,
		parallel: parallel,
		now:      now,
		log:      logger.OrNop(log),
		guard:    semaphore.NewWeighted(1),
	}
}

// Load returns the series for period, fetching dates missing from the
// cache. Dates that fail to load are left out of the cache and skipped.
// A call made while another load runs returns the cached view with
// Loading set.
func (l *Loader) Load(ctx context.Context, period Period) (Series, error) {
	today := core.DayKey(l.now())
	days, err := core.DaysEndingAt(today, period.Days())
	if err != nil {
		return Series{}, err
	}

	if !l.guard.TryAcquire(1) {
		metrics.RecordDroppedFetch(resource)
		s := l.assemble(period, days)
		s.Loading = true
		return s, nil
	}
	defer l.guard.Release(1)

	if err := l.cache.ClearExpired(); err != nil {
		l.log.Warnw("failed to drop expired statistics", "error", err)
	}

	missing := l.cache.MissingDates(days)
	l.log.Debugw("loading statistics", "period", period.String(), "missing", len(missing))

	var g errgroup.Group
	g.SetLimit(l.parallel)
	for _, day := range missing {
		g.Go(func() error {
			l.fetchDay(ctx, day, today)
			return nil
		})
	}
	_ = g.Wait()

	return l.assemble(period, days), nil
}

func (l *Loader) fetchDay(ctx context.Context, day, today string) {
	var date *time.Time
	if day != today {
		t, err := core.ParseDayKey(day)
		if err != nil {
			return
		}
		date = &t
	}
	summary, err := l.remote.FetchStatistics(ctx, date)
	if err != nil {
		metrics.RecordFetch(resource, metrics.ModeBlocking, metrics.OutcomeFailure)
		l.log.Debugw("statistics fetch failed, skipping day", "day", day, "error", err)
		return
	}
	metrics.RecordFetch(resource, metrics.ModeBlocking, metrics.OutcomeSuccess)
	if err := l.cache.Put(day, summary); err != nil {
		l.log.Warnw("failed to cache statistics", "day", day, "error", err)
	}
}

func (l *Loader) assemble(period Period, days []string) Series {
	s := Series{Period: period, Days: make([]Day, 0, len(days))}
	for _, day := range days {
		summary, ok := l.cache.Get(day)
		s.Days = append(s.Days, Day{DayKey: day, Summary: summary, Cached: ok})
	}
	return s
}

// Alcohol returns drink events in r. When the fetch fails it returns the
// last successful result with stale set, or the error if there is none.
func (l *Loader) Alcohol(ctx context.Context, r api.DateRange) (events []api.AlcoholEvent, stale bool, err error) {
	events, err = l.remote.FetchAlcohol(ctx, r)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		metrics.RecordFetch("alcohol", metrics.ModeBlocking, metrics.OutcomeFailure)
		if l.haveAlcohol {
			l.log.Warnw("alcohol fetch failed, showing last result", "error", err)
			return append([]api.AlcoholEvent(nil), l.lastAlcohol...), true, nil
		}
		return nil, false, fmt.Errorf("fetch alcohol events: %w", err)
	}
	metrics.RecordFetch("alcohol", metrics.ModeBlocking, metrics.OutcomeSuccess)
	l.lastAlcohol = append([]api.AlcoholEvent(nil), events...)
	l.haveAlcohol = true
	return events, false, nil
}
