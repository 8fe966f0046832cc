package fetch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/cache"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/metrics"
)

// Remote is the slice of the backend the coordinator reads from.
type Remote interface {
	FetchProducts(ctx context.Context, date api.DateSelector) (api.ProductsResult, error)
	FetchStatistics(ctx context.Context, date *time.Time) (api.MacroSummary, error)
}

// StatsCache stores macro summaries per day.
type StatsCache interface {
	Get(dayKey string) (api.MacroSummary, bool)
	Put(dayKey string, summary api.MacroSummary) error
}

// WeightSink receives the weight of every successful fetch. It recomputes
// limits when the change is large enough and auto-limits are on.
type WeightSink interface {
	ApplyWeight(weightKg float64) (bool, error)
}

// ImageMover re-keys a temporary photo to its product's time.
type ImageMover interface {
	MoveTemporary(tempTime, finalTime int64) error
}

// Options wires a Coordinator. Remote and Products are required.
type Options struct {
	Remote     Remote
	Products   cache.Store[api.ProductsResult]
	Statistics StatsCache
	Images     ImageMover
	Limits     WeightSink
	Policy     cache.Policy
	Presenter  Presenter
	Now        func() time.Time
	Log        *zap.SugaredLogger
}

// Coordinator owns the fetch state of each resource class and the viewing
// context (today or a historical date).
type Coordinator struct {
	remote    Remote
	products  cache.Store[api.ProductsResult]
	stats     StatsCache
	images    ImageMover
	limits    WeightSink
	policy    cache.Policy
	presenter Presenter
	now       func() time.Time
	log       *zap.SugaredLogger

	guards map[Resource]*semaphore.Weighted

	mu        sync.Mutex
	viewDate  *time.Time
	tempImage *int64

	background sync.WaitGroup
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.Policy.FreshnessWindow == 0 {
		opts.Policy.FreshnessWindow = core.DefaultFreshnessWindow
	}
	if opts.Policy.BackgroundRefreshThreshold == 0 {
		opts.Policy.BackgroundRefreshThreshold = core.DefaultBackgroundRefreshThreshold
	}
	return &Coordinator{
		remote:    opts.Remote,
		products:  opts.Products,
		stats:     opts.Statistics,
		images:    opts.Images,
		limits:    opts.Limits,
		policy:    opts.Policy,
		presenter: opts.Presenter,
		now:       opts.Now,
		log:       logger.OrNop(opts.Log),
		guards: map[Resource]*semaphore.Weighted{
			ResourceProducts:   semaphore.NewWeighted(1),
			ResourceStatistics: semaphore.NewWeighted(1),
		},
	}
}

// ViewToday switches the viewing context back to today.
func (c *Coordinator) ViewToday() {
	c.mu.Lock()
	c.viewDate = nil
	c.mu.Unlock()
}

// ViewDate switches the viewing context to date. Today's date is the same as ViewToday.
func (c *Coordinator) ViewDate(date time.Time) {
	d := core.DateOnly(date)
	c.mu.Lock()
	defer c.mu.Unlock()
	if core.DayKey(d) == core.DayKey(c.now()) {
		c.viewDate = nil
		return
	}
	c.viewDate = &d
}

// ViewingToday reports whether today is being viewed.
func (c *Coordinator) ViewingToday() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewDate == nil
}

// ViewedDay returns the day key being viewed.
func (c *Coordinator) ViewedDay() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewedDayLocked()
}

func (c *Coordinator) viewedDayLocked() string {
	if c.viewDate != nil {
		return core.DayKey(*c.viewDate)
	}
	return core.DayKey(c.now())
}

// ExpectPhoto marks a temporary image that the next successful fetch of
// today's products should re-key to the newest product.
func (c *Coordinator) ExpectPhoto(tempTime int64) {
	c.mu.Lock()
	c.tempImage = &tempTime
	c.mu.Unlock()
}

// Wait blocks until background refreshes have finished.
func (c *Coordinator) Wait() {
	c.background.Wait()
}

func (c *Coordinator) historicalDate() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewDate == nil {
		return nil
	}
	d := *c.viewDate
	return &d
}

// currentSnapshot returns the primary snapshot, or the fallback when the
// primary has aged out.
func (c *Coordinator) currentSnapshot() *cache.Snapshot[api.ProductsResult] {
	if snap := c.products.Get(); snap != nil {
		return snap
	}
	return c.products.GetFallback()
}

func (c *Coordinator) present(v View) View {
	c.presenter.Present(v)
	return v
}

func (c *Coordinator) viewOf(payload *api.ProductsResult, f cache.Freshness) View {
	c.mu.Lock()
	day := c.viewedDayLocked()
	today := c.viewDate == nil
	c.mu.Unlock()

	v := View{DayKey: day, Today: today, Products: payload, Freshness: f}
	if c.stats != nil {
		if m, ok := c.stats.Get(day); ok {
			v.Macros = &m
		}
	}
	return v
}

// LoadInitial shows cached data according to its freshness and refreshes
// as needed.
func (c *Coordinator) LoadInitial(ctx context.Context) View {
	if date := c.historicalDate(); date != nil {
		return c.loadHistorical(ctx, *date)
	}

	snap := c.currentSnapshot()
	f := cache.Classify(snap, c.now(), c.policy.FreshnessWindow, c.policy.BackgroundRefreshThreshold)
	metrics.RecordClassification(f.String())

	switch f {
	case cache.Fresh:
		return c.present(c.viewOf(&snap.Payload, f))
	case cache.AgingFresh:
		v := c.viewOf(&snap.Payload, f)
		v.Refreshing = c.startBackground(ctx)
		return c.present(v)
	default:
		guard := c.guards[ResourceProducts]
		if !guard.TryAcquire(1) {
			metrics.RecordDroppedFetch(string(ResourceProducts))
			return c.loadingView(snap, f)
		}
		defer guard.Release(1)
		c.present(c.loadingView(snap, f))
		return c.blockingFetch(ctx, snap)
	}
}

// ForceRefresh clears the product cache and runs a blocking fetch. It is a
// no-op while a products fetch is in flight.
func (c *Coordinator) ForceRefresh(ctx context.Context) View {
	guard := c.guards[ResourceProducts]
	if !guard.TryAcquire(1) {
		metrics.RecordDroppedFetch(string(ResourceProducts))
		c.log.Debugw("force refresh dropped, products fetch in flight")
		return c.inFlightView()
	}
	defer guard.Release(1)

	if date := c.historicalDate(); date != nil {
		return c.fetchHistorical(ctx, *date)
	}

	prev := c.products.GetFallback()
	if err := c.products.Clear(); err != nil {
		c.log.Warnw("failed to clear product cache", "error", err)
	}
	c.present(c.loadingView(nil, cache.Missing))
	return c.blockingFetch(ctx, prev)
}

// RefreshSilently is the background-sync variant of ForceRefresh: data that
// is already visible stays on screen without a loading state.
func (c *Coordinator) RefreshSilently(ctx context.Context) View {
	guard := c.guards[ResourceProducts]
	if !guard.TryAcquire(1) {
		metrics.RecordDroppedFetch(string(ResourceProducts))
		return c.inFlightView()
	}
	defer guard.Release(1)

	if date := c.historicalDate(); date != nil {
		return c.fetchHistorical(ctx, *date)
	}

	visible := c.currentSnapshot()
	if err := c.products.Clear(); err != nil {
		c.log.Warnw("failed to clear product cache", "error", err)
	}
	if visible != nil {
		c.present(c.viewOf(&visible.Payload, cache.Stale))
	} else {
		c.present(c.loadingView(nil, cache.Missing))
	}

	res, err := c.fetchToday(ctx, metrics.ModeBackground)
	if err != nil {
		if visible != nil {
			return c.present(c.viewOf(&visible.Payload, cache.Stale))
		}
		return c.present(c.viewOf(nil, cache.Missing))
	}
	return c.present(c.viewOf(&res, cache.Fresh))
}

// inFlightView describes the screen while another caller's fetch runs. It
// is returned to dropped callers and not presented.
func (c *Coordinator) inFlightView() View {
	if c.historicalDate() != nil {
		return c.loadingView(nil, cache.Missing)
	}
	snap := c.currentSnapshot()
	f := cache.Classify(snap, c.now(), c.policy.FreshnessWindow, c.policy.BackgroundRefreshThreshold)
	if f.Usable() {
		v := c.viewOf(&snap.Payload, f)
		v.Refreshing = true
		return v
	}
	return c.loadingView(snap, f)
}

func (c *Coordinator) loadingView(snap *cache.Snapshot[api.ProductsResult], f cache.Freshness) View {
	if snap != nil {
		v := c.viewOf(&snap.Payload, f)
		v.Loading = true
		return v
	}
	v := c.viewOf(nil, f)
	v.Blocking = true
	return v
}

// blockingFetch runs with the products guard held. On failure it falls
// back to fallback, or to an empty view.
func (c *Coordinator) blockingFetch(ctx context.Context, fallback *cache.Snapshot[api.ProductsResult]) View {
	res, err := c.fetchToday(ctx, metrics.ModeBlocking)
	if err != nil {
		if fallback != nil {
			return c.present(c.viewOf(&fallback.Payload, cache.Stale))
		}
		return c.present(c.viewOf(nil, cache.Missing))
	}
	return c.present(c.viewOf(&res, cache.Fresh))
}

// startBackground starts a non-blocking refresh if the products guard is free.
func (c *Coordinator) startBackground(ctx context.Context) bool {
	guard := c.guards[ResourceProducts]
	if !guard.TryAcquire(1) {
		metrics.RecordDroppedFetch(string(ResourceProducts))
		return false
	}
	bg := context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer guard.Release(1)
		res, err := c.fetchToday(bg, metrics.ModeBackground)
		if err != nil {
			return
		}
		c.present(c.viewOf(&res, cache.Fresh))
	}()
	return true
}

// fetchToday fetches today's products and stores them. Callers hold the
// products guard. Only today's payload feeds the weight and limits.
func (c *Coordinator) fetchToday(ctx context.Context, mode string) (api.ProductsResult, error) {
	res, err := c.remote.FetchProducts(ctx, api.Today())
	if err != nil {
		metrics.RecordFetch(string(ResourceProducts), mode, metrics.OutcomeFailure)
		c.log.Warnw("products fetch failed, keeping cached data", "mode", mode, "error", err)
		return api.ProductsResult{}, err
	}
	metrics.RecordFetch(string(ResourceProducts), mode, metrics.OutcomeSuccess)

	c.mapTemporaryImage(res.Products)
	if err := c.products.Put(res); err != nil {
		c.log.Warnw("failed to store products", "error", err)
	}
	c.onFetched(ctx, res)
	return res, nil
}

func (c *Coordinator) mapTemporaryImage(products []api.Product) {
	c.mu.Lock()
	temp := c.tempImage
	c.tempImage = nil
	c.mu.Unlock()

	if temp == nil || c.images == nil || len(products) == 0 {
		return
	}
	newest := products[0]
	for _, p := range products[1:] {
		if p.Time > newest.Time {
			newest = p
		}
	}
	if err := c.images.MoveTemporary(*temp, newest.Time); err != nil {
		c.log.Warnw("failed to map temporary image", "temp", *temp, "product_time", newest.Time, "error", err)
	}
}

// onFetched runs after every successful products fetch: limits first, then
// the macro summary of the viewed day.
func (c *Coordinator) onFetched(ctx context.Context, res api.ProductsResult) {
	if c.limits != nil {
		recomputed, err := c.limits.ApplyWeight(res.PersonWeight)
		if err != nil {
			c.log.Warnw("failed to recompute limits", "weight", res.PersonWeight, "error", err)
		} else if recomputed {
			c.log.Infow("calorie limits recomputed from new weight", "weight", res.PersonWeight)
		}
	}
	c.RefreshMacros(ctx)
}

// RefreshMacros fetches the macro summary for the viewed day into the
// statistics cache. It is dropped while a statistics fetch is in flight.
func (c *Coordinator) RefreshMacros(ctx context.Context) {
	if c.stats == nil {
		return
	}
	guard := c.guards[ResourceStatistics]
	if !guard.TryAcquire(1) {
		metrics.RecordDroppedFetch(string(ResourceStatistics))
		return
	}
	defer guard.Release(1)

	c.mu.Lock()
	day := c.viewedDayLocked()
	var date *time.Time
	if c.viewDate != nil {
		d := *c.viewDate
		date = &d
	}
	c.mu.Unlock()

	summary, err := c.remote.FetchStatistics(ctx, date)
	if err != nil {
		metrics.RecordFetch(string(ResourceStatistics), metrics.ModeBlocking, metrics.OutcomeFailure)
		c.log.Warnw("macro summary fetch failed", "day", day, "error", err)
		return
	}
	metrics.RecordFetch(string(ResourceStatistics), metrics.ModeBlocking, metrics.OutcomeSuccess)
	if err := c.stats.Put(day, summary); err != nil {
		c.log.Warnw("failed to cache macro summary", "day", day, "error", err)
	}
}

func (c *Coordinator) loadHistorical(ctx context.Context, date time.Time) View {
	guard := c.guards[ResourceProducts]
	if !guard.TryAcquire(1) {
		metrics.RecordDroppedFetch(string(ResourceProducts))
		return c.loadingView(nil, cache.Missing)
	}
	defer guard.Release(1)
	return c.fetchHistorical(ctx, date)
}

// fetchHistorical always goes to the network; past days are not written to
// the product cache. Callers hold the products guard.
func (c *Coordinator) fetchHistorical(ctx context.Context, date time.Time) View {
	c.present(c.loadingView(nil, cache.Missing))

	res, err := c.remote.FetchProducts(ctx, api.Historical(date))
	if err != nil {
		metrics.RecordFetch(string(ResourceProducts), metrics.ModeBlocking, metrics.OutcomeFailure)
		c.log.Warnw("historical products fetch failed", "day", core.DayKey(date), "error", err)
		return c.present(c.viewOf(nil, cache.Missing))
	}
	metrics.RecordFetch(string(ResourceProducts), metrics.ModeBlocking, metrics.OutcomeSuccess)
	c.RefreshMacros(ctx)
	return c.present(c.viewOf(&res, cache.Fresh))
}
