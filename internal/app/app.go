// Package app wires the sync core together and exposes the user-facing
// operations: each mutation goes to the backend first and, only on success,
// invalidates the affected caches and refreshes today's view.
package app

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/cache"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/dayboundary"
	"github.com/colthorp/eater-cli-go/internal/fetch"
	"github.com/colthorp/eater-cli-go/internal/invalidate"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/ledger"
	"github.com/colthorp/eater-cli-go/internal/limits"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/stats"
)

const (
	keyProductsSnapshot = "productsSnapshot"
	keyAPIBaseURL       = "apiBaseURL"
)

// Options configures New. Remote and Store are required.
type Options struct {
	Config    core.Config
	Remote    api.RemoteFoodService
	Store     kv.Store
	Images    *cache.ImageStore
	Presenter fetch.Presenter
	Now       func() time.Time
	Log       *zap.SugaredLogger
}

// App holds every component of the sync core.
type App struct {
	cfg    core.Config
	now    func() time.Time
	log    *zap.SugaredLogger
	closer io.Closer

	Remote     *Endpoint
	Store      kv.Store
	Products   *cache.KVStore[api.ProductsResult]
	Statistics *cache.StatisticsStore
	Images     *cache.ImageStore
	Limits     *limits.Settings
	Sport      *ledger.DailyCounterLedger
	Chess      *ledger.ChessLedger
	Extras     *Extras
	Reminders  *Reminders
	Fetch      *fetch.Coordinator
	Bus        *invalidate.Bus
	Days       *dayboundary.Reconciler
	Stats      *stats.Loader
}

// New builds an App from already opened collaborators.
func New(opts Options) *App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := logger.OrNop(opts.Log)
	cfg := opts.Config

	a := &App{
		cfg:    cfg,
		now:    opts.Now,
		log:    log,
		Remote: NewEndpoint(opts.Remote),
		Store:  opts.Store,
		Images: opts.Images,
	}
	a.Products = cache.NewKVStore[api.ProductsResult](opts.Store, keyProductsSnapshot, cfg.FreshnessWindow, opts.Now)
	a.Statistics = cache.NewStatisticsStore(opts.Store, opts.Now)
	a.Limits = limits.NewSettings(opts.Store)
	a.Sport = ledger.NewDailyCounterLedger(opts.Store)
	a.Chess = ledger.NewChessLedger(opts.Store, a.Remote, cfg.UserEmail, cfg.EndpointSwitchDelay, log.Named(logger.ComponentLedger))
	a.Extras = NewExtras(opts.Store)
	a.Reminders = NewReminders(opts.Store, opts.Now, log.Named(logger.ComponentNotify))

	domains := map[cache.Domain]cache.Clearer{
		cache.DomainProduct:    a.Products,
		cache.DomainStatistics: a.Statistics,
	}
	var images invalidate.ImageDeleter
	var mover fetch.ImageMover
	if a.Images != nil {
		domains[cache.DomainImage] = a.Images
		images, mover = a.Images, a.Images
	}
	a.Bus = invalidate.NewBus(domains, images, a.Limits, log.Named(logger.ComponentInvalidate))

	a.Fetch = fetch.New(fetch.Options{
		Remote:     a.Remote,
		Products:   a.Products,
		Statistics: a.Statistics,
		Images:     mover,
		Limits:     a.Limits,
		Policy: cache.Policy{
			FreshnessWindow:            cfg.FreshnessWindow,
			BackgroundRefreshThreshold: cfg.BackgroundRefreshThreshold,
		},
		Presenter: opts.Presenter,
		Now:       opts.Now,
		Log:       log.Named(logger.ComponentFetch),
	})

	a.Days = dayboundary.New(dayboundary.Options{
		Store:     opts.Store,
		Counter:   a.Sport,
		Caches:    a.Bus,
		Refresher: a.Fetch,
		Notifier:  a.Reminders,
		Interval:  cfg.DayPollInterval,
		Now:       opts.Now,
		Log:       log.Named(logger.ComponentDayBoundary),
	})

	a.Stats = stats.NewLoader(a.Remote, a.Statistics, cfg.StatsParallel, opts.Now, log.Named(logger.ComponentStats))
	return a
}

// Open opens the SQLite state and image directory under cfg.DataDir and
// connects to the backend over HTTP. A base URL saved with SaveEndpoint
// takes precedence over cfg.APIURL.
func Open(cfg core.Config, presenter fetch.Presenter, log *zap.SugaredLogger) (*App, error) {
	store, err := kv.OpenSQLite(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	baseURL := cfg.APIURL
	if saved := kv.GetString(store, keyAPIBaseURL); saved != "" {
		baseURL = saved
	}
	remote := api.NewHTTPService(baseURL, cfg.APIToken, logger.OrNop(log).Named(logger.ComponentAPI))

	a := New(Options{
		Config:    cfg,
		Remote:    remote,
		Store:     store,
		Images:    cache.NewImageStore(cfg.ImagesDir()),
		Presenter: presenter,
		Log:       log,
	})
	a.closer = store
	return a, nil
}

// Today is the current UTC day key.
func (a *App) Today() string {
	return core.DayKey(a.now())
}

// User is the identity sent with user-scoped mutations.
func (a *App) User() string {
	return a.cfg.UserEmail
}

// Wait drains background refreshes and remote chess writes.
func (a *App) Wait() {
	a.Fetch.Wait()
	a.Chess.Wait()
}

// Close waits for background work and closes the state store.
func (a *App) Close() error {
	a.Wait()
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// ClearCaches drops every cache domain. Settings and ledgers are kept.
func (a *App) ClearCaches() error {
	return a.Bus.ClearDomains(cache.DomainProduct, cache.DomainStatistics, cache.DomainImage)
}
