// Package fetch coordinates cache-first display of the daily products with
// background, blocking and forced refreshes.
//
// At most one fetch per resource class runs at a time. A request that finds
// its class busy is dropped: it is neither queued nor reported as an error.
package fetch

import (
	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/cache"
)

// Resource is a class of remote data guarded by one single-flight slot.
type Resource string

const (
	ResourceProducts   Resource = "products"
	ResourceStatistics Resource = "statistics"
)

// View is what the presenter is asked to show.
type View struct {
	// DayKey is the UTC day being viewed.
	DayKey string
	// Today is false when a historical date is viewed.
	Today bool
	// Products is nil when there is nothing to show.
	Products *api.ProductsResult
	// Macros is the cached macro summary for DayKey, if any.
	Macros    *api.MacroSummary
	Freshness cache.Freshness
	// Loading shows a loading affordance over visible data.
	Loading bool
	// Blocking is a full loading state with no data behind it.
	Blocking bool
	// Refreshing is set when a background refresh was started.
	Refreshing bool
}

// NoData reports whether the view has nothing to display.
func (v View) NoData() bool {
	return v.Products == nil && !v.Blocking
}

// Presenter receives every view the coordinator produces.
type Presenter interface {
	Present(View)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(View)

// Present calls f(v).
func (f PresenterFunc) Present(v View) { f(v) }

type nopPresenter struct{}

func (nopPresenter) Present(View) {}
