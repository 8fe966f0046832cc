// Package metrics exposes prometheus counters for the sync core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "eater"
	subsystem = "sync"
)

// Fetch modes and outcomes used as label values.
const (
	ModeBlocking   = "blocking"
	ModeBackground = "background"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	fetchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_total",
			Help:      "Remote fetches issued, by resource class, mode and outcome",
		},
		[]string{"resource", "mode", "outcome"},
	)

	droppedFetchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_dropped_total",
			Help:      "Fetch requests dropped because one was already in flight",
		},
		[]string{"resource"},
	)

	cacheHitCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_classifications_total",
			Help:      "Snapshot freshness classifications at load time",
		},
		[]string{"freshness"},
	)

	invalidationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalidations_total",
			Help:      "Cache invalidations, by event",
		},
		[]string{"event"},
	)

	dayChangeCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "day_changes_total",
			Help:      "Detected UTC day changes",
		},
	)

	chessGameCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chess_games_total",
			Help:      "Chess games recorded locally, by outcome and remote sync result",
		},
		[]string{"outcome", "remote"},
	)
)

// RecordFetch counts one remote fetch.
func RecordFetch(resource, mode, outcome string) {
	fetchCounter.WithLabelValues(resource, mode, outcome).Inc()
}

// RecordDroppedFetch counts a fetch request that hit the single-flight guard.
func RecordDroppedFetch(resource string) {
	droppedFetchCounter.WithLabelValues(resource).Inc()
}

// RecordClassification counts a freshness classification.
func RecordClassification(freshness string) {
	cacheHitCounter.WithLabelValues(freshness).Inc()
}

// RecordInvalidation counts an applied invalidation event.
func RecordInvalidation(event string) {
	invalidationCounter.WithLabelValues(event).Inc()
}

// RecordDayChange counts a detected day change.
func RecordDayChange() {
	dayChangeCounter.Inc()
}

// RecordChessGame counts a recorded chess game and how its remote write ended.
func RecordChessGame(outcome, remote string) {
	chessGameCounter.WithLabelValues(outcome, remote).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
