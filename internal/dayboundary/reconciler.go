// Package dayboundary detects UTC day changes and resets day-scoped state.
package dayboundary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/colthorp/eater-cli-go/internal/cache"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/fetch"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/metrics"
)

const keyLastObservedDay = "lastObservedDay"

// States and events of the reconciler machine.
const (
	StateIdle        = "idle"
	StateReconciling = "reconciling"

	EventDayChanged = "day_changed"
	EventReconciled = "reconciled"
)

// CounterResetter zeroes a day-scoped counter.
type CounterResetter interface {
	Reset(today string) error
}

// DomainClearer clears cache domains.
type DomainClearer interface {
	ClearDomains(domains ...cache.Domain) error
}

// Refresher is the viewing context and its forced refresh.
type Refresher interface {
	ViewingToday() bool
	ForceRefresh(ctx context.Context) fetch.View
}

// Rescheduler re-plans local notifications after a day change.
type Rescheduler interface {
	HandleDayChangeIfNeeded()
}

// Options wires a Reconciler. Store is required.
type Options struct {
	Store     kv.Store
	Counter   CounterResetter
	Caches    DomainClearer
	Refresher Refresher
	Notifier  Rescheduler
	Interval  time.Duration
	Now       func() time.Time
	Log       *zap.SugaredLogger
}

// Reconciler polls the UTC day. Checks are serialized; a check that finds
// the day unchanged does nothing.
type Reconciler struct {
	opts Options
	log  *zap.SugaredLogger

	mu      sync.Mutex
	machine *fsm.FSM
}

// New creates a Reconciler in the idle state.
func New(opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = core.DefaultDayPollInterval
	}
	r := &Reconciler{opts: opts, log: logger.OrNop(opts.Log)}
	r.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventDayChanged, Src: []string{StateIdle}, Dst: StateReconciling},
			{Name: EventReconciled, Src: []string{StateReconciling}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				r.log.Debugw("day boundary state change", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return r
}

// State returns the current machine state.
func (r *Reconciler) State() string {
	return r.machine.Current()
}

// LastObservedDay returns the persisted day key, or "" before the first check.
func (r *Reconciler) LastObservedDay() string {
	return kv.GetString(r.opts.Store, keyLastObservedDay)
}

// Check compares the current UTC day with the last observed one and
// reconciles on change. It reports whether a change was handled.
func (r *Reconciler) Check(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := core.DayKey(r.opts.Now())
	last := r.LastObservedDay()
	if last == today {
		return false, nil
	}
	if err := kv.SetString(r.opts.Store, keyLastObservedDay, today); err != nil {
		return false, fmt.Errorf("persist observed day: %w", err)
	}
	if last == "" {
		r.log.Debugw("first day observation", "day", today)
		return false, nil
	}

	if err := r.machine.Event(ctx, EventDayChanged); err != nil {
		return false, fmt.Errorf("enter reconciling: %w", err)
	}
	err := r.reconcile(ctx, last, today)
	if ferr := r.machine.Event(ctx, EventReconciled); ferr != nil {
		err = errors.Join(err, fmt.Errorf("leave reconciling: %w", ferr))
	}
	return true, err
}

func (r *Reconciler) reconcile(ctx context.Context, from, to string) error {
	r.log.Infow("day changed", "from", from, "to", to)
	metrics.RecordDayChange()

	var errs []error
	if r.opts.Counter != nil {
		if err := r.opts.Counter.Reset(to); err != nil {
			errs = append(errs, fmt.Errorf("reset daily counter: %w", err))
		}
	}
	if r.opts.Refresher != nil && r.opts.Refresher.ViewingToday() {
		if r.opts.Caches != nil {
			if err := r.opts.Caches.ClearDomains(cache.DomainStatistics, cache.DomainProduct); err != nil {
				errs = append(errs, err)
			}
		}
		r.opts.Refresher.ForceRefresh(ctx)
	}
	if r.opts.Notifier != nil {
		r.opts.Notifier.HandleDayChangeIfNeeded()
	}
	return errors.Join(errs...)
}

// Run checks once immediately and then on every interval tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Check(ctx); err != nil {
			r.log.Warnw("day boundary check failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
