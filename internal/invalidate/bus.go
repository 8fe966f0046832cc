// Package invalidate maps each successful mutation to the cache domains it
// makes stale and clears them.
package invalidate

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/colthorp/eater-cli-go/internal/cache"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/metrics"
)

// Event is a mutation the backend confirmed.
type Event int

const (
	FoodDeleted Event = iota
	FoodModified
	WeightRecorded
	PhotoSubmitted
	ExtraAdded
	SharedSuccessfully
)

var eventNames = map[Event]string{
	FoodDeleted:        "food_deleted",
	FoodModified:       "food_modified",
	WeightRecorded:     "weight_recorded",
	PhotoSubmitted:     "photo_submitted",
	ExtraAdded:         "extra_added",
	SharedSuccessfully: "shared_successfully",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// PhotoSubmitted leaves the product cache alone: the photo pipeline has
// already written it.
var table = map[Event][]cache.Domain{
	FoodDeleted:        {cache.DomainStatistics, cache.DomainProduct},
	FoodModified:       {cache.DomainStatistics, cache.DomainProduct},
	WeightRecorded:     {cache.DomainStatistics, cache.DomainProduct},
	PhotoSubmitted:     {cache.DomainStatistics},
	ExtraAdded:         {cache.DomainStatistics, cache.DomainProduct},
	SharedSuccessfully: {cache.DomainStatistics, cache.DomainProduct},
}

// DomainsFor returns the domains cleared for e.
func DomainsFor(e Event) []cache.Domain {
	return append([]cache.Domain(nil), table[e]...)
}

// Mutation is an event plus the data its extra effect needs.
type Mutation struct {
	Event Event
	// ItemTime keys the image deleted on FoodDeleted.
	ItemTime int64
	// WeightKg is the weight sent on WeightRecorded.
	WeightKg float64
}

// ImageDeleter removes a stored food photo.
type ImageDeleter interface {
	Delete(t int64) error
}

// WeightSink recomputes limits when the weight moved enough and auto-limits are on.
type WeightSink interface {
	ApplyWeight(weightKg float64) (bool, error)
}

// Bus clears cache domains. Clears are independent: a failing clear does
// not stop the next one, and a crash between two clears heals on the next
// fetch.
type Bus struct {
	domains map[cache.Domain]cache.Clearer
	images  ImageDeleter
	limits  WeightSink
	log     *zap.SugaredLogger
}

// NewBus creates a bus over domains. images and limits may be nil.
func NewBus(domains map[cache.Domain]cache.Clearer, images ImageDeleter, limits WeightSink, log *zap.SugaredLogger) *Bus {
	return &Bus{domains: domains, images: images, limits: limits, log: logger.OrNop(log)}
}

// Apply clears the domains mapped to m.Event and runs its extra effect.
func (b *Bus) Apply(m Mutation) error {
	domains, ok := table[m.Event]
	if !ok {
		return fmt.Errorf("unknown invalidation event %s", m.Event)
	}
	metrics.RecordInvalidation(m.Event.String())
	b.log.Debugw("applying invalidation", "event", m.Event.String(), "domains", domains)

	errs := []error{b.ClearDomains(domains...)}

	switch m.Event {
	case FoodDeleted:
		if b.images != nil {
			if err := b.images.Delete(m.ItemTime); err != nil {
				errs = append(errs, fmt.Errorf("delete image %d: %w", m.ItemTime, err))
			}
		}
	case WeightRecorded:
		if b.limits != nil {
			recomputed, err := b.limits.ApplyWeight(m.WeightKg)
			if err != nil {
				errs = append(errs, fmt.Errorf("recompute limits: %w", err))
			} else if recomputed {
				b.log.Infow("calorie limits recomputed", "weight", m.WeightKg)
			}
		}
	}
	return errors.Join(errs...)
}

// ClearDomains clears each domain in turn and joins the failures.
func (b *Bus) ClearDomains(domains ...cache.Domain) error {
	var errs []error
	for _, d := range domains {
		c, ok := b.domains[d]
		if !ok || c == nil {
			continue
		}
		if err := c.Clear(); err != nil {
			b.log.Warnw("failed to clear cache domain", "domain", string(d), "error", err)
			errs = append(errs, fmt.Errorf("clear %s: %w", d, err))
		}
	}
	return errors.Join(errs...)
}
