package invalidate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/cache"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/limits"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	products *cache.MemoryStore[api.ProductsResult]
	stats    *cache.StatisticsStore
	images   *fakeImages
	limits   *limits.Settings
	bus      *Bus
}

type fakeImages struct{ deleted []int64 }

func (f *fakeImages) Delete(t int64) error {
	f.deleted = append(f.deleted, t)
	return nil
}

type failingClearer struct{ calls int }

func (f *failingClearer) Clear() error {
	f.calls++
	return errors.New("disk full")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return now }
	store := kv.NewMemory()
	f := &fixture{
		products: cache.NewMemoryStore[api.ProductsResult](time.Hour, clock),
		stats:    cache.NewStatisticsStore(store, clock),
		images:   &fakeImages{},
		limits:   limits.NewSettings(store),
	}
	f.bus = NewBus(map[cache.Domain]cache.Clearer{
		cache.DomainProduct:    f.products,
		cache.DomainStatistics: f.stats,
	}, f.images, f.limits, nil)
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, f.products.Put(api.ProductsResult{CaloriesLeft: 100}))
	require.NoError(t, f.stats.Put("2024-06-01", api.MacroSummary{TotalCalories: 10}))
}

func (f *fixture) productFreshness() cache.Freshness {
	snap := f.products.Get()
	if snap == nil {
		snap = f.products.GetFallback()
	}
	return cache.Classify(snap, now, time.Hour, 30*time.Minute)
}

func TestEveryMappedDomainIsMissingAfterApply(t *testing.T) {
	for event := range table {
		t.Run(event.String(), func(t *testing.T) {
			f := newFixture(t)
			f.seed(t)

			require.NoError(t, f.bus.Apply(Mutation{Event: event, ItemTime: 42, WeightKg: 70}))

			for _, d := range DomainsFor(event) {
				switch d {
				case cache.DomainProduct:
					assert.Equal(t, cache.Missing, f.productFreshness())
				case cache.DomainStatistics:
					_, ok := f.stats.Get("2024-06-01")
					assert.False(t, ok)
					assert.Empty(t, f.stats.Days())
				}
			}
		})
	}
}

func TestPhotoSubmittedKeepsProducts(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	require.NoError(t, f.bus.Apply(Mutation{Event: PhotoSubmitted}))
	assert.Equal(t, cache.Fresh, f.productFreshness())
	assert.Empty(t, f.stats.Days())
}

func TestFoodDeletedRemovesImage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bus.Apply(Mutation{Event: FoodDeleted, ItemTime: 1717000000}))
	assert.Equal(t, []int64{1717000000}, f.images.deleted)

	require.NoError(t, f.bus.Apply(Mutation{Event: FoodModified, ItemTime: 5}))
	assert.Len(t, f.images.deleted, 1)
}

func TestWeightRecordedRecomputesLimits(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.limits.SetProfile(limits.Profile{HeightCm: 170, WeightKg: 80, Age: 40, Gender: limits.Female, Activity: limits.LightlyActive}))
	before, _ := f.limits.Limits()

	require.NoError(t, f.bus.Apply(Mutation{Event: WeightRecorded, WeightKg: 80.05}))
	same, _ := f.limits.Limits()
	assert.Equal(t, before, same)

	require.NoError(t, f.bus.Apply(Mutation{Event: WeightRecorded, WeightKg: 60}))
	after, _ := f.limits.Limits()
	assert.NotEqual(t, before, after)
}

func TestClearFailureDoesNotStopOtherDomains(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	bad := &failingClearer{}
	bus := NewBus(map[cache.Domain]cache.Clearer{
		cache.DomainStatistics: bad,
		cache.DomainProduct:    f.products,
	}, nil, nil, nil)

	err := bus.Apply(Mutation{Event: FoodModified})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, cache.Missing, f.productFreshness())
}

func TestUnknownEvent(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.bus.Apply(Mutation{Event: Event(99)}))
}
