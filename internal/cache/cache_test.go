package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/kv"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	window, bg := 4*time.Hour, 30*time.Minute
	snap := func(age time.Duration, kind Kind) *Snapshot[int] {
		return &Snapshot[int]{Payload: 1, CapturedAt: t0.Add(-age), Kind: kind}
	}

	tests := []struct {
		name string
		snap *Snapshot[int]
		want Freshness
	}{
		{"missing", nil, Missing},
		{"just captured", snap(0, KindFresh), Fresh},
		{"under threshold", snap(29*time.Minute, KindFresh), Fresh},
		{"at threshold", snap(30*time.Minute, KindFresh), AgingFresh},
		{"aging", snap(45*time.Minute, KindFresh), AgingFresh},
		{"at window", snap(4*time.Hour, KindFresh), Stale},
		{"fallback is never current", snap(time.Minute, KindFallback), Stale},
		{"captured in the future", snap(-time.Hour, KindFresh), Fresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.snap, t0, window, bg))
		})
	}
}

func TestClassifyEqualThresholds(t *testing.T) {
	snap := &Snapshot[int]{CapturedAt: t0.Add(-10 * time.Minute)}
	assert.Equal(t, Fresh, Classify(snap, t0, 30*time.Minute, 30*time.Minute))
}

func TestMemoryStoreGetHonoursMaxAge(t *testing.T) {
	clock := &fakeClock{t: t0}
	s := NewMemoryStore[[]string](time.Hour, clock.Now)

	assert.Nil(t, s.Get())
	assert.Nil(t, s.GetFallback())
	assert.True(t, s.IsStale(time.Minute))

	require.NoError(t, s.Put([]string{"soup"}))
	got := s.Get()
	require.NotNil(t, got)
	assert.Equal(t, KindFresh, got.Kind)
	assert.Equal(t, []string{"soup"}, got.Payload)

	clock.Advance(2 * time.Hour)
	assert.Nil(t, s.Get())
	fb := s.GetFallback()
	require.NotNil(t, fb)
	assert.Equal(t, KindFallback, fb.Kind)
	assert.Equal(t, 2*time.Hour, fb.Age(clock.Now()))
	assert.True(t, s.IsStale(time.Hour))

	require.NoError(t, s.Clear())
	assert.Nil(t, s.GetFallback())
}

func TestMemoryStoreIsolatesPayload(t *testing.T) {
	s := NewMemoryStore[[]string](time.Hour, nil)
	in := []string{"a", "b"}
	require.NoError(t, s.Put(in))
	in[0] = "mutated"

	out := s.Get().Payload
	assert.Equal(t, "a", out[0])
	out[1] = "mutated"
	assert.Equal(t, "b", s.Get().Payload[1])
}

func TestKVStorePersistsAcrossInstances(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := kv.NewMemory()

	a := NewKVStore[api.ProductsResult](store, "products", time.Hour, clock.Now)
	require.NoError(t, a.Put(api.ProductsResult{CaloriesLeft: 900, PersonWeight: 70.2}))

	b := NewKVStore[api.ProductsResult](store, "products", time.Hour, clock.Now)
	got := b.Get()
	require.NotNil(t, got)
	assert.Equal(t, 900, got.Payload.CaloriesLeft)
	assert.Equal(t, t0.UnixMilli(), got.CapturedAt.UnixMilli())

	require.NoError(t, b.Clear())
	assert.Nil(t, a.Get())
	assert.Nil(t, a.GetFallback())
}

func TestKVStoreMalformedReadsAsAbsent(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set("products", []byte("{not json")))
	s := NewKVStore[api.ProductsResult](store, "products", time.Hour, nil)
	assert.Nil(t, s.Get())
	assert.Nil(t, s.GetFallback())
	assert.True(t, s.IsStale(time.Hour))
}

func TestImageStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	s := NewImageStore(root)

	require.NoError(t, s.Save(100, []byte("jpeg")))
	assert.True(t, s.Exists(100))
	data, err := s.Load(100)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	require.NoError(t, s.SaveTemporary(5, []byte("tmp")))
	require.NoError(t, s.MoveTemporary(5, 200))
	assert.True(t, s.Exists(200))
	_, err = os.Stat(filepath.Join(root, "temp_5.jpg"))
	assert.True(t, os.IsNotExist(err))
	assert.Error(t, s.MoveTemporary(5, 300))

	require.NoError(t, s.Delete(100))
	require.NoError(t, s.Delete(100))
	assert.False(t, s.Exists(100))

	require.NoError(t, s.Clear())
	assert.False(t, s.Exists(200))
}

func TestImageStoreClearMissingRoot(t *testing.T) {
	s := NewImageStore(filepath.Join(t.TempDir(), "never-created"))
	assert.NoError(t, s.Clear())
}

func TestStatisticsStoreExpiry(t *testing.T) {
	clock := &fakeClock{t: t0}
	s := NewStatisticsStore(kv.NewMemory(), clock.Now)

	require.NoError(t, s.Put("2024-06-01", api.MacroSummary{TotalCalories: 1500, HasData: true}))
	require.NoError(t, s.Put("2024-05-20", api.MacroSummary{TotalCalories: 1800, HasData: true}))

	got, ok := s.Get("2024-06-01")
	require.True(t, ok)
	assert.Equal(t, 1500, got.TotalCalories)

	clock.Advance(5 * time.Hour)
	_, ok = s.Get("2024-06-01")
	assert.False(t, ok, "today's entry expires after 4h")
	_, ok = s.Get("2024-05-20")
	assert.True(t, ok, "past entries last 7 days")

	missing := s.MissingDates([]string{"2024-05-19", "2024-05-20", "2024-06-01"})
	assert.Equal(t, []string{"2024-05-19", "2024-06-01"}, missing)

	require.NoError(t, s.ClearExpired())
	assert.Equal(t, []string{"2024-05-20"}, s.Days())

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Days())
}
