package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/cache"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/ledger"
	"github.com/colthorp/eater-cli-go/internal/limits"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return t0 }

func testConfig() core.Config {
	return core.Config{
		UserEmail:                  "me@example.com",
		FreshnessWindow:            4 * time.Hour,
		BackgroundRefreshThreshold: 30 * time.Minute,
		DayPollInterval:            time.Minute,
		EndpointSwitchDelay:        time.Millisecond,
		StatsParallel:              2,
	}
}

func newTestApp(t *testing.T) (*App, *api.InMemoryService) {
	t.Helper()
	svc := api.NewInMemoryService()
	svc.Now = fixedNow
	svc.SeedProducts("2024-06-01", api.ProductsResult{
		Products: []api.Product{
			{Time: 1000, Name: "apple", Calories: 80, Weight: 150},
			{Time: 2000, Name: "pasta", Calories: 600, Weight: 300},
		},
		CaloriesLeft: 1220,
		PersonWeight: 70,
	})
	a := New(Options{
		Config: testConfig(),
		Remote: svc,
		Store:  kv.NewMemory(),
		Images: cache.NewImageStore(t.TempDir()),
		Now:    fixedNow,
		Log:    zaptest.NewLogger(t).Sugar(),
	})
	t.Cleanup(a.Wait)
	return a, svc
}

func productNames(v []api.Product) []string {
	names := make([]string, 0, len(v))
	for _, p := range v {
		names = append(names, p.Name)
	}
	return names
}

func TestDeleteFoodInvalidatesAndRefreshes(t *testing.T) {
	a, svc := newTestApp(t)
	ctx := context.Background()
	a.Fetch.LoadInitial(ctx)
	require.NoError(t, a.Images.Save(1000, []byte("img")))
	require.NoError(t, a.Extras.Add(1000, "lemon_5g"))
	fetchesBefore := svc.RequestsMade(api.MethodFetchProducts)

	v, err := a.DeleteFood(ctx, 1000)
	require.NoError(t, err)
	require.NotNil(t, v.Products)
	assert.Equal(t, []string{"pasta"}, productNames(v.Products.Products))
	assert.Equal(t, fetchesBefore+1, svc.RequestsMade(api.MethodFetchProducts))
	assert.False(t, a.Images.Exists(1000))
	assert.Empty(t, a.Extras.For(1000))
}

func TestFailedMutationTouchesNothing(t *testing.T) {
	a, svc := newTestApp(t)
	ctx := context.Background()
	a.Fetch.LoadInitial(ctx)
	require.NoError(t, a.Statistics.Put("2024-06-01", api.MacroSummary{TotalCalories: 680}))
	fetchesBefore := svc.RequestsMade(api.MethodFetchProducts)

	svc.FailWith(api.MethodDeleteFood, api.ErrRejected)
	_, err := a.DeleteFood(ctx, 1000)
	require.ErrorIs(t, err, api.ErrRejected)

	assert.NotNil(t, a.Products.Get())
	_, ok := a.Statistics.Get("2024-06-01")
	assert.True(t, ok)
	assert.Equal(t, fetchesBefore, svc.RequestsMade(api.MethodFetchProducts))
}

func TestModifyFoodValidatesPercentage(t *testing.T) {
	a, svc := newTestApp(t)
	_, err := a.ModifyFood(context.Background(), 1000, 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	assert.Zero(t, svc.RequestsMade(api.MethodModifyFoodRecord))

	v, err := a.ModifyFood(context.Background(), 2000, 50)
	require.NoError(t, err)
	require.NotNil(t, v.Products)
	assert.Equal(t, 1, svc.RequestsMade(api.MethodModifyFoodRecord))
}

func TestRecordWeightRecomputesLimits(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.Limits.SetProfile(limits.Profile{HeightCm: 180, WeightKg: 70, Age: 30, Gender: limits.Male, Activity: limits.Sedentary}))
	before, _ := a.Limits.Limits()

	_, err := a.RecordWeight(context.Background(), 90)
	require.NoError(t, err)
	after, _ := a.Limits.Limits()
	assert.NotEqual(t, before, after)

	_, err = a.RecordWeight(context.Background(), -1)
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestPhotoSubmittedMapsImageToNewestProduct(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.Reminders.SetEnabled(true))

	v := a.PhotoSubmitted(context.Background(), 5, []byte("jpeg"))
	require.NotNil(t, v.Products)
	assert.True(t, a.Images.Exists(2000))
	assert.False(t, a.Images.Exists(1000))

	for _, r := range a.Reminders.Pending() {
		assert.NotEqual(t, "2024-06-01", core.DayKey(r.At))
	}
}

func TestExtrasDecorateProducts(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.AddExtra(ctx, 2000, "honey_10g")
	require.NoError(t, err)
	_, err = a.AddExtra(ctx, 2000, "honey_10g")
	require.NoError(t, err)
	v, err := a.AddSugar(ctx, 2000, 2)
	require.NoError(t, err)

	decorated := a.Decorate(v)
	require.Len(t, decorated, 2)
	var pasta DecoratedProduct
	for _, d := range decorated {
		if d.Time == 2000 {
			pasta = d
		}
	}
	assert.Equal(t, 60, pasta.ExtrasCalories)
	assert.Equal(t, 660, pasta.TotalCalories())
	assert.Equal(t, 2, pasta.AddedSugarTsp)
	assert.Equal(t, map[string]int{"honey_10g": 2}, pasta.Extras)

	_, err = a.AddExtra(ctx, 2000, "ketchup")
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestSportBonusRaisesSoftLimit(t *testing.T) {
	a, _ := newTestApp(t)
	kcal, err := a.AddActivity(ledger.Treadmill, 300)
	require.NoError(t, err)
	assert.Equal(t, 300, kcal)

	kcal, err = a.AddActivity(ledger.Elliptical, 120)
	require.NoError(t, err)
	assert.Equal(t, 120, kcal)

	soft, hard, bonus, err := a.EffectiveLimits()
	require.NoError(t, err)
	assert.Equal(t, 120, bonus)
	assert.Equal(t, limits.DefaultSoftLimit+120, soft)
	assert.Equal(t, limits.DefaultHardLimit, hard)

	require.NoError(t, a.ResetSport())
	bonus, err = a.SportBonus()
	require.NoError(t, err)
	assert.Zero(t, bonus)
}

func TestRecordChessUsesSelectedOpponent(t *testing.T) {
	a, svc := newTestApp(t)
	require.NoError(t, a.Chess.SelectOpponent("Rook", "rook@example.com"))

	res, err := a.RecordChess(context.Background(), ledger.Win, "")
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	a.Wait()
	assert.Equal(t, 1, svc.RequestsMade(api.MethodRecordChessGame))
	assert.Equal(t, ledger.Score{Wins: 1}, a.Chess.State().PerOpponent["rook@example.com"])

	require.NoError(t, a.RollbackChess())
	assert.Zero(t, a.Chess.State().TotalWins)
}

func TestSwitchEndpointResyncsFromNewBackend(t *testing.T) {
	a, old := newTestApp(t)
	ctx := context.Background()
	_, err := a.RecordChess(ctx, ledger.Win, "old@example.com")
	require.NoError(t, err)
	a.Wait()

	next := api.NewInMemoryService()
	next.Now = fixedNow
	next.SeedProducts("2024-06-01", api.ProductsResult{Products: []api.Product{{Time: 3000, Name: "soup"}}})
	next.SeedChess(api.ChessData{TotalWins: 12, Opponents: map[string]string{"new@example.com": "12:3"}})

	v, err := a.SwitchEndpoint(ctx, next)
	require.NoError(t, err)
	require.NotNil(t, v.Products)
	assert.Equal(t, []string{"soup"}, productNames(v.Products.Products))
	a.Wait()

	state := a.Chess.State()
	assert.Equal(t, 12, state.TotalWins)
	assert.Equal(t, ledger.Score{Wins: 12, Losses: 3}, state.PerOpponent["new@example.com"])
	_, stale := state.PerOpponent["old@example.com"]
	assert.False(t, stale)
	assert.Equal(t, 0, old.RequestsMade(api.MethodGetAllChessData))
}

func TestSaveEndpointRejectsEmpty(t *testing.T) {
	a, _ := newTestApp(t)
	assert.ErrorIs(t, a.SaveEndpoint("  "), ledger.ErrInvalidInput)
	require.NoError(t, a.SaveEndpoint("https://eater.example.com/"))
	assert.Equal(t, "https://eater.example.com", kv.GetString(a.Store, keyAPIBaseURL))
}

func TestFriends(t *testing.T) {
	a, svc := newTestApp(t)
	svc.SeedFriends(api.Friend{Email: "a@example.com"}, api.Friend{Email: "b@example.com"})
	friends, err := a.Friends(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, friends, 2)

	svc.FailWith(api.MethodGetFriends, errors.New("offline"))
	_, err = a.Friends(context.Background(), 0)
	assert.Error(t, err)
}

func TestRemindersPlanAndCancel(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow, nil)
	r.HandleDayChangeIfNeeded()
	assert.Empty(t, r.Pending())

	require.NoError(t, r.SetEnabled(true))
	// noon has passed today, so only lunch and dinner remain
	assert.Len(t, r.Pending(), 2+reminderDaysAhead*len(reminderSlots))

	require.NoError(t, r.RecordFoodSnap())
	assert.Len(t, r.Pending(), reminderDaysAhead*len(reminderSlots))

	r.HandleDayChangeIfNeeded()
	pending := r.Pending()
	assert.Len(t, pending, reminderDaysAhead*len(reminderSlots))
	assert.Equal(t, "eater_breakfast_20240602", pending[0].ID)

	require.NoError(t, r.SetEnabled(false))
	assert.False(t, r.Enabled())
}
