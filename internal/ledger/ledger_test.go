package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/kv"
)

const (
	day1 = "2024-06-01"
	day2 = "2024-06-02"
)

func TestDailyCounterResetsOnNewDay(t *testing.T) {
	store := kv.NewMemory()
	l := NewDailyCounterLedger(store)

	require.NoError(t, l.Write(250, day1))
	v, err := l.Read(day1)
	require.NoError(t, err)
	assert.Equal(t, 250, v)

	v, err = l.Read(day2)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, DailyCounter{DayKey: day2}, NewDailyCounterLedger(store).Snapshot())
}

func TestDailyCounterWriteReplaces(t *testing.T) {
	l := NewDailyCounterLedger(kv.NewMemory())
	require.NoError(t, l.Write(100, day1))
	require.NoError(t, l.Write(40, day1))
	v, err := l.Read(day1)
	require.NoError(t, err)
	assert.Equal(t, 40, v)
}

func TestDailyCounterRejectsNonPositive(t *testing.T) {
	l := NewDailyCounterLedger(kv.NewMemory())
	require.NoError(t, l.Write(80, day1))
	assert.ErrorIs(t, l.Write(0, day1), ErrInvalidInput)
	assert.ErrorIs(t, l.Write(-5, day1), ErrInvalidInput)
	v, _ := l.Read(day1)
	assert.Equal(t, 80, v)

	require.NoError(t, l.Reset(day1))
	v, _ = l.Read(day1)
	assert.Equal(t, 0, v)
}

func TestDailyCounterMalformedReadsAsZero(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(keySportCalories, []byte("garbage")))
	v, err := NewDailyCounterLedger(store).Read(day1)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestActivityCalories(t *testing.T) {
	tests := []struct {
		kind   ActivityKind
		value  int
		weight float64
		want   int
	}{
		{Gym, 60, 80, 400},
		{Gym, 30, 0, 175},
		{Steps, 10000, 70, 400},
		{Steps, 10000, 0, 400},
		{Steps, 5000, 140, 400},
		{Treadmill, 220, 90, 220},
		{Elliptical, 150, 90, 150},
	}
	for _, tt := range tests {
		got, err := ActivityCalories(tt.kind, tt.value, tt.weight)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %d", tt.kind, tt.value)
	}

	_, err := ActivityCalories(Gym, 0, 70)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseActivityKind("yoga")
	assert.ErrorIs(t, err, ErrInvalidInput)
	k, err := ParseActivityKind(" Steps ")
	require.NoError(t, err)
	assert.Equal(t, Steps, k)
}

func TestLeagueTier(t *testing.T) {
	cases := map[int]Tier{0: TierNone, 1: Tier1, 5: Tier1, 6: Tier2, 10: Tier2, 11: Tier3, 20: Tier3, 21: Tier4, 30: Tier4, 31: Tier5, 50: Tier5, 51: Tier6, 500: Tier6}
	for wins, want := range cases {
		assert.Equal(t, want, LeagueTier(wins), "wins=%d", wins)
	}
	assert.Equal(t, "Bronze", LeagueTier(6).String())

	prev := LeagueTier(0)
	for w := 1; w <= 100; w++ {
		cur := LeagueTier(w)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}

	assert.Equal(t, 1, WinsToNextTier(0))
	assert.Equal(t, 1, WinsToNextTier(5))
	assert.Equal(t, 0, WinsToNextTier(51))
}

func newChess(t *testing.T, remote ChessRemote) *ChessLedger {
	t.Helper()
	return NewChessLedger(kv.NewMemory(), remote, "me@example.com", time.Millisecond, zaptest.NewLogger(t).Sugar())
}

func TestRecordGameCountsAndPromotes(t *testing.T) {
	l := newChess(t, nil)
	ctx := context.Background()

	res, err := l.RecordGame(ctx, Win, "bob", day1)
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	assert.Equal(t, Tier1, res.Tier)

	res, err = l.RecordGame(ctx, Loss, "bob", day1)
	require.NoError(t, err)
	assert.False(t, res.Promoted)

	res, err = l.RecordGame(ctx, Draw, "ann", day1)
	require.NoError(t, err)
	assert.False(t, res.Promoted)

	s := l.State()
	assert.Equal(t, 1, s.TotalWins)
	assert.Equal(t, Score{Wins: 1, Losses: 1}, s.PerOpponent["bob"])
	assert.Equal(t, Score{}, s.PerOpponent["ann"])
	assert.True(t, l.PlayedToday(day1))
	assert.False(t, l.PlayedToday(day2))

	_, err = l.RecordGame(ctx, Win, "", day1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPromotionOnlyOnTierChange(t *testing.T) {
	l := newChess(t, nil)
	require.NoError(t, l.SyncFromRemote(5, map[string]Score{"bob": {Wins: 5}}))

	res, err := l.RecordGame(context.Background(), Win, "bob", day1)
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	assert.Equal(t, Tier2, res.Tier)

	res, err = l.RecordGame(context.Background(), Win, "bob", day1)
	require.NoError(t, err)
	assert.False(t, res.Promoted)
}

func TestRollbackRestoresStartOfDay(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 20; run++ {
		l := newChess(t, nil)
		ctx := context.Background()

		// history from a previous day
		history := rng.Intn(5)
		for i := 0; i < history; i++ {
			_, err := l.RecordGame(ctx, Outcome(rng.Intn(3)), "carl", day1)
			require.NoError(t, err)
		}
		before := l.State()

		opponents := []string{"bob", "carl", "dina"}
		games := 1 + rng.Intn(8)
		for i := 0; i < games; i++ {
			_, err := l.RecordGame(ctx, Outcome(rng.Intn(3)), opponents[rng.Intn(3)], day2)
			require.NoError(t, err)
		}

		require.NoError(t, l.RollbackToday(day2))
		after := l.State()
		assert.Equal(t, before.TotalWins, after.TotalWins)
		assert.Equal(t, before.PerOpponent, after.PerOpponent)
		assert.Equal(t, day1, after.DayKey)
		assert.Nil(t, after.Snapshot)
	}
}

func TestRollbackWithoutSnapshotFails(t *testing.T) {
	l := newChess(t, nil)
	assert.ErrorIs(t, l.RollbackToday(day1), ErrNothingToRollback)

	_, err := l.RecordGame(context.Background(), Win, "bob", day1)
	require.NoError(t, err)
	assert.ErrorIs(t, l.RollbackToday(day2), ErrNothingToRollback)

	require.NoError(t, l.RollbackToday(day1))
	assert.ErrorIs(t, l.RollbackToday(day1), ErrNothingToRollback)
}

func TestSyncFromRemoteNeverClobbersWithEmpty(t *testing.T) {
	l := newChess(t, nil)
	_, err := l.RecordGame(context.Background(), Win, "bob", day1)
	require.NoError(t, err)

	require.NoError(t, l.SyncFromRemote(0, nil))
	assert.Equal(t, 1, l.State().TotalWins)

	require.NoError(t, l.SyncFromRemote(4, map[string]Score{"ann": {Wins: 4, Losses: 2}}))
	s := l.State()
	assert.Equal(t, 4, s.TotalWins)
	assert.Equal(t, map[string]Score{"ann": {Wins: 4, Losses: 2}}, s.PerOpponent)
	assert.Equal(t, day1, s.DayKey, "day key untouched by remote sync")
	assert.NotNil(t, s.Snapshot)
}

func TestSyncFromRemoteZeroOnEmptyIsIdempotent(t *testing.T) {
	l := newChess(t, nil)
	require.NoError(t, l.SyncFromRemote(0, map[string]Score{}))
	require.NoError(t, l.SyncFromRemote(0, nil))
	s := l.State()
	assert.Equal(t, 0, s.TotalWins)
	assert.Empty(t, s.PerOpponent)
}

func TestRemoteFailureDoesNotRollBack(t *testing.T) {
	svc := api.NewInMemoryService()
	svc.FailWith(api.MethodRecordChessGame, errors.New("offline"))
	l := newChess(t, svc)

	_, err := l.RecordGame(context.Background(), Win, "bob@example.com", day1)
	require.NoError(t, err)
	l.Wait()

	assert.Equal(t, 1, svc.RequestsMade(api.MethodRecordChessGame))
	assert.Equal(t, 1, l.State().TotalWins)
}

func TestRemoteRecordSkippedWithoutPlayer(t *testing.T) {
	svc := api.NewInMemoryService()
	l := NewChessLedger(kv.NewMemory(), svc, "", time.Millisecond, nil)

	_, err := l.RecordGame(context.Background(), Win, "bob@example.com", day1)
	require.NoError(t, err)
	l.Wait()
	assert.Equal(t, 0, svc.RequestsMade(api.MethodRecordChessGame))
}

func TestSyncParsesRemoteScores(t *testing.T) {
	svc := api.NewInMemoryService()
	svc.SeedChess(api.ChessData{TotalWins: 7, Opponents: map[string]string{"bob": "7:3", "bad": "x"}})
	l := newChess(t, svc)

	require.NoError(t, l.Sync(context.Background()))
	s := l.State()
	assert.Equal(t, 7, s.TotalWins)
	assert.Equal(t, Score{Wins: 7, Losses: 3}, s.PerOpponent["bob"])
	assert.Equal(t, Score{}, s.PerOpponent["bad"])
}

func TestSyncFailureKeepsLocal(t *testing.T) {
	svc := api.NewInMemoryService()
	boom := errors.New("offline")
	svc.FailWith(api.MethodGetAllChessData, boom)
	l := newChess(t, svc)
	require.NoError(t, l.SyncFromRemote(3, map[string]Score{"bob": {Wins: 3}}))

	assert.ErrorIs(t, l.Sync(context.Background()), boom)
	assert.Equal(t, 3, l.State().TotalWins)
}

func TestResetForEndpointSwitch(t *testing.T) {
	oldSvc := api.NewInMemoryService()
	l := newChess(t, oldSvc)
	ctx := context.Background()
	require.NoError(t, l.SelectOpponent("Bob", "bob@example.com"))
	_, err := l.RecordGame(ctx, Win, "bob@example.com", day1)
	require.NoError(t, err)

	newSvc := api.NewInMemoryService()
	newSvc.SeedChess(api.ChessData{TotalWins: 12, Opponents: map[string]string{"zoe": "12:0"}})
	require.NoError(t, l.ResetForEndpointSwitch(ctx, newSvc))

	l.Wait()
	s := l.State()
	assert.Equal(t, 12, s.TotalWins)
	assert.Nil(t, s.Snapshot)
	name, id := l.Opponent()
	assert.Empty(t, name)
	assert.Empty(t, id)
	assert.Equal(t, 1, newSvc.RequestsMade(api.MethodGetAllChessData))
}

func TestLegacyKeysMigratedOnce(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(keyLegacyScore, []byte("3:1")))
	require.NoError(t, store.Set(keyLegacyScoreOfDay, []byte("2:1")))

	NewChessLedger(store, nil, "", 0, nil)
	_, err := store.Get(keyLegacyScore)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.True(t, kv.GetBool(store, keyChessMigration))

	require.NoError(t, store.Set(keyLegacyScore, []byte("9:9")))
	NewChessLedger(store, nil, "", 0, nil)
	_, err = store.Get(keyLegacyScore)
	assert.NoError(t, err)
}
