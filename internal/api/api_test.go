package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFriends(svc *InMemoryService, n int) {
	for i := 0; i < n; i++ {
		svc.SeedFriends(Friend{Email: fmt.Sprintf("f%d@example.com", i), Nickname: fmt.Sprintf("f%d", i)})
	}
}

func TestFriendsPaginatesUntilTotal(t *testing.T) {
	svc := NewInMemoryService()
	seedFriends(svc, 7)

	friends, err := Friends(context.Background(), svc, 3, 0)
	require.NoError(t, err)
	assert.Len(t, friends, 7)
	assert.Equal(t, 3, svc.RequestsMade(MethodGetFriends))
	assert.Equal(t, "f6@example.com", friends[6].Email)
}

func TestFriendsMaxResults(t *testing.T) {
	svc := NewInMemoryService()
	seedFriends(svc, 10)

	friends, err := Friends(context.Background(), svc, 10, 5)
	require.NoError(t, err)
	assert.Len(t, friends, 5)
	assert.Equal(t, 1, svc.RequestsMade(MethodGetFriends))
}

func TestFriendsEmpty(t *testing.T) {
	svc := NewInMemoryService()
	friends, err := Friends(context.Background(), svc, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestFriendsErrorKeepsPartialResult(t *testing.T) {
	svc := NewInMemoryService()
	seedFriends(svc, 2)
	boom := errors.New("offline")
	svc.FailWith(MethodGetFriends, boom)

	friends, err := Friends(context.Background(), svc, 20, 0)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, friends)
}

func TestInMemoryServiceProductsByDay(t *testing.T) {
	svc := NewInMemoryService()
	svc.Now = func() time.Time { return time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC) }
	svc.SeedProducts("2024-06-02", ProductsResult{Products: []Product{{Time: 1, Name: "soup"}}, PersonWeight: 70})
	svc.SeedProducts("2024-06-01", ProductsResult{Products: []Product{{Time: 2, Name: "salad"}}})

	today, err := svc.FetchProducts(context.Background(), Today())
	require.NoError(t, err)
	assert.Equal(t, "soup", today.Products[0].Name)

	past, err := svc.FetchProducts(context.Background(), Historical(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "salad", past.Products[0].Name)

	require.NoError(t, svc.DeleteFood(context.Background(), 1))
	today, err = svc.FetchProducts(context.Background(), Today())
	require.NoError(t, err)
	assert.Empty(t, today.Products)

	assert.ErrorIs(t, svc.DeleteFood(context.Background(), 99), ErrRejected)
}

func TestInMemoryServiceBlockTracksConcurrency(t *testing.T) {
	svc := NewInMemoryService()
	release := svc.Block(MethodFetchProducts)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.FetchProducts(context.Background(), Today())
		}()
	}
	require.Eventually(t, func() bool { return svc.RequestsMade(MethodFetchProducts) == 3 }, time.Second, time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 3, svc.MaxInFlight())
}

func TestInMemoryServiceChessLedger(t *testing.T) {
	svc := NewInMemoryService()
	ctx := context.Background()

	_, err := svc.RecordChessGame(ctx, "me@x", "bob@x", ChessWin)
	require.NoError(t, err)
	ack, err := svc.RecordChessGame(ctx, "me@x", "bob@x", ChessLoss)
	require.NoError(t, err)
	assert.Equal(t, "1:1", ack.PlayerScore)

	data, err := svc.GetAllChessData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, data.TotalWins)
	assert.Equal(t, "1:1", data.Opponents["bob@x"])
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in   string
		w, l int
	}{
		{"3:2", 3, 2},
		{"0:0", 0, 0},
		{"", 0, 0},
		{"x:1", 0, 0},
		{"-1:4", 0, 0},
	}
	for _, tt := range tests {
		w, l := ParseScore(tt.in)
		assert.Equal(t, tt.w, w, tt.in)
		assert.Equal(t, tt.l, l, tt.in)
	}
}

func TestHTTPServiceMutationsAndErrors(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/delete_food":
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"success": true}`))
		case "/modify_food_record":
			_, _ = w.Write([]byte(`{"success": false}`))
		case "/eater_get_today":
			_, _ = w.Write([]byte(`{"products":[{"time":5,"name":"pho","calories":420,"weight":500}],"calories_left":1480,"person_weight":71.5}`))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL+"/", "tok", nil)
	ctx := context.Background()

	require.NoError(t, svc.DeleteFood(ctx, 1717000000000))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.EqualValues(t, 1717000000000, gotBody["time"])

	assert.ErrorIs(t, svc.ModifyFoodRecord(ctx, 1, "me@x", 50), ErrRejected)

	res, err := svc.FetchProducts(ctx, Today())
	require.NoError(t, err)
	assert.Equal(t, 1480, res.CaloriesLeft)
	assert.InDelta(t, 71.5, res.PersonWeight, 1e-9)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "pho", res.Products[0].Name)

	_, err = svc.GetAllChessData(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}
