package app

import (
	"context"
	"sync"
	"time"

	"github.com/colthorp/eater-cli-go/internal/api"
)

// Endpoint is a RemoteFoodService whose backend can be swapped at runtime.
// Calls already running finish against the backend they started on.
type Endpoint struct {
	mu  sync.RWMutex
	svc api.RemoteFoodService
}

// NewEndpoint wraps svc.
func NewEndpoint(svc api.RemoteFoodService) *Endpoint {
	return &Endpoint{svc: svc}
}

// Set replaces the backend.
func (e *Endpoint) Set(svc api.RemoteFoodService) {
	e.mu.Lock()
	e.svc = svc
	e.mu.Unlock()
}

// Current returns the backend in use.
func (e *Endpoint) Current() api.RemoteFoodService {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.svc
}

func (e *Endpoint) FetchProducts(ctx context.Context, date api.DateSelector) (api.ProductsResult, error) {
	return e.Current().FetchProducts(ctx, date)
}

func (e *Endpoint) DeleteFood(ctx context.Context, t int64) error {
	return e.Current().DeleteFood(ctx, t)
}

func (e *Endpoint) ModifyFoodRecord(ctx context.Context, t int64, user string, percentage int) error {
	return e.Current().ModifyFoodRecord(ctx, t, user, percentage)
}

func (e *Endpoint) SendManualWeight(ctx context.Context, weight float64, user string) error {
	return e.Current().SendManualWeight(ctx, weight, user)
}

func (e *Endpoint) FetchStatistics(ctx context.Context, date *time.Time) (api.MacroSummary, error) {
	return e.Current().FetchStatistics(ctx, date)
}

func (e *Endpoint) FetchAlcohol(ctx context.Context, r api.DateRange) ([]api.AlcoholEvent, error) {
	return e.Current().FetchAlcohol(ctx, r)
}

func (e *Endpoint) RecordChessGame(ctx context.Context, player, opponent string, result api.ChessResult) (api.ChessAck, error) {
	return e.Current().RecordChessGame(ctx, player, opponent, result)
}

func (e *Endpoint) GetAllChessData(ctx context.Context) (api.ChessData, error) {
	return e.Current().GetAllChessData(ctx)
}

func (e *Endpoint) GetFriends(ctx context.Context, offset, limit int) (api.FriendsPage, error) {
	return e.Current().GetFriends(ctx, offset, limit)
}
