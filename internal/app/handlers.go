package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/cache"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/fetch"
	"github.com/colthorp/eater-cli-go/internal/invalidate"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/ledger"
)

// afterMutation invalidates and shows a fresh today. Invalidation failures
// are logged: the next fetch replaces whatever was left behind.
func (a *App) afterMutation(ctx context.Context, m invalidate.Mutation) fetch.View {
	if err := a.Bus.Apply(m); err != nil {
		a.log.Warnw("cache invalidation incomplete", "event", m.Event.String(), "error", err)
	}
	a.Fetch.ViewToday()
	return a.Fetch.ForceRefresh(ctx)
}

// DeleteFood deletes the record at t. Nothing local changes when the backend refuses.
func (a *App) DeleteFood(ctx context.Context, t int64) (fetch.View, error) {
	if err := a.Remote.DeleteFood(ctx, t); err != nil {
		return fetch.View{}, fmt.Errorf("delete food %d: %w", t, err)
	}
	if err := a.Extras.Remove(t); err != nil {
		a.log.Warnw("failed to drop extras of deleted food", "time", t, "error", err)
	}
	return a.afterMutation(ctx, invalidate.Mutation{Event: invalidate.FoodDeleted, ItemTime: t}), nil
}

// ModifyFood rescales the portion of the record at t to percentage of the original.
func (a *App) ModifyFood(ctx context.Context, t int64, percentage int) (fetch.View, error) {
	if percentage <= 0 {
		return fetch.View{}, fmt.Errorf("percentage %d: %w", percentage, ledger.ErrInvalidInput)
	}
	if err := a.Remote.ModifyFoodRecord(ctx, t, a.User(), percentage); err != nil {
		return fetch.View{}, fmt.Errorf("modify food %d: %w", t, err)
	}
	return a.afterMutation(ctx, invalidate.Mutation{Event: invalidate.FoodModified, ItemTime: t}), nil
}

// RecordWeight sends a manual weight in kilograms.
func (a *App) RecordWeight(ctx context.Context, kg float64) (fetch.View, error) {
	if kg <= 0 {
		return fetch.View{}, fmt.Errorf("weight %.1f: %w", kg, ledger.ErrInvalidInput)
	}
	if err := a.Remote.SendManualWeight(ctx, kg, a.User()); err != nil {
		return fetch.View{}, fmt.Errorf("send weight: %w", err)
	}
	return a.afterMutation(ctx, invalidate.Mutation{Event: invalidate.WeightRecorded, WeightKg: kg}), nil
}

// PhotoSubmitted runs after the backend accepted a food photo. The image is
// kept under tempTime until the next fetch names the product it belongs to.
func (a *App) PhotoSubmitted(ctx context.Context, tempTime int64, image []byte) fetch.View {
	if a.Images != nil && len(image) > 0 {
		if err := a.Images.SaveTemporary(tempTime, image); err != nil {
			a.log.Warnw("failed to store photo", "time", tempTime, "error", err)
		} else {
			a.Fetch.ExpectPhoto(tempTime)
		}
	}
	if err := a.Reminders.RecordFoodSnap(); err != nil {
		a.log.Warnw("failed to record food snap", "error", err)
	}
	return a.afterMutation(ctx, invalidate.Mutation{Event: invalidate.PhotoSubmitted, ItemTime: tempTime})
}

// AddExtra adds one tap of an extra to the dish at t.
func (a *App) AddExtra(ctx context.Context, t int64, key string) (fetch.View, error) {
	if err := a.Extras.Add(t, key); err != nil {
		return fetch.View{}, err
	}
	return a.afterMutation(ctx, invalidate.Mutation{Event: invalidate.ExtraAdded, ItemTime: t}), nil
}

// AddSugar adds tsp teaspoons of sugar to the dish at t.
func (a *App) AddSugar(ctx context.Context, t int64, tsp int) (fetch.View, error) {
	if err := a.Extras.AddSugar(t, tsp); err != nil {
		return fetch.View{}, err
	}
	return a.afterMutation(ctx, invalidate.Mutation{Event: invalidate.ExtraAdded, ItemTime: t}), nil
}

// Shared runs after a record was shared with a friend.
func (a *App) Shared(ctx context.Context) fetch.View {
	return a.afterMutation(ctx, invalidate.Mutation{Event: invalidate.SharedSuccessfully})
}

// BackgroundSync refreshes without a loading state.
func (a *App) BackgroundSync(ctx context.Context) fetch.View {
	return a.Fetch.RefreshSilently(ctx)
}

// Decorate applies local extras to the products of v.
func (a *App) Decorate(v fetch.View) []DecoratedProduct {
	if v.Products == nil {
		return nil
	}
	return a.Extras.Apply(v.Products.Products)
}

// AddActivity converts a logged activity into calories and stores them as
// today's sport bonus, replacing any earlier value.
func (a *App) AddActivity(kind ledger.ActivityKind, value int) (int, error) {
	weight, _ := a.Limits.Weight()
	kcal, err := ledger.ActivityCalories(kind, value, weight)
	if err != nil {
		return 0, err
	}
	if err := a.Sport.Write(kcal, a.Today()); err != nil {
		return 0, err
	}
	return kcal, nil
}

// SportBonus returns today's sport calories.
func (a *App) SportBonus() (int, error) {
	return a.Sport.Read(a.Today())
}

// ResetSport zeroes today's sport calories.
func (a *App) ResetSport() error {
	return a.Sport.Reset(a.Today())
}

// EffectiveLimits returns the limits with today's sport bonus added to the soft limit.
func (a *App) EffectiveLimits() (soft, hard, bonus int, err error) {
	soft, hard = a.Limits.Limits()
	bonus, err = a.SportBonus()
	if err != nil {
		return soft, hard, 0, err
	}
	return soft + bonus, hard, bonus, nil
}

// RecordChess records a game against the selected opponent, or against
// opponent when it is not empty.
func (a *App) RecordChess(ctx context.Context, outcome ledger.Outcome, opponent string) (ledger.GameResult, error) {
	if opponent == "" {
		_, opponent = a.Chess.Opponent()
	}
	return a.Chess.RecordGame(ctx, outcome, opponent, a.Today())
}

// RollbackChess undoes today's chess games.
func (a *App) RollbackChess() error {
	return a.Chess.RollbackToday(a.Today())
}

// SaveEndpoint persists baseURL for later runs.
func (a *App) SaveEndpoint(baseURL string) error {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return fmt.Errorf("endpoint url: %w", ledger.ErrInvalidInput)
	}
	return kv.SetString(a.Store, keyAPIBaseURL, baseURL)
}

// SwitchEndpoint points the app at svc. Cached data and the chess ledger
// belong to the old backend and are dropped; the ledger resyncs after a delay.
func (a *App) SwitchEndpoint(ctx context.Context, svc api.RemoteFoodService) (fetch.View, error) {
	a.Remote.Set(svc)
	if err := a.Bus.ClearDomains(cache.DomainProduct, cache.DomainStatistics); err != nil {
		a.log.Warnw("failed to clear caches on endpoint switch", "error", err)
	}
	if err := a.Chess.ResetForEndpointSwitch(ctx, a.Remote); err != nil {
		return fetch.View{}, fmt.Errorf("reset chess ledger: %w", err)
	}
	a.Fetch.ViewToday()
	return a.Fetch.ForceRefresh(ctx), nil
}

// Friends lists every friend of the user.
func (a *App) Friends(ctx context.Context, maxResults int) ([]api.Friend, error) {
	return api.Friends(ctx, a.Remote, core.FriendsPageSize, maxResults)
}
