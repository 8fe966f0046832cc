// Package api defines the remote food service contract, its domain types,
// an HTTP adapter and an in-memory fake for tests.
package api

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrRejected is returned when the backend answers a mutation with success=false.
var ErrRejected = errors.New("api: request rejected by backend")

// DateSelector picks the day a products fetch targets.
type DateSelector struct {
	Historical bool
	Date       time.Time
}

// Today selects the current UTC day.
func Today() DateSelector {
	return DateSelector{}
}

// Historical selects a specific past day.
func Historical(date time.Time) DateSelector {
	return DateSelector{Historical: true, Date: date}
}

// Product is one food record.
type Product struct {
	Time          int64    `json:"time"`
	Name          string   `json:"name"`
	Calories      int      `json:"calories"`
	Weight        int      `json:"weight"`
	Proteins      float64  `json:"proteins,omitempty"`
	Fats          float64  `json:"fats,omitempty"`
	Carbohydrates float64  `json:"carbohydrates,omitempty"`
	Sugar         float64  `json:"sugar,omitempty"`
	Ingredients   []string `json:"ingredients,omitempty"`
}

// ProductsResult is the payload of a products fetch.
type ProductsResult struct {
	Products     []Product `json:"products"`
	CaloriesLeft int       `json:"calories_left"`
	PersonWeight float64   `json:"person_weight"`
}

// MacroSummary is the per-day statistics aggregate.
type MacroSummary struct {
	Date            string  `json:"date"`
	TotalCalories   int     `json:"total_calories"`
	TotalFoodWeight int     `json:"total_food_weight"`
	PersonWeight    float64 `json:"person_weight"`
	Proteins        float64 `json:"proteins"`
	Fats            float64 `json:"fats"`
	Carbohydrates   float64 `json:"carbohydrates"`
	Sugar           float64 `json:"sugar"`
	NumberOfMeals   int     `json:"number_of_meals"`
	HasData         bool    `json:"has_data"`
}

// DateRange is an inclusive range of UTC days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// AlcoholEvent is a single drink record.
type AlcoholEvent struct {
	Time     int64  `json:"time"`
	Drink    string `json:"drink_name"`
	Calories int    `json:"calories"`
	Quantity int    `json:"quantity"`
}

// ChessResult is the outcome reported to the backend.
type ChessResult string

const (
	ChessWin  ChessResult = "win"
	ChessDraw ChessResult = "draw"
	ChessLoss ChessResult = "loss"
)

// ChessAck is the backend acknowledgement of a recorded game. Scores are "w:l".
type ChessAck struct {
	PlayerScore   string `json:"player_score"`
	OpponentScore string `json:"opponent_score"`
}

// ChessData is the authoritative remote chess ledger. Opponents maps an
// opponent id to a "w:l" score.
type ChessData struct {
	TotalWins int               `json:"total_wins"`
	Opponents map[string]string `json:"opponents"`
}

// ParseScore reads a "w:l" score. Anything malformed reads as 0:0.
func ParseScore(score string) (wins, losses int) {
	parts := strings.SplitN(score, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, errW := strconv.Atoi(parts[0])
	l, errL := strconv.Atoi(parts[1])
	if errW != nil || errL != nil || w < 0 || l < 0 {
		return 0, 0
	}
	return w, l
}

// FormatScore renders wins and losses as "w:l".
func FormatScore(wins, losses int) string {
	return strconv.Itoa(wins) + ":" + strconv.Itoa(losses)
}

// Friend is a connected user.
type Friend struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// FriendsPage is one page of GetFriends.
type FriendsPage struct {
	Friends []Friend `json:"friends"`
	Total   int      `json:"total"`
}

// RemoteFoodService is the opaque boundary to the backend. Every call is
// one-shot: no component retries it.
type RemoteFoodService interface {
	FetchProducts(ctx context.Context, date DateSelector) (ProductsResult, error)
	DeleteFood(ctx context.Context, time int64) error
	ModifyFoodRecord(ctx context.Context, time int64, user string, percentage int) error
	SendManualWeight(ctx context.Context, weight float64, user string) error
	FetchStatistics(ctx context.Context, date *time.Time) (MacroSummary, error)
	FetchAlcohol(ctx context.Context, r DateRange) ([]AlcoholEvent, error)
	RecordChessGame(ctx context.Context, player, opponent string, result ChessResult) (ChessAck, error)
	GetAllChessData(ctx context.Context) (ChessData, error)
	GetFriends(ctx context.Context, offset, limit int) (FriendsPage, error)
}
