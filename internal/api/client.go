package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/logger"
)

// APIError is returned when the backend answers with an HTTP error status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// HTTPService talks JSON over HTTP to the eater backend. Requests are never
// retried; a failure is returned to the caller as is.
type HTTPService struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewHTTPService creates a service for baseURL authenticated with token.
func NewHTTPService(baseURL, token string, log *zap.SugaredLogger) *HTTPService {
	return &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: logger.OrNop(log),
	}
}

// BaseURL returns the endpoint this service targets.
func (s *HTTPService) BaseURL() string {
	return s.baseURL
}

type successResponse struct {
	Success bool `json:"success"`
}

// do sends one request and decodes the JSON response into out (if non-nil).
func (s *HTTPService) do(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	urlStr := fmt.Sprintf("%s/%s", s.baseURL, endpoint)
	if len(params) > 0 {
		urlStr = fmt.Sprintf("%s?%s", urlStr, params.Encode())
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s.log.Debugw("request", "method", method, "url", urlStr)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	s.log.Debugw("response", "status", resp.StatusCode, "bytes", len(raw))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// mutate posts body and maps success=false to ErrRejected.
func (s *HTTPService) mutate(ctx context.Context, endpoint string, body any) error {
	var res successResponse
	if err := s.do(ctx, http.MethodPost, endpoint, nil, body, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s: %w", endpoint, ErrRejected)
	}
	return nil
}

// FetchProducts loads the food records of the selected day.
func (s *HTTPService) FetchProducts(ctx context.Context, date DateSelector) (ProductsResult, error) {
	var res ProductsResult
	if !date.Historical {
		err := s.do(ctx, http.MethodGet, "eater_get_today", nil, nil, &res)
		return res, err
	}
	body := map[string]string{"date": date.Date.UTC().Format(core.StatsDateFmt)}
	err := s.do(ctx, http.MethodPost, "get_food_record_for_date", nil, body, &res)
	return res, err
}

// DeleteFood removes the record keyed by time.
func (s *HTTPService) DeleteFood(ctx context.Context, t int64) error {
	return s.mutate(ctx, "delete_food", map[string]int64{"time": t})
}

// ModifyFoodRecord scales the record keyed by time to percentage of its portion.
func (s *HTTPService) ModifyFoodRecord(ctx context.Context, t int64, user string, percentage int) error {
	return s.mutate(ctx, "modify_food_record", map[string]any{
		"time":       t,
		"user_email": user,
		"percentage": percentage,
	})
}

// SendManualWeight records a weight measurement in kg.
func (s *HTTPService) SendManualWeight(ctx context.Context, weight float64, user string) error {
	return s.mutate(ctx, "send_manual_weight", map[string]any{
		"weight":     weight,
		"user_email": user,
	})
}

// FetchStatistics returns the macro summary for date, or for today when nil.
func (s *HTTPService) FetchStatistics(ctx context.Context, date *time.Time) (MacroSummary, error) {
	day := time.Now()
	if date != nil {
		day = *date
	}
	var res MacroSummary
	body := map[string]string{"date": day.UTC().Format(core.StatsDateFmt)}
	err := s.do(ctx, http.MethodPost, "get_stats_for_date", nil, body, &res)
	return res, err
}

// FetchAlcohol lists drinks recorded within r.
func (s *HTTPService) FetchAlcohol(ctx context.Context, r DateRange) ([]AlcoholEvent, error) {
	body := map[string]string{
		"start_date": r.Start.UTC().Format(core.StatsDateFmt),
		"end_date":   r.End.UTC().Format(core.StatsDateFmt),
	}
	var res struct {
		Events []AlcoholEvent `json:"events"`
	}
	if err := s.do(ctx, http.MethodPost, "get_alcohol_events", nil, body, &res); err != nil {
		return nil, err
	}
	return res.Events, nil
}

// RecordChessGame reports one finished game.
func (s *HTTPService) RecordChessGame(ctx context.Context, player, opponent string, result ChessResult) (ChessAck, error) {
	body := map[string]any{
		"player_email":   player,
		"opponent_email": opponent,
		"result":         string(result),
		"timestamp":      time.Now().UnixMilli(),
	}
	var res struct {
		Success        bool `json:"success"`
		PlayerWins     int  `json:"player_wins"`
		PlayerLosses   int  `json:"player_losses"`
		OpponentWins   int  `json:"opponent_wins"`
		OpponentLosses int  `json:"opponent_losses"`
	}
	if err := s.do(ctx, http.MethodPost, "autocomplete/record_chess_game", nil, body, &res); err != nil {
		return ChessAck{}, err
	}
	if !res.Success {
		return ChessAck{}, fmt.Errorf("record chess game: %w", ErrRejected)
	}
	return ChessAck{
		PlayerScore:   FormatScore(res.PlayerWins, res.PlayerLosses),
		OpponentScore: FormatScore(res.OpponentWins, res.OpponentLosses),
	}, nil
}

// GetAllChessData returns the authoritative chess ledger.
func (s *HTTPService) GetAllChessData(ctx context.Context) (ChessData, error) {
	var res ChessData
	err := s.do(ctx, http.MethodGet, "autocomplete/get_all_chess_data", nil, nil, &res)
	return res, err
}

// GetFriends returns one page of friends.
func (s *HTTPService) GetFriends(ctx context.Context, offset, limit int) (FriendsPage, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))
	var res FriendsPage
	err := s.do(ctx, http.MethodGet, "get_friends", params, nil, &res)
	return res, err
}
