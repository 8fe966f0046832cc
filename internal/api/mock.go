package api

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/colthorp/eater-cli-go/internal/core"
)

// Method names recorded in the InMemoryService request log.
const (
	MethodFetchProducts    = "FetchProducts"
	MethodDeleteFood       = "DeleteFood"
	MethodModifyFoodRecord = "ModifyFoodRecord"
	MethodSendManualWeight = "SendManualWeight"
	MethodFetchStatistics  = "FetchStatistics"
	MethodFetchAlcohol     = "FetchAlcohol"
	MethodRecordChessGame  = "RecordChessGame"
	MethodGetAllChessData  = "GetAllChessData"
	MethodGetFriends       = "GetFriends"
)

// RequestLogEntry records a call made to the InMemoryService.
type RequestLogEntry struct {
	Method string
	Args   []string
}

// InMemoryService is a deterministic fake of the backend for unit tests and
// offline runs. Calls can be made to fail or to block until released.
type InMemoryService struct {
	mu sync.Mutex

	products   map[string]ProductsResult
	statistics map[string]MacroSummary
	alcohol    []AlcoholEvent
	chess      ChessData
	friends    []Friend

	failures map[string]error
	gates    map[string]chan struct{}

	inFlight    int
	maxInFlight int

	RequestLog []RequestLogEntry

	// Now resolves "today" for FetchProducts(Today()).
	Now func() time.Time
}

// NewInMemoryService creates an empty fake.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		products:   make(map[string]ProductsResult),
		statistics: make(map[string]MacroSummary),
		chess:      ChessData{Opponents: map[string]string{}},
		failures:   make(map[string]error),
		gates:      make(map[string]chan struct{}),
		RequestLog: make([]RequestLogEntry, 0),
		Now:        time.Now,
	}
}

// SeedProducts sets the products payload for dayKey.
func (s *InMemoryService) SeedProducts(dayKey string, res ProductsResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[dayKey] = res
}

// SeedStatistics sets the macro summary for dayKey.
func (s *InMemoryService) SeedStatistics(dayKey string, summary MacroSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statistics[dayKey] = summary
}

// SeedAlcohol appends alcohol events.
func (s *InMemoryService) SeedAlcohol(events ...AlcoholEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alcohol = append(s.alcohol, events...)
}

// SeedChess replaces the remote chess ledger.
func (s *InMemoryService) SeedChess(data ChessData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data.Opponents == nil {
		data.Opponents = map[string]string{}
	}
	s.chess = data
}

// SeedFriends appends friends.
func (s *InMemoryService) SeedFriends(friends ...Friend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends = append(s.friends, friends...)
}

// FailWith makes every subsequent call to method return err. A nil err clears it.
func (s *InMemoryService) FailWith(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Block makes calls to method wait until the returned release func is called.
func (s *InMemoryService) Block(method string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[method] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, method)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// RequestsMade returns how many calls were made to method, or to any method
// when method is empty.
func (s *InMemoryService) RequestsMade(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if method == "" {
		return len(s.RequestLog)
	}
	n := 0
	for _, e := range s.RequestLog {
		if e.Method == method {
			n++
		}
	}
	return n
}

// MaxInFlight returns the highest number of calls observed running at once.
func (s *InMemoryService) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// Reset clears seeded data, failures and the request log.
func (s *InMemoryService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[string]ProductsResult)
	s.statistics = make(map[string]MacroSummary)
	s.alcohol = nil
	s.chess = ChessData{Opponents: map[string]string{}}
	s.friends = nil
	s.failures = make(map[string]error)
	s.RequestLog = make([]RequestLogEntry, 0)
	s.inFlight, s.maxInFlight = 0, 0
}

// enter logs the call, waits on any gate and returns the injected failure.
func (s *InMemoryService) enter(ctx context.Context, method string, args ...string) (done func(), err error) {
	s.mu.Lock()
	s.RequestLog = append(s.RequestLog, RequestLogEntry{Method: method, Args: args})
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	gate := s.gates[method]
	s.mu.Unlock()

	done = func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			done()
			return func() {}, ctx.Err()
		}
	}

	s.mu.Lock()
	err = s.failures[method]
	s.mu.Unlock()
	if err != nil {
		done()
		return func() {}, err
	}
	return done, nil
}

// FetchProducts returns the seeded products for the selected day.
func (s *InMemoryService) FetchProducts(ctx context.Context, date DateSelector) (ProductsResult, error) {
	day := core.DayKey(s.Now())
	if date.Historical {
		day = core.DayKey(date.Date)
	}
	done, err := s.enter(ctx, MethodFetchProducts, day)
	if err != nil {
		return ProductsResult{}, err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.products[day]
	res.Products = append([]Product(nil), res.Products...)
	return res, nil
}

// DeleteFood removes the product with the given time from every seeded day.
func (s *InMemoryService) DeleteFood(ctx context.Context, t int64) error {
	done, err := s.enter(ctx, MethodDeleteFood, strconv.FormatInt(t, 10))
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for day, res := range s.products {
		kept := res.Products[:0:0]
		for _, p := range res.Products {
			if p.Time != t {
				kept = append(kept, p)
			}
		}
		if len(kept) != len(res.Products) {
			res.Products = kept
			s.products[day] = res
			return nil
		}
	}
	return fmt.Errorf("delete food %d: %w", t, ErrRejected)
}

// ModifyFoodRecord scales the matching product's calories and weight.
func (s *InMemoryService) ModifyFoodRecord(ctx context.Context, t int64, user string, percentage int) error {
	done, err := s.enter(ctx, MethodModifyFoodRecord, strconv.FormatInt(t, 10), user, strconv.Itoa(percentage))
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for day, res := range s.products {
		for i, p := range res.Products {
			if p.Time != t {
				continue
			}
			products := append([]Product(nil), res.Products...)
			products[i].Calories = p.Calories * percentage / 100
			products[i].Weight = p.Weight * percentage / 100
			res.Products = products
			s.products[day] = res
			return nil
		}
	}
	return fmt.Errorf("modify food %d: %w", t, ErrRejected)
}

// SendManualWeight stores the weight on today's products payload.
func (s *InMemoryService) SendManualWeight(ctx context.Context, weight float64, user string) error {
	done, err := s.enter(ctx, MethodSendManualWeight, strconv.FormatFloat(weight, 'f', -1, 64), user)
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	day := core.DayKey(s.Now())
	res := s.products[day]
	res.PersonWeight = weight
	s.products[day] = res
	return nil
}

// FetchStatistics returns the seeded summary for date (today when nil).
func (s *InMemoryService) FetchStatistics(ctx context.Context, date *time.Time) (MacroSummary, error) {
	day := core.DayKey(s.Now())
	if date != nil {
		day = core.DayKey(*date)
	}
	done, err := s.enter(ctx, MethodFetchStatistics, day)
	if err != nil {
		return MacroSummary{}, err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.statistics[day]
	if !ok {
		t, _ := core.ParseDayKey(day)
		return MacroSummary{Date: t.Format(core.StatsDateFmt)}, nil
	}
	return summary, nil
}

// FetchAlcohol returns seeded events within r, ordered by time.
func (s *InMemoryService) FetchAlcohol(ctx context.Context, r DateRange) ([]AlcoholEvent, error) {
	start, end := core.DayKey(r.Start), core.DayKey(r.End)
	done, err := s.enter(ctx, MethodFetchAlcohol, start, end)
	if err != nil {
		return nil, err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AlcoholEvent, 0)
	for _, e := range s.alcohol {
		day := core.DayKey(time.UnixMilli(e.Time))
		if day >= start && day <= end {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// RecordChessGame updates the remote ledger the way the backend does.
func (s *InMemoryService) RecordChessGame(ctx context.Context, player, opponent string, result ChessResult) (ChessAck, error) {
	done, err := s.enter(ctx, MethodRecordChessGame, player, opponent, string(result))
	if err != nil {
		return ChessAck{}, err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	w, l := ParseScore(s.chess.Opponents[opponent])
	switch result {
	case ChessWin:
		w++
		s.chess.TotalWins++
	case ChessLoss:
		l++
	}
	score := FormatScore(w, l)
	s.chess.Opponents[opponent] = score
	return ChessAck{PlayerScore: score, OpponentScore: FormatScore(l, w)}, nil
}

// GetAllChessData returns a copy of the remote ledger.
func (s *InMemoryService) GetAllChessData(ctx context.Context) (ChessData, error) {
	done, err := s.enter(ctx, MethodGetAllChessData)
	if err != nil {
		return ChessData{}, err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := ChessData{TotalWins: s.chess.TotalWins, Opponents: make(map[string]string, len(s.chess.Opponents))}
	for k, v := range s.chess.Opponents {
		out.Opponents[k] = v
	}
	return out, nil
}

// GetFriends pages through seeded friends.
func (s *InMemoryService) GetFriends(ctx context.Context, offset, limit int) (FriendsPage, error) {
	done, err := s.enter(ctx, MethodGetFriends, strconv.Itoa(offset), strconv.Itoa(limit))
	if err != nil {
		return FriendsPage{}, err
	}
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.friends)
	if offset >= total {
		return FriendsPage{Friends: []Friend{}, Total: total}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return FriendsPage{Friends: append([]Friend(nil), s.friends[offset:end]...), Total: total}, nil
}
