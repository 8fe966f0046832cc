package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/metrics"
)

const (
	keyChessLedger      = "chessLedger"
	keyChessMigration   = "chessLeagueMigrationDone"
	keyLegacyScore      = "chessScore"
	keyLegacyScoreOfDay = "chessScoreStartOfDay"
	remoteStatusOK      = "ok"
	remoteStatusFailed  = "failed"
	remoteStatusSkipped = "skipped"
)

// Outcome of one chess game from the player's side.
type Outcome int

const (
	Win Outcome = iota
	Draw
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "loss"
	}
}

func (o Outcome) result() api.ChessResult {
	switch o {
	case Win:
		return api.ChessWin
	case Draw:
		return api.ChessDraw
	default:
		return api.ChessLoss
	}
}

// ParseOutcome accepts win, draw or loss.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "w":
		return Win, nil
	case "draw", "d":
		return Draw, nil
	case "loss", "lose", "l":
		return Loss, nil
	}
	return 0, fmt.Errorf("unknown outcome %q: %w", s, ErrInvalidInput)
}

// Score is a win/loss pair against one opponent.
type Score struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// ChessSnapshot is the ledger as it stood before today's first game.
type ChessSnapshot struct {
	TotalWins   int              `json:"total_wins"`
	PerOpponent map[string]Score `json:"per_opponent"`
}

// ChessState is the persisted chess ledger.
type ChessState struct {
	TotalWins    int              `json:"total_wins"`
	PerOpponent  map[string]Score `json:"per_opponent"`
	DayKey       string           `json:"day_key"`
	Snapshot     *ChessSnapshot   `json:"snapshot,omitempty"`
	OpponentName string           `json:"opponent_name,omitempty"`
	OpponentID   string           `json:"opponent_id,omitempty"`
}

// GameResult is what RecordGame reports back.
type GameResult struct {
	Promoted bool
	Tier     Tier
}

// ChessRemote is the part of the backend the ledger talks to.
type ChessRemote interface {
	RecordChessGame(ctx context.Context, player, opponent string, result api.ChessResult) (api.ChessAck, error)
	GetAllChessData(ctx context.Context) (api.ChessData, error)
}

// ChessLedger tracks total wins and per-opponent scores, scoped to the UTC
// day for snapshot and rollback. Local state is authoritative: the remote
// write after a game is fire-and-forget and never rolls anything back.
type ChessLedger struct {
	mu          sync.Mutex
	kv          kv.Store
	remote      ChessRemote
	player      string
	switchDelay time.Duration
	log         *zap.SugaredLogger
	pending     sync.WaitGroup
}

// NewChessLedger creates a ledger for player and runs the one-time legacy
// key migration.
func NewChessLedger(store kv.Store, remote ChessRemote, player string, switchDelay time.Duration, log *zap.SugaredLogger) *ChessLedger {
	if switchDelay <= 0 {
		switchDelay = core.DefaultEndpointSwitchDelay
	}
	l := &ChessLedger{
		kv:          store,
		remote:      remote,
		player:      player,
		switchDelay: switchDelay,
		log:         logger.OrNop(log),
	}
	l.migrate()
	return l
}

func (l *ChessLedger) migrate() {
	if kv.GetBool(l.kv, keyChessMigration) {
		return
	}
	for _, k := range []string{keyLegacyScore, keyLegacyScoreOfDay} {
		if err := l.kv.Delete(k); err != nil {
			l.log.Warnw("failed to remove legacy chess key", "key", k, "error", err)
			return
		}
	}
	if err := kv.SetBool(l.kv, keyChessMigration, true); err != nil {
		l.log.Warnw("failed to mark chess migration", "error", err)
	}
}

func (l *ChessLedger) load() ChessState {
	var s ChessState
	if !kv.GetJSON(l.kv, keyChessLedger, &s) || s.TotalWins < 0 {
		s = ChessState{}
	}
	if s.PerOpponent == nil {
		s.PerOpponent = map[string]Score{}
	}
	return s
}

func (l *ChessLedger) save(s ChessState) error {
	if err := kv.SetJSON(l.kv, keyChessLedger, s); err != nil {
		return fmt.Errorf("persist chess ledger: %w", err)
	}
	return nil
}

// State returns a copy of the persisted ledger.
func (l *ChessLedger) State() ChessState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// RecordGame applies one game locally, persists it, then reports it to the
// backend in the background.
func (l *ChessLedger) RecordGame(ctx context.Context, outcome Outcome, opponent, today string) (GameResult, error) {
	if opponent == "" {
		return GameResult{}, fmt.Errorf("opponent is required: %w", ErrInvalidInput)
	}

	l.mu.Lock()
	s := l.load()
	if s.DayKey != today {
		snap := &ChessSnapshot{TotalWins: s.TotalWins}
		if err := deepcopy.Copy(&snap.PerOpponent, &s.PerOpponent); err != nil {
			l.mu.Unlock()
			return GameResult{}, fmt.Errorf("snapshot chess ledger: %w", err)
		}
		s.Snapshot = snap
		s.DayKey = today
	}

	winsBefore := s.TotalWins
	score := s.PerOpponent[opponent]
	switch outcome {
	case Win:
		score.Wins++
		s.TotalWins++
	case Loss:
		score.Losses++
	}
	s.PerOpponent[opponent] = score

	if err := l.save(s); err != nil {
		l.mu.Unlock()
		return GameResult{}, err
	}
	l.mu.Unlock()

	tierBefore, tierAfter := LeagueTier(winsBefore), LeagueTier(s.TotalWins)
	res := GameResult{Promoted: outcome == Win && tierAfter > tierBefore, Tier: tierAfter}

	l.reportGame(ctx, outcome, opponent)
	return res, nil
}

func (l *ChessLedger) reportGame(ctx context.Context, outcome Outcome, opponent string) {
	l.mu.Lock()
	remote, player := l.remote, l.player
	l.mu.Unlock()

	if remote == nil || player == "" || opponent == "" {
		metrics.RecordChessGame(outcome.String(), remoteStatusSkipped)
		return
	}

	bg := context.WithoutCancel(ctx)
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		if _, err := remote.RecordChessGame(bg, player, opponent, outcome.result()); err != nil {
			l.log.Warnw("remote chess record failed, keeping local result", "opponent", opponent, "error", err)
			metrics.RecordChessGame(outcome.String(), remoteStatusFailed)
			return
		}
		metrics.RecordChessGame(outcome.String(), remoteStatusOK)
	}()
}

// RollbackToday restores the ledger to its state before today's first game.
func (l *ChessLedger) RollbackToday(today string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.load()
	if s.DayKey != today || s.Snapshot == nil {
		return ErrNothingToRollback
	}
	yesterday, err := core.Yesterday(today)
	if err != nil {
		return err
	}
	s.TotalWins = s.Snapshot.TotalWins
	s.PerOpponent = s.Snapshot.PerOpponent
	if s.PerOpponent == nil {
		s.PerOpponent = map[string]Score{}
	}
	s.DayKey = yesterday
	s.Snapshot = nil
	return l.save(s)
}

// PlayedToday reports whether a game was recorded today.
func (l *ChessLedger) PlayedToday(today string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.load()
	return s.DayKey == today && s.Snapshot != nil
}

// SyncFromRemote merges the authoritative remote ledger. A remote report
// with data overwrites local totals. An empty report only zeroes an already
// empty local ledger; it never clobbers local progress.
func (l *ChessLedger) SyncFromRemote(remoteTotalWins int, remotePerOpponent map[string]Score) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.load()
	switch {
	case remoteTotalWins > 0 || len(remotePerOpponent) > 0:
		s.TotalWins = remoteTotalWins
		s.PerOpponent = make(map[string]Score, len(remotePerOpponent))
		for k, v := range remotePerOpponent {
			s.PerOpponent[k] = v
		}
	case s.TotalWins == 0 && len(s.PerOpponent) == 0:
		s.TotalWins = 0
		s.PerOpponent = map[string]Score{}
	default:
		l.log.Infow("remote chess ledger is empty, keeping local progress", "local_wins", s.TotalWins)
		return nil
	}
	return l.save(s)
}

// Sync fetches the remote ledger and merges it. On failure local state is kept.
func (l *ChessLedger) Sync(ctx context.Context) error {
	l.mu.Lock()
	remote := l.remote
	l.mu.Unlock()
	if remote == nil {
		return nil
	}

	data, err := remote.GetAllChessData(ctx)
	if err != nil {
		l.log.Warnw("chess sync failed, keeping local ledger", "error", err)
		return fmt.Errorf("get chess data: %w", err)
	}
	per := make(map[string]Score, len(data.Opponents))
	for id, score := range data.Opponents {
		w, lo := api.ParseScore(score)
		per[id] = Score{Wins: w, Losses: lo}
	}
	return l.SyncFromRemote(data.TotalWins, per)
}

// ResetForEndpointSwitch zeroes the ledger and opponent selection, points it
// at remote, and after the switch delay syncs from the new backend.
func (l *ChessLedger) ResetForEndpointSwitch(ctx context.Context, remote ChessRemote) error {
	l.mu.Lock()
	l.remote = remote
	err := l.save(ChessState{PerOpponent: map[string]Score{}})
	l.mu.Unlock()
	if err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		timer := time.NewTimer(l.switchDelay)
		defer timer.Stop()
		<-timer.C
		_ = l.Sync(bg)
	}()
	return nil
}

// SelectOpponent stores the opponent shown in the chess screen.
func (l *ChessLedger) SelectOpponent(name, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.load()
	s.OpponentName, s.OpponentID = name, id
	return l.save(s)
}

// Opponent returns the selected opponent.
func (l *ChessLedger) Opponent() (name, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.load()
	return s.OpponentName, s.OpponentID
}

// Wait blocks until background remote calls have finished.
func (l *ChessLedger) Wait() {
	l.pending.Wait()
}
