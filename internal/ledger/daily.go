package ledger

import (
	"fmt"
	"sync"

	"github.com/colthorp/eater-cli-go/internal/kv"
)

const keySportCalories = "todaySportCalories"

// DailyCounter is a non-negative value scoped to one UTC day.
type DailyCounter struct {
	Value  int    `json:"value"`
	DayKey string `json:"day_key"`
}

// DailyCounterLedger stores the sport calorie bonus. A read on a new day
// yields zero and persists the reset before returning.
type DailyCounterLedger struct {
	mu sync.Mutex
	kv kv.Store
}

// NewDailyCounterLedger creates a ledger persisted in store.
func NewDailyCounterLedger(store kv.Store) *DailyCounterLedger {
	return &DailyCounterLedger{kv: store}
}

func (l *DailyCounterLedger) load() DailyCounter {
	var c DailyCounter
	if !kv.GetJSON(l.kv, keySportCalories, &c) || c.Value < 0 {
		return DailyCounter{}
	}
	return c
}

func (l *DailyCounterLedger) save(c DailyCounter) error {
	if err := kv.SetJSON(l.kv, keySportCalories, c); err != nil {
		return fmt.Errorf("persist sport calories: %w", err)
	}
	return nil
}

// Read returns today's bonus.
func (l *DailyCounterLedger) Read(today string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.load()
	if c.DayKey != today {
		if err := l.save(DailyCounter{DayKey: today}); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return c.Value, nil
}

// Write replaces today's bonus with amount. It does not accumulate.
func (l *DailyCounterLedger) Write(amount int, today string) error {
	if amount <= 0 {
		return fmt.Errorf("sport calories %d: %w", amount, ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(DailyCounter{Value: amount, DayKey: today})
}

// Reset zeroes the bonus for today.
func (l *DailyCounterLedger) Reset(today string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(DailyCounter{DayKey: today})
}

// Snapshot returns the persisted counter as stored, without day rollover.
func (l *DailyCounterLedger) Snapshot() DailyCounter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}
