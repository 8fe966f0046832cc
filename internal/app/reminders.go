package app

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/logger"
)

const (
	keyNotificationsEnabled = "notificationsEnabled"
	keyLastSnapDate         = "lastFoodSnapDate"
	keyPendingReminders     = "pendingReminders"

	reminderDaysAhead = 14
)

var reminderSlots = []struct {
	label string
	hour  int
}{
	{"breakfast", 12},
	{"lunch", 17},
	{"dinner", 21},
}

// NotificationRescheduler re-plans reminders after a day change.
type NotificationRescheduler interface {
	HandleDayChangeIfNeeded()
}

// Reminder is one planned meal reminder.
type Reminder struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

// Reminders plans meal reminders for the next two weeks and keeps the plan
// in the key-value store. Delivery belongs to the host platform.
type Reminders struct {
	mu  sync.Mutex
	kv  kv.Store
	now func() time.Time
	log *zap.SugaredLogger
}

// NewReminders creates a planner.
func NewReminders(store kv.Store, now func() time.Time, log *zap.SugaredLogger) *Reminders {
	if now == nil {
		now = time.Now
	}
	return &Reminders{kv: store, now: now, log: logger.OrNop(log)}
}

func reminderID(label string, day time.Time) string {
	return fmt.Sprintf("eater_%s_%s", label, day.UTC().Format("20060102"))
}

// Enabled reports whether reminders are on.
func (r *Reminders) Enabled() bool {
	return kv.GetBool(r.kv, keyNotificationsEnabled)
}

// SetEnabled turns reminders on (planning them) or off (cancelling today's).
func (r *Reminders) SetEnabled(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := kv.SetBool(r.kv, keyNotificationsEnabled, enabled); err != nil {
		return fmt.Errorf("persist reminder setting: %w", err)
	}
	if enabled {
		return r.schedule()
	}
	return r.cancelDay(r.now())
}

// RecordFoodSnap notes a photo for today and cancels today's remaining reminders.
func (r *Reminders) RecordFoodSnap() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if err := kv.SetString(r.kv, keyLastSnapDate, core.DayKey(now)); err != nil {
		return fmt.Errorf("persist snap date: %w", err)
	}
	return r.cancelDay(now)
}

// HandleDayChangeIfNeeded re-plans reminders when they are enabled.
func (r *Reminders) HandleDayChangeIfNeeded() {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.schedule(); err != nil {
		r.log.Warnw("failed to reschedule reminders", "error", err)
	}
}

// Pending returns the planned reminders, earliest first.
func (r *Reminders) Pending() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending()
}

func (r *Reminders) pending() []Reminder {
	var out []Reminder
	if !kv.GetJSON(r.kv, keyPendingReminders, &out) {
		return nil
	}
	return out
}

func (r *Reminders) schedule() error {
	now := r.now()
	today := core.DateOnly(now)
	snapped := kv.GetString(r.kv, keyLastSnapDate) == core.DayKey(now)

	plan := make([]Reminder, 0, (reminderDaysAhead+1)*len(reminderSlots))
	for offset := 0; offset <= reminderDaysAhead; offset++ {
		if offset == 0 && snapped {
			continue
		}
		day := today.AddDate(0, 0, offset)
		for _, slot := range reminderSlots {
			at := day.Add(time.Duration(slot.hour) * time.Hour)
			if !at.After(now) {
				continue
			}
			plan = append(plan, Reminder{ID: reminderID(slot.label, day), Label: slot.label, At: at})
		}
	}
	r.log.Debugw("reminders planned", "count", len(plan))
	return kv.SetJSON(r.kv, keyPendingReminders, plan)
}

func (r *Reminders) cancelDay(day time.Time) error {
	drop := map[string]bool{}
	for _, slot := range reminderSlots {
		drop[reminderID(slot.label, day)] = true
	}
	kept := make([]Reminder, 0)
	for _, rem := range r.pending() {
		if !drop[rem.ID] {
			kept = append(kept, rem)
		}
	}
	return kv.SetJSON(r.kv, keyPendingReminders, kept)
}
