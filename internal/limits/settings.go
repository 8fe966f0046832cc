package limits

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/kv"
)

// ErrInvalidLimits is returned when a manual soft/hard pair is not 0 < soft <= hard.
var ErrInvalidLimits = errors.New("limits: soft limit must be positive and not above the hard limit")

// Defaults used before anything is configured.
const (
	DefaultSoftLimit = 1900
	DefaultHardLimit = 2100
)

const (
	keySoft          = "softLimit"
	keyHard          = "hardLimit"
	keyManual        = "hasManualCalorieLimits"
	keyHasHealthData = "hasUserHealthData"
	keyProfile       = "userHealthProfile"
	keyWeight        = "userWeight"
)

// Settings reads and writes calorie limits in a kv.Store.
type Settings struct {
	mu sync.Mutex
	kv kv.Store
}

// NewSettings wraps store.
func NewSettings(store kv.Store) *Settings {
	return &Settings{kv: store}
}

// Limits returns the current soft and hard limits.
func (s *Settings) Limits() (soft, hard int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	soft, ok := kv.GetInt(s.kv, keySoft)
	if !ok || soft <= 0 {
		soft = DefaultSoftLimit
	}
	hard, ok = kv.GetInt(s.kv, keyHard)
	if !ok || hard <= 0 {
		hard = DefaultHardLimit
	}
	return soft, hard
}

// SetManual stores user-chosen limits and turns auto-limits off.
func (s *Settings) SetManual(soft, hard int) error {
	if soft <= 0 || soft > hard {
		return fmt.Errorf("soft=%d hard=%d: %w", soft, hard, ErrInvalidLimits)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := kv.SetInt(s.kv, keySoft, soft); err != nil {
		return err
	}
	if err := kv.SetInt(s.kv, keyHard, hard); err != nil {
		return err
	}
	return kv.SetBool(s.kv, keyManual, true)
}

// ClearManual re-enables auto-limits and recomputes them when a profile exists.
func (s *Settings) ClearManual() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := kv.SetBool(s.kv, keyManual, false); err != nil {
		return err
	}
	_, err := s.recompute()
	return err
}

// SetProfile stores the health profile and, unless limits are manual,
// recomputes them.
func (s *Settings) SetProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := kv.SetJSON(s.kv, keyProfile, p); err != nil {
		return err
	}
	if err := kv.SetFloat(s.kv, keyWeight, p.WeightKg); err != nil {
		return err
	}
	if err := kv.SetBool(s.kv, keyHasHealthData, true); err != nil {
		return err
	}
	_, err := s.recompute()
	return err
}

// Profile returns the stored health profile.
func (s *Settings) Profile() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile()
}

func (s *Settings) profile() (Profile, bool) {
	if !kv.GetBool(s.kv, keyHasHealthData) {
		return Profile{}, false
	}
	var p Profile
	if !kv.GetJSON(s.kv, keyProfile, &p) || p.Validate() != nil {
		return Profile{}, false
	}
	return p, true
}

// AutoEnabled reports whether limits follow the health profile.
func (s *Settings) AutoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.profile()
	return ok && !kv.GetBool(s.kv, keyManual)
}

// Weight returns the last known body weight in kg.
func (s *Settings) Weight() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.GetFloat(s.kv, keyWeight)
}

func (s *Settings) weightChanged(w float64) bool {
	prev, ok := kv.GetFloat(s.kv, keyWeight)
	if !ok {
		return true
	}
	return math.Abs(w-prev) > core.WeightDeltaThreshold
}

// ApplyWeight records a new weight. If it moved by more than the threshold
// the weight is stored and, with auto-limits on, limits are recomputed and
// persisted. It reports whether a recompute happened.
func (s *Settings) ApplyWeight(w float64) (bool, error) {
	if w <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weightChanged(w) {
		return false, nil
	}
	if err := kv.SetFloat(s.kv, keyWeight, w); err != nil {
		return false, err
	}
	if p, ok := s.profile(); ok {
		p.WeightKg = w
		if err := kv.SetJSON(s.kv, keyProfile, p); err != nil {
			return false, err
		}
	}
	return s.recompute()
}

// Recompute derives limits from the profile when auto-limits are enabled.
func (s *Settings) Recompute() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute()
}

func (s *Settings) recompute() (bool, error) {
	p, ok := s.profile()
	if !ok || kv.GetBool(s.kv, keyManual) {
		return false, nil
	}
	soft, hard := Calculate(p)
	if err := kv.SetInt(s.kv, keySoft, soft); err != nil {
		return false, err
	}
	if err := kv.SetInt(s.kv, keyHard, hard); err != nil {
		return false, err
	}
	return true, nil
}
