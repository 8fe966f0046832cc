package ledger

import (
	"fmt"
	"strings"
)

// ActivityKind is a sport the user can log.
type ActivityKind string

const (
	Gym        ActivityKind = "gym"
	Steps      ActivityKind = "steps"
	Treadmill  ActivityKind = "treadmill"
	Elliptical ActivityKind = "elliptical"
)

const (
	defaultWeightKg = 70.0
	gymMET          = 5.0
	kcalPerStep     = 0.04
)

// ParseActivityKind accepts the kind names case-insensitively.
func ParseActivityKind(s string) (ActivityKind, error) {
	switch k := ActivityKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Gym, Steps, Treadmill, Elliptical:
		return k, nil
	default:
		return "", fmt.Errorf("unknown activity %q: %w", s, ErrInvalidInput)
	}
}

// ActivityCalories converts a logged value into burned calories. value is
// minutes for gym, a step count for steps, and kcal for the machines.
// A non-positive weight falls back to 70 kg.
func ActivityCalories(kind ActivityKind, value int, weightKg float64) (int, error) {
	if value <= 0 {
		return 0, fmt.Errorf("activity value %d: %w", value, ErrInvalidInput)
	}
	if weightKg <= 0 {
		weightKg = defaultWeightKg
	}
	switch kind {
	case Gym:
		hours := float64(value) / 60
		return int(gymMET * weightKg * hours), nil
	case Steps:
		return int(float64(value) * kcalPerStep * (weightKg / defaultWeightKg)), nil
	case Treadmill, Elliptical:
		return value, nil
	default:
		return 0, fmt.Errorf("unknown activity %q: %w", kind, ErrInvalidInput)
	}
}
