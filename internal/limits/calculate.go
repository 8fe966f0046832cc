// Package limits owns the daily calorie limits and the default BMR/TDEE
// formula used to derive them from a health profile.
package limits

import (
	"fmt"
	"math"
)

// Gender selects the Mifflin-St Jeor constant.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// ActivityLevel selects the TDEE multiplier.
type ActivityLevel string

const (
	Sedentary        ActivityLevel = "sedentary"
	LightlyActive    ActivityLevel = "lightly_active"
	ModeratelyActive ActivityLevel = "moderately_active"
	VeryActive       ActivityLevel = "very_active"
	ExtremelyActive  ActivityLevel = "extremely_active"
)

var activityMultipliers = map[ActivityLevel]float64{
	Sedentary:        1.2,
	LightlyActive:    1.375,
	ModeratelyActive: 1.55,
	VeryActive:       1.725,
	ExtremelyActive:  1.9,
}

// optimalBMI is the middle of the healthy range.
const optimalBMI = 21.5

// HardLimitRatio is how far above the soft limit the hard limit sits.
const HardLimitRatio = 1.15

// Profile is the health data the formula needs.
type Profile struct {
	HeightCm float64       `json:"height_cm"`
	WeightKg float64       `json:"weight_kg"`
	Age      int           `json:"age"`
	Gender   Gender        `json:"gender"`
	Activity ActivityLevel `json:"activity"`
}

// Validate checks that the profile can be fed to Calculate.
func (p Profile) Validate() error {
	if p.HeightCm <= 0 || p.WeightKg <= 0 || p.Age <= 0 {
		return fmt.Errorf("height, weight and age must be positive")
	}
	if _, ok := activityMultipliers[p.Activity]; !ok {
		return fmt.Errorf("unknown activity level %q", p.Activity)
	}
	if p.Gender != Male && p.Gender != Female {
		return fmt.Errorf("unknown gender %q", p.Gender)
	}
	return nil
}

// OptimalWeight returns the weight at BMI 21.5 for the profile's height.
func (p Profile) OptimalWeight() float64 {
	m := p.HeightCm / 100
	return optimalBMI * m * m
}

// Calculate returns the recommended soft and hard daily limits.
func Calculate(p Profile) (soft, hard int) {
	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Gender == Male {
		bmr += 5
	} else {
		bmr -= 161
	}
	multiplier, ok := activityMultipliers[p.Activity]
	if !ok {
		multiplier = activityMultipliers[Sedentary]
	}
	tdee := bmr * multiplier

	diff := p.WeightKg - p.OptimalWeight()
	var adjustment float64
	switch {
	case math.Abs(diff) < 2:
	case diff > 0:
		adjustment = -500
	default:
		adjustment = 300
	}

	soft = int(tdee + adjustment)
	hard = int(float64(soft) * HardLimitRatio)
	return soft, hard
}
