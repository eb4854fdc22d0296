// Package coverage computes competency coverage and proficiency tiers and
// propagates coverage changes up the competency hierarchy.
package coverage

import (
	"math"

	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
)

// Level is a coarse proficiency tier derived from coverage.
type Level string

const (
	LevelUndefined    Level = store.ProficiencyUndefined
	LevelBeginner     Level = "BEGINNER"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
	LevelExpert       Level = "EXPERT"
)

// Tier thresholds are inclusive lower bounds.
const (
	expertThreshold       = 80.0
	advancedThreshold     = 60.0
	intermediateThreshold = 40.0
)

// Calculate returns round(verified/required*100, 2) where verified counts
// verified entries that belong to the required set. It is 0 when nothing
// is required.
func Calculate(verified []store.VerifiedSkill, required []skillgraph.Skill) float64 {
	return Percentage(countVerified(verified, required), len(required))
}

// Percentage returns round(verified/required*100, 2), or 0 if required is 0.
func Percentage(verified, required int) float64 {
	if required <= 0 {
		return 0
	}
	return round2(float64(verified) / float64(required) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MapToProficiency maps a coverage percentage to its tier.
func MapToProficiency(coverage float64) Level {
	switch {
	case coverage >= expertThreshold:
		return LevelExpert
	case coverage >= advancedThreshold:
		return LevelAdvanced
	case coverage >= intermediateThreshold:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}
