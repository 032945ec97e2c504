package domain

import "math"

// CalculateXP maps a run distance to experience points: 10 XP per
// kilometer, rounded half away from zero, so 0.05 km earns 1 XP.
// Non-finite and non-positive distances earn nothing.
func CalculateXP(distanceKm float64) int {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm <= 0 {
		return 0
	}
	return int(math.Round(distanceKm * 10))
}
