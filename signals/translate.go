// Package signals maps raw world samples onto a normalised homeostasis view.
//
// Polarity is explicit: "hunger" is a deficit signal (1 = urgent) while
// "health", "safety", "energy" and "defensive_readiness" are satisfaction
// signals (1 = good). Missing inputs yield absent keys, never imputed values.
package signals

import (
	"math"

	"github.com/voxelmind/reflexcore/worldstate"
)

// Signal vector keys.
const (
	KeyHealth             = "health"
	KeyHunger             = "hunger"
	KeyEnergy             = "energy"
	KeySafety             = "safety"
	KeyDefensiveReadiness = "defensive_readiness"
)

// Minecraft night window in day ticks.
const (
	NightStartTick = 12542
	NightEndTick   = 23460
)

// IsNight reports whether a time-of-day tick falls in the night window.
func IsNight(timeOfDay int) bool {
	return timeOfDay >= NightStartTick && timeOfDay <= NightEndTick
}

// Translate converts a sample into a partial signal vector. Each value is in
// [0,1], rounded to two decimals. Keys whose inputs are absent are omitted.
func Translate(sample *worldstate.Sample) map[string]float64 {
	vector := make(map[string]float64)
	if sample == nil {
		return vector
	}

	if sample.Health != nil {
		vector[KeyHealth] = round2(clamp01(*sample.Health / 20))
	}
	if sample.Food != nil {
		vector[KeyHunger] = round2(clamp01(1 - float64(*sample.Food)/20))
	}
	if sample.Health != nil && sample.Food != nil {
		vector[KeyEnergy] = round2((vector[KeyHealth] + (1 - vector[KeyHunger])) / 2)
	}
	if sample.NearbyHostiles != nil {
		hostiles := float64(*sample.NearbyHostiles)

		safety := 0.9 - 0.15*hostiles
		if sample.TimeOfDay != nil && IsNight(*sample.TimeOfDay) {
			safety -= 0.1
		}
		vector[KeySafety] = round2(clamp01(safety))

		vector[KeyDefensiveReadiness] = round2(1 - math.Min(hostiles/5, 1))
	}
	return vector
}

// HungerUrgency returns the deficit signal for a raw food level.
func HungerUrgency(food int) float64 {
	return round2(clamp01(1 - float64(food)/20))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
