// Package units provides shared constants and conversions for crossing
// rates, and the traffic-level classification derived from them.
package units

import "time"

// Rate unit constants
const (
	PerMinute = "per_minute"
	PerHour   = "per_hour"
)

// ValidUnits contains all valid rate unit values
var ValidUnits = []string{PerMinute, PerHour}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "per_minute, per_hour"
}

// Rate is a crossing rate in crossings per minute, the canonical unit
// everything is stored in.
type Rate float64

// RateOf computes the crossing rate for a count over an elapsed duration.
// A non-positive duration yields zero rather than dividing by it.
func RateOf(count int64, elapsed time.Duration) Rate {
	if elapsed <= 0 {
		return 0
	}
	return Rate(float64(count) / elapsed.Minutes())
}

// Convert returns the rate expressed in the target units. Unknown units
// fall back to per-minute.
func (r Rate) Convert(targetUnits string) float64 {
	switch targetUnits {
	case PerHour:
		return float64(r) * 60
	case PerMinute:
		return float64(r)
	default:
		return float64(r)
	}
}

// TrafficLevel buckets a crossing rate into the three operator-facing
// bands used on dashboards and in end-of-run summaries.
type TrafficLevel string

const (
	LevelGreen  TrafficLevel = "green"  // light traffic
	LevelYellow TrafficLevel = "yellow" // moderate traffic
	LevelRed    TrafficLevel = "red"    // heavy traffic
)

// Traffic-level thresholds in crossings per minute.
const (
	GreenBelow  = 20.0
	YellowBelow = 30.0
)

// LevelFor classifies a rate: green below 20/min, yellow below 30/min,
// red at or above 30/min.
func LevelFor(r Rate) TrafficLevel {
	switch {
	case float64(r) < GreenBelow:
		return LevelGreen
	case float64(r) < YellowBelow:
		return LevelYellow
	default:
		return LevelRed
	}
}

func (l TrafficLevel) String() string { return string(l) }
