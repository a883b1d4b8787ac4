package domain

import "time"

// FuelSnapshot is the canonical record for one settlement interval:
// metered generation per fuel code, in MW. GenerationByFuel may be a
// partial map while a streaming record is still being assembled.
type FuelSnapshot struct {
	TimestampMs      int64          `json:"timestamp_ms"`
	GenerationByFuel map[string]int `json:"generation_by_fuel"`
}

// NewFuelSnapshot creates an empty snapshot for a timestamp
func NewFuelSnapshot(timestampMs int64) FuelSnapshot {
	return FuelSnapshot{
		TimestampMs:      timestampMs,
		GenerationByFuel: make(map[string]int),
	}
}

// Time returns the snapshot timestamp as a time.Time (UTC)
func (s FuelSnapshot) Time() time.Time {
	return time.UnixMilli(s.TimestampMs).UTC()
}

// Year returns the calendar year of the snapshot (UTC), used to pick
// the effective intensity coefficients
func (s FuelSnapshot) Year() int {
	return s.Time().Year()
}

// TotalMW sums every metered fuel in the snapshot, storage included.
// This is the demand proxy used by the correlation statistics.
func (s FuelSnapshot) TotalMW() int {
	total := 0
	for _, mw := range s.GenerationByFuel {
		total += mw
	}
	return total
}

// Clone returns a deep copy so callers can hand out read views without
// sharing the underlying map
func (s FuelSnapshot) Clone() FuelSnapshot {
	out := FuelSnapshot{
		TimestampMs:      s.TimestampMs,
		GenerationByFuel: make(map[string]int, len(s.GenerationByFuel)),
	}
	for fuel, mw := range s.GenerationByFuel {
		out.GenerationByFuel[fuel] = mw
	}
	return out
}

// IntensityResult is the derived carbon intensity of one snapshot.
// It is recomputed from a FuelSnapshot plus the coefficient table for
// that snapshot's year, never stored independently.
type IntensityResult struct {
	TimestampMs       int64   `json:"timestamp_ms"`
	WeightedIntensity float64 `json:"weighted_intensity"`
	RetailIntensity   float64 `json:"retail_intensity"`
	TotalGenerationMW float64 `json:"total_generation_mw"`
	Stale             bool    `json:"stale"`
}

// CorrelationResult holds Pearson correlations computed over one window
// of history. Entries are NaN when a series has zero variance; NaN means
// "undefined", never zero.
type CorrelationResult struct {
	PerFuelVsIntensity map[string]float64 `json:"per_fuel_vs_intensity"`
	PerFuelVsDemand    map[string]float64 `json:"per_fuel_vs_demand"`
	IntensityVsDemand  float64            `json:"intensity_vs_demand"`
	Samples            int                `json:"samples"`
}
