package intensity

import (
	"fmt"

	"github.com/dmounsey/gridlight/internal/domain"
)

// Below this the denominator counts as "no usable generation".
const minDenominatorMW = 1e-6

// Options configures a Computer. The zero value computes a plain
// generation-weighted mean with no exclusions, scaling or losses.
type Options struct {
	// StorageFuels are excluded from numerator and denominator alike:
	// their positive readings are previously-accounted energy being
	// withdrawn, and counting them would double-count emissions.
	StorageFuels []string

	// ScaleFactors multiply a fuel's metered MW before weighting, e.g.
	// to stand in for embedded generation the feed cannot see. Each
	// factor carries a justification in the fuel data file.
	ScaleFactors map[string]float64

	// Delivery loss fractions. Retail intensity inflates the
	// generation-side figure by 1/((1-transmission)(1-distribution)).
	TransmissionLoss float64
	DistributionLoss float64

	// ExtraUnweightedMW is added to the denominator only. It stands for
	// generation known to exist but absent from the snapshot and of
	// unknown fuel. Default 0.
	ExtraUnweightedMW float64
}

// Computer derives the generation-weighted carbon intensity of a
// snapshot against a coefficient table.
type Computer struct {
	table   *Table
	opts    Options
	storage map[string]bool
}

// NewComputer builds a Computer over a coefficient table
func NewComputer(table *Table, opts Options) *Computer {
	storage := make(map[string]bool, len(opts.StorageFuels))
	for _, fuel := range opts.StorageFuels {
		storage[fuel] = true
	}
	return &Computer{table: table, opts: opts, storage: storage}
}

// Compute returns the weighted and retail intensity of one snapshot.
//
// numerator   = Σ scaledMW(fuel) × kgPerKWh(fuel)
// denominator = Σ scaledMW(fuel) + ExtraUnweightedMW
//
// both restricted to non-storage fuels with a known coefficient for the
// snapshot's year. A fuel without a coefficient contributes to neither
// sum. TotalGenerationMW in the result is the denominator actually
// used. The Stale flag is left false; callers that know the snapshot's
// age set it.
func (c *Computer) Compute(snap domain.FuelSnapshot) (domain.IntensityResult, error) {
	year := snap.Year()

	var numerator, denominator float64
	for fuel, mw := range snap.GenerationByFuel {
		if c.storage[fuel] {
			continue
		}
		kgPerKWh, known := c.table.Resolve(fuel, year)
		if !known {
			continue
		}

		generation := float64(mw)
		if factor, ok := c.opts.ScaleFactors[fuel]; ok {
			generation *= factor
		}

		numerator += generation * kgPerKWh
		denominator += generation
	}
	denominator += c.opts.ExtraUnweightedMW

	if denominator < minDenominatorMW {
		return domain.IntensityResult{}, fmt.Errorf("snapshot %d: %w", snap.TimestampMs, domain.ErrNoGenerationData)
	}

	weighted := numerator / denominator
	return domain.IntensityResult{
		TimestampMs:       snap.TimestampMs,
		WeightedIntensity: weighted,
		RetailIntensity:   c.Retail(weighted),
		TotalGenerationMW: denominator,
	}, nil
}

// Retail converts a generation-side intensity to the consumer-side
// figure by inflating for delivery losses
func (c *Computer) Retail(weighted float64) float64 {
	return weighted / ((1 - c.opts.TransmissionLoss) * (1 - c.opts.DistributionLoss))
}

// StorageDrawMW sums the storage category's metered output in a
// snapshot. Positive values mean storage is discharging onto the grid.
func (c *Computer) StorageDrawMW(snap domain.FuelSnapshot) int {
	draw := 0
	for fuel, mw := range snap.GenerationByFuel {
		if c.storage[fuel] {
			draw += mw
		}
	}
	return draw
}
