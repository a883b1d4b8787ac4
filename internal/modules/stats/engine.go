package stats

import (
	"fmt"
	"sort"

	"github.com/dmounsey/gridlight/internal/domain"
	"github.com/dmounsey/gridlight/internal/modules/intensity"
	"github.com/dmounsey/gridlight/pkg/formulas"
)

// Engine computes correlation and trend statistics over windows of
// snapshot history. Results carry NaN where a correlation is undefined
// (zero variance); callers must never read NaN as zero.
type Engine struct {
	computer *intensity.Computer
}

// NewEngine builds a stats engine over an intensity computer
func NewEngine(computer *intensity.Computer) *Engine {
	return &Engine{computer: computer}
}

// FuelCorrelations computes, per fuel observed in the window, the
// Pearson correlation of that fuel's generation against the concurrent
// weighted-intensity and total-demand series, plus intensity vs demand
// overall. Snapshots whose intensity cannot be computed are skipped;
// a fuel missing from a usable snapshot counts as 0 MW there.
//
// An empty window violates the precondition and returns
// ErrInvalidArgument, not a degenerate result.
func (e *Engine) FuelCorrelations(window []domain.FuelSnapshot) (domain.CorrelationResult, error) {
	if len(window) == 0 {
		return domain.CorrelationResult{}, fmt.Errorf("%w: history window is empty", domain.ErrInvalidArgument)
	}

	var (
		usable      []domain.FuelSnapshot
		intensities []float64
		demands     []float64
	)
	for _, snap := range window {
		result, err := e.computer.Compute(snap)
		if err != nil {
			continue
		}
		usable = append(usable, snap)
		intensities = append(intensities, result.WeightedIntensity)
		demands = append(demands, float64(snap.TotalMW()))
	}

	fuels := observedFuels(usable)
	perFuelVsIntensity := make(map[string]float64, len(fuels))
	perFuelVsDemand := make(map[string]float64, len(fuels))
	for _, fuel := range fuels {
		series := fuelSeries(usable, fuel)
		perFuelVsIntensity[fuel] = formulas.Pearson(series, intensities)
		perFuelVsDemand[fuel] = formulas.Pearson(series, demands)
	}

	return domain.CorrelationResult{
		PerFuelVsIntensity: perFuelVsIntensity,
		PerFuelVsDemand:    perFuelVsDemand,
		IntensityVsDemand:  formulas.Pearson(intensities, demands),
		Samples:            len(usable),
	}, nil
}

// TrendPoint is one smoothed retail-intensity value. The timestamp is
// the newest snapshot inside that smoothing window.
type TrendPoint struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Smoothed    float64 `json:"smoothed"`
}

// Trend smooths the retail-intensity series with a simple moving
// average. A window shorter than the period yields an empty trend.
func (e *Engine) Trend(window []domain.FuelSnapshot, period int) ([]TrendPoint, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: trend period %d", domain.ErrInvalidArgument, period)
	}
	if len(window) == 0 {
		return nil, fmt.Errorf("%w: history window is empty", domain.ErrInvalidArgument)
	}

	var (
		timestamps []int64
		series     []float64
	)
	for _, snap := range window {
		result, err := e.computer.Compute(snap)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, snap.TimestampMs)
		series = append(series, result.RetailIntensity)
	}

	smoothed := formulas.MovingAverage(series, period)
	points := make([]TrendPoint, 0, len(smoothed))
	for i, value := range smoothed {
		points = append(points, TrendPoint{
			TimestampMs: timestamps[i+period-1],
			Smoothed:    value,
		})
	}
	return points, nil
}

func observedFuels(snaps []domain.FuelSnapshot) []string {
	seen := make(map[string]bool)
	for _, snap := range snaps {
		for fuel := range snap.GenerationByFuel {
			seen[fuel] = true
		}
	}
	fuels := make([]string, 0, len(seen))
	for fuel := range seen {
		fuels = append(fuels, fuel)
	}
	sort.Strings(fuels)
	return fuels
}

func fuelSeries(snaps []domain.FuelSnapshot, fuel string) []float64 {
	series := make([]float64, len(snaps))
	for i, snap := range snaps {
		series[i] = float64(snap.GenerationByFuel[fuel])
	}
	return series
}
