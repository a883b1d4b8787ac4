package formulas

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Pearson calculates the product-moment correlation between two equal-length
// series. Zero variance in either series (single sample, all values
// identical) yields NaN; callers must treat NaN as "undefined", never as zero.
func Pearson(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// Quantile returns the empirical p-quantile of data. The input is copied
// and sorted, so callers keep their own ordering.
func Quantile(p float64, data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// MovingAverage returns the simple moving average of series with the given
// period, one entry per full window (len(series)-period+1 entries).
func MovingAverage(series []float64, period int) []float64 {
	if period < 1 || len(series) < period {
		return nil
	}
	return talib.Sma(series, period)[period-1:]
}
