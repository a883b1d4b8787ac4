package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/domain"
	"github.com/dmounsey/gridlight/internal/modules/history"
	"github.com/dmounsey/gridlight/internal/modules/stats"
)

// StatsReportJob computes and logs fuel correlations over the
// configured history window. Runs daily.
type StatsReportJob struct {
	log    zerolog.Logger
	engine *stats.Engine
	store  *history.Store
	window int
}

// NewStatsReportJob creates a stats report job. window is the number
// of newest snapshots the correlations run over.
func NewStatsReportJob(log zerolog.Logger, engine *stats.Engine, store *history.Store, window int) *StatsReportJob {
	return &StatsReportJob{
		log:    log.With().Str("job", "stats_report").Logger(),
		engine: engine,
		store:  store,
		window: window,
	}
}

// Name returns the job name
func (j *StatsReportJob) Name() string {
	return "stats_report"
}

// Run computes the correlation report
func (j *StatsReportJob) Run() error {
	start := time.Now()

	result, err := j.engine.FuelCorrelations(j.store.Window(j.window))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			// Normal right after startup: no history yet.
			j.log.Info().Msg("Not enough history for a stats report yet")
			return nil
		}
		return err
	}

	j.log.Info().
		Dur("duration", time.Since(start)).
		Int("samples", result.Samples).
		Float64("intensity_vs_demand", result.IntensityVsDemand).
		Str("per_fuel_vs_intensity", formatCorrelations(result.PerFuelVsIntensity)).
		Str("per_fuel_vs_demand", formatCorrelations(result.PerFuelVsDemand)).
		Msg("Fuel correlation report")

	return nil
}

// formatCorrelations renders a correlation map as a stable
// space-separated list. NaN prints as NaN, which is the point: an
// undefined correlation must not read as zero.
func formatCorrelations(corr map[string]float64) string {
	fuels := make([]string, 0, len(corr))
	for fuel := range corr {
		fuels = append(fuels, fuel)
	}
	sort.Strings(fuels)

	parts := make([]string, 0, len(fuels))
	for _, fuel := range fuels {
		parts = append(parts, fmt.Sprintf("%s=%.3f", fuel, corr[fuel]))
	}
	return strings.Join(parts, " ")
}
