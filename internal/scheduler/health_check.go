package scheduler

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/modules/history"
	"github.com/dmounsey/gridlight/internal/modules/intensity"
)

// HealthCheckJob audits the data the pipeline depends on: the data
// directory, history depth and freshness, and forward-completeness of
// the coefficient table. Everything it finds is a warning, never a
// fatal error.
type HealthCheckJob struct {
	log     zerolog.Logger
	store   *history.Store
	table   *intensity.Table
	dataDir string
	maxAge  time.Duration
}

// HealthCheckConfig holds configuration for the health check job
type HealthCheckConfig struct {
	Log     zerolog.Logger
	Store   *history.Store
	Table   *intensity.Table
	DataDir string
	MaxAge  time.Duration
}

// NewHealthCheckJob creates a health check job
func NewHealthCheckJob(cfg HealthCheckConfig) *HealthCheckJob {
	return &HealthCheckJob{
		log:     cfg.Log.With().Str("job", "health_check").Logger(),
		store:   cfg.Store,
		table:   cfg.Table,
		dataDir: cfg.DataDir,
		maxAge:  cfg.MaxAge,
	}
}

// Name returns the job name
func (j *HealthCheckJob) Name() string {
	return "health_check"
}

// Run executes the health check
func (j *HealthCheckJob) Run() error {
	start := time.Now()

	j.checkDataDir()
	j.checkHistory()
	j.checkCoefficients()

	j.log.Info().
		Dur("duration", time.Since(start)).
		Msg("Health check completed")

	return nil
}

// checkDataDir verifies the intensity log and cache directory exists
func (j *HealthCheckJob) checkDataDir() {
	if j.dataDir == "" {
		return
	}

	info, err := os.Stat(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("dir", j.dataDir).Msg("Data directory is not accessible")
		return
	}
	if !info.IsDir() {
		j.log.Warn().Str("dir", j.dataDir).Msg("Data path is not a directory")
		return
	}
	j.log.Debug().Str("dir", j.dataDir).Msg("Data directory OK")
}

// checkHistory reports history depth and the newest snapshot's age
func (j *HealthCheckJob) checkHistory() {
	if j.store == nil {
		return
	}

	latest, ok := j.store.Latest()
	if !ok {
		j.log.Warn().Msg("History store is empty")
		return
	}

	age := time.Since(latest.Time())
	if j.maxAge > 0 && age > j.maxAge {
		j.log.Warn().
			Dur("age", age).
			Int("snapshots", j.store.Len()).
			Msg("Newest snapshot exceeds the staleness cap")
		return
	}

	j.log.Debug().
		Dur("age", age).
		Int("snapshots", j.store.Len()).
		Msg("History OK")
}

// checkCoefficients warns about fuels whose coefficients stop resolving
// next year, so the fuel data file gets extended before it goes silent.
func (j *HealthCheckJob) checkCoefficients() {
	if j.table == nil {
		return
	}

	year := time.Now().UTC().Year()
	missing := j.table.CheckForwardCompleteness(year)
	if len(missing) > 0 {
		j.log.Warn().
			Int("year", year+1).
			Strs("fuels", missing).
			Msg("Fuels lack coefficients for next year")
		return
	}
	j.log.Debug().Msg("Coefficient table is forward complete")
}
