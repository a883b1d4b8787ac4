package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmounsey/gridlight/internal/clients/elexon"
	"github.com/dmounsey/gridlight/internal/config"
	"github.com/dmounsey/gridlight/internal/modules/feed"
	"github.com/dmounsey/gridlight/internal/modules/history"
	"github.com/dmounsey/gridlight/internal/modules/intensity"
	"github.com/dmounsey/gridlight/internal/modules/stats"
	"github.com/dmounsey/gridlight/internal/modules/status"
	"github.com/dmounsey/gridlight/internal/pipeline"
	"github.com/dmounsey/gridlight/internal/scheduler"
	"github.com/dmounsey/gridlight/internal/server"
	"github.com/dmounsey/gridlight/pkg/logger"
)

const (
	legacyTimeField  = "timestamp"
	legacyTimeLayout = "20060102150405"

	// The health check audits data freshness hourly.
	healthSchedule = "0 0 * * * *"
)

// legacyTemplate names the columns of the legacy generation-by-fuel
// feed. Position 0 is the record tag; the settlement date and period
// columns repeat the publication time and are skipped.
var legacyTemplate = []string{
	"", legacyTimeField, "", "",
	"CCGT", "OIL", "COAL", "NUCLEAR", "WIND", "PS", "NPSHYD",
	"OCGT", "OTHER", "INTFR", "INTIRL", "INTNED", "INTEW",
	"BIOMASS", "INTNEM", "INTELEC", "INTIFA2", "INTNSL", "INTVKL",
}

func main() {
	// Initialize logger
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting gridlight")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Re-level the logger now that the configured level is known
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	// Load fuel data and build the coefficient table
	fuels, err := config.LoadFuels(cfg.FuelsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.FuelsPath).Msg("Failed to load fuel data")
	}

	table, err := intensity.NewTable(fuels.Intensity)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build coefficient table")
	}
	if missing := table.CheckForwardCompleteness(time.Now().UTC().Year()); len(missing) > 0 {
		log.Warn().
			Strs("fuels", missing).
			Msg("Coefficient table has no values for next year")
	}

	computer := intensity.NewComputer(table, intensity.Options{
		StorageFuels:     fuels.Category(config.CategoryStorage),
		ScaleFactors:     fuels.FactorByFuel(),
		TransmissionLoss: fuels.Losses.Transmission,
		DistributionLoss: fuels.Losses.Distribution,
	})

	// Data directory for the intensity log and snapshot cache
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	store := history.NewStore(cfg.HistoryRetention)
	merger := feed.NewMerger(store, fuels.ExpectedFuels())
	cache := history.NewSnapshotCache(filepath.Join(cfg.DataDir, "last_good.json"))
	intensityLog := history.NewIntensityLog(filepath.Join(cfg.DataDir, "intensity.log"))

	// Warm the store so a restart with a dead feed still has something
	// to report
	if snap, err := cache.Load(); err == nil {
		store.Merge(snap.TimestampMs, snap.GenerationByFuel)
		log.Info().
			Int64("timestamp_ms", snap.TimestampMs).
			Msg("Reloaded last good snapshot")
	}

	statusEngine := status.NewEngine(status.Options{
		WindowSize:        cfg.RollingWindowSize,
		MaxAge:            cfg.StalenessMaxAge,
		MinNotifyInterval: cfg.MinNotifyInterval,
	}, status.NewLogNotifier(log), log)

	statsEngine := stats.NewEngine(computer)

	client := elexon.NewClient(cfg.LegacyFeedURL, cfg.StreamFeedURL, cfg.FetchTimeout, log)

	cycle := pipeline.NewCycle(pipeline.Config{
		Log:          log,
		Fetcher:      client,
		Merger:       merger,
		Store:        store,
		Computer:     computer,
		Status:       statusEngine,
		IntensityLog: intensityLog,
		Cache:        cache,
		Options: pipeline.Options{
			FeedLabel:      cfg.FeedLabel,
			LegacyTemplate: legacyTemplate,
			TimeField:      legacyTimeField,
			TimeLayout:     legacyTimeLayout,
			Fuels:          legacyFuels(legacyTemplate),
			// The streaming endpoint publishes newest first
			StreamOrder:  feed.OrderDescending,
			FetchTimeout: cfg.FetchTimeout,
		},
	})

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	pollJob := scheduler.NewPollCycleJob(log, cycle)
	statsJob := scheduler.NewStatsReportJob(log, statsEngine, store, cfg.CorrelationWindow)
	healthJob := scheduler.NewHealthCheckJob(scheduler.HealthCheckConfig{
		Log:     log,
		Store:   store,
		Table:   table,
		DataDir: cfg.DataDir,
		MaxAge:  cfg.StalenessMaxAge,
	})

	// Register background jobs
	if err := registerJobs(sched, cfg, pollJob, statsJob, healthJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Prime the pipeline instead of waiting for the first tick
	if err := sched.RunNow(pollJob); err != nil {
		log.Warn().Err(err).Msg("Initial poll failed")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:              cfg.Port,
		Log:               log,
		DevMode:           cfg.DevMode,
		Cycle:             cycle,
		Status:            statusEngine,
		Stats:             statsEngine,
		Store:             store,
		Table:             table,
		Fuels:             fuels,
		Scheduler:         sched,
		PollJob:           pollJob,
		StatsJob:          statsJob,
		CorrelationWindow: cfg.CorrelationWindow,
	})

	g, gctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
		case <-gctx.Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, poll, report, health scheduler.Job) error {
	if err := sched.AddJob(cfg.PollSchedule, poll); err != nil {
		return err
	}
	if err := sched.AddJob(cfg.StatsSchedule, report); err != nil {
		return err
	}
	return sched.AddJob(healthSchedule, health)
}

// legacyFuels extracts the fuel column names from the template
func legacyFuels(template []string) []string {
	fuels := make([]string, 0, len(template))
	for _, name := range template {
		if name == "" || name == legacyTimeField {
			continue
		}
		fuels = append(fuels, name)
	}
	return fuels
}
