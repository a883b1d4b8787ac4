package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/domain"
	"github.com/dmounsey/gridlight/internal/modules/feed"
	"github.com/dmounsey/gridlight/internal/modules/history"
	"github.com/dmounsey/gridlight/internal/modules/intensity"
	"github.com/dmounsey/gridlight/internal/modules/status"
)

// Fetcher is the remote transport boundary. Implementations return raw
// payload bytes and surface every failure as *domain.FetchError.
type Fetcher interface {
	FetchLegacy(ctx context.Context) ([]byte, error)
	FetchStream(ctx context.Context) ([]byte, error)
	HasLegacy() bool
	HasStream() bool
}

// Options tunes one polling cycle.
type Options struct {
	// FeedLabel gates the legacy feed's dataset label.
	FeedLabel string

	// LegacyTemplate names the legacy feed's columns; empty names skip
	// a column. TimeField picks the column carrying the observation
	// time in TimeLayout, and Fuels lists the columns read as MW.
	LegacyTemplate []string
	TimeField      string
	TimeLayout     string
	Fuels          []string

	// StreamOrder states the streaming feed's publish order. It is an
	// explicit parameter: the merger never guesses.
	StreamOrder feed.Order

	FetchTimeout time.Duration
}

// Config wires a Cycle.
type Config struct {
	Log          zerolog.Logger
	Fetcher      Fetcher
	Merger       *feed.Merger
	Store        *history.Store
	Computer     *intensity.Computer
	Status       *status.Engine
	IntensityLog *history.IntensityLog
	Cache        *history.SnapshotCache
	Options      Options
}

// Cycle runs one poll of the whole pipeline: fetch, parse, merge,
// compute, report. Steps inside a cycle are strictly sequential; a
// cycle that finds another still running skips instead of piling up.
// No failure propagates out of Run.
type Cycle struct {
	log          zerolog.Logger
	fetcher      Fetcher
	merger       *feed.Merger
	store        *history.Store
	computer     *intensity.Computer
	status       *status.Engine
	intensityLog *history.IntensityLog
	cache        *history.SnapshotCache
	opts         Options

	mu sync.Mutex

	resultMu   sync.RWMutex
	lastResult domain.IntensityResult
	haveResult bool
}

// NewCycle creates a poll cycle
func NewCycle(cfg Config) *Cycle {
	return &Cycle{
		log:          cfg.Log.With().Str("component", "pipeline").Logger(),
		fetcher:      cfg.Fetcher,
		merger:       cfg.Merger,
		store:        cfg.Store,
		computer:     cfg.Computer,
		status:       cfg.Status,
		intensityLog: cfg.IntensityLog,
		cache:        cfg.Cache,
		opts:         cfg.Options,
	}
}

// Run executes one cycle end to end. It always returns nil: single
// cycle failures degrade to held data and a capped status, never an
// error out of the scheduling loop.
func (c *Cycle) Run() error {
	if !c.mu.TryLock() {
		c.log.Warn().Msg("Poll cycle already running, skipping")
		return nil
	}
	defer c.mu.Unlock()

	start := time.Now()
	live := c.ingest()

	snap, ok := c.drivingSnapshot()
	if !ok {
		c.log.Warn().Msg("No snapshots held, nothing to evaluate")
		return nil
	}

	result, err := c.computer.Compute(snap)
	if err != nil {
		// Intensity is unavailable this cycle, not zero.
		c.log.Error().Err(err).
			Int64("timestamp_ms", snap.TimestampMs).
			Msg("Intensity unavailable")
		return nil
	}
	result.Stale = !live

	c.recordResult(result)

	if c.intensityLog != nil {
		if err := c.intensityLog.Append(result, snap); err != nil {
			c.log.Error().Err(err).Msg("Intensity log append failed")
		}
	}

	report := c.status.Evaluate(result, c.computer.StorageDrawMW(snap), !live)

	c.log.Info().
		Dur("duration", time.Since(start)).
		Bool("live", live).
		Str("status", string(report.Status)).
		Bool("supergreen", report.Supergreen).
		Float64("retail_intensity", result.RetailIntensity).
		Float64("total_mw", result.TotalGenerationMW).
		Msg("Poll cycle completed")

	return nil
}

// LastResult returns the most recent successfully computed intensity
func (c *Cycle) LastResult() (domain.IntensityResult, bool) {
	c.resultMu.RLock()
	defer c.resultMu.RUnlock()
	return c.lastResult, c.haveResult
}

// ingest pulls fresh points into the store and reports whether the
// cycle is running on live data. On feed failure it falls back to the
// cached last-good snapshot.
func (c *Cycle) ingest() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
	defer cancel()

	points, order, err := c.collect(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("All feeds failed, falling back to cached snapshot")
		c.restoreFromCache()
		return false
	}
	if len(points) == 0 {
		c.log.Warn().Msg("Feeds returned no data points")
		return false
	}

	stats := c.merger.Merge(points, order)
	c.log.Debug().
		Int("points", stats.Points).
		Int("groups", stats.Groups).
		Int("complete", stats.Complete).
		Int("incomplete", stats.Incomplete).
		Msg("Merged feed points")

	c.persistLastGood()
	return true
}

// collect tries the streaming feed first, then the legacy feed. Parse
// failures count the same as transport failures: try the next source.
func (c *Cycle) collect(ctx context.Context) ([]feed.FuelPoint, feed.Order, error) {
	var lastErr error

	if c.fetcher.HasStream() {
		points, err := c.collectStream(ctx)
		if err == nil {
			return points, c.opts.StreamOrder, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Msg("Streaming feed unusable")
	}

	if c.fetcher.HasLegacy() {
		points, err := c.collectLegacy(ctx)
		if err == nil {
			return points, feed.OrderAscending, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Msg("Legacy feed unusable")
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no feed endpoints configured")
	}
	return nil, feed.OrderAscending, lastErr
}

func (c *Cycle) collectStream(ctx context.Context) ([]feed.FuelPoint, error) {
	payload, err := c.fetcher.FetchStream(ctx)
	if err != nil {
		return nil, err
	}
	return feed.ParseStream(payload)
}

func (c *Cycle) collectLegacy(ctx context.Context) ([]feed.FuelPoint, error) {
	payload, err := c.fetcher.FetchLegacy(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := feed.ParseLegacy(payload, c.opts.FeedLabel, c.opts.LegacyTemplate)
	if err != nil {
		return nil, err
	}
	return feed.RowsToPoints(rows, c.opts.TimeField, c.opts.TimeLayout, c.opts.Fuels)
}

// restoreFromCache re-merges the last good snapshot so a restart with a
// dead feed still has something to report.
func (c *Cycle) restoreFromCache() {
	if c.cache == nil {
		return
	}
	snap, err := c.cache.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("No cached snapshot available")
		return
	}
	c.store.Merge(snap.TimestampMs, snap.GenerationByFuel)
	c.log.Info().
		Int64("timestamp_ms", snap.TimestampMs).
		Msg("Restored last good snapshot from cache")
}

// persistLastGood writes the newest complete snapshot to the cache
func (c *Cycle) persistLastGood() {
	if c.cache == nil {
		return
	}
	snap, ok := c.store.NewestMatching(c.merger.IsComplete)
	if !ok {
		return
	}
	if err := c.cache.Store(snap); err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist last good snapshot")
	}
}

// drivingSnapshot picks what this cycle evaluates: the newest complete
// snapshot, falling back to the newest partial one.
func (c *Cycle) drivingSnapshot() (domain.FuelSnapshot, bool) {
	if snap, ok := c.store.NewestMatching(c.merger.IsComplete); ok {
		return snap, true
	}
	return c.store.Latest()
}

func (c *Cycle) recordResult(result domain.IntensityResult) {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	c.lastResult = result
	c.haveResult = true
}
