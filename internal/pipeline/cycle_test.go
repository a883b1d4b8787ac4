package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmounsey/gridlight/internal/domain"
	"github.com/dmounsey/gridlight/internal/modules/feed"
	"github.com/dmounsey/gridlight/internal/modules/history"
	"github.com/dmounsey/gridlight/internal/modules/intensity"
	"github.com/dmounsey/gridlight/internal/modules/status"
)

type fakeFetcher struct {
	stream    []byte
	streamErr error
	legacy    []byte
	legacyErr error
}

func (f *fakeFetcher) FetchStream(ctx context.Context) ([]byte, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream, nil
}

func (f *fakeFetcher) FetchLegacy(ctx context.Context) ([]byte, error) {
	if f.legacyErr != nil {
		return nil, f.legacyErr
	}
	return f.legacy, nil
}

func (f *fakeFetcher) HasStream() bool { return f.stream != nil || f.streamErr != nil }
func (f *fakeFetcher) HasLegacy() bool { return f.legacy != nil || f.legacyErr != nil }

const streamPayload = `[
  {"startTime":"2024-06-15T11:55:00Z","fuelType":"COAL","generation":750},
  {"startTime":"2024-06-15T11:55:00Z","fuelType":"WIND","generation":250},
  {"startTime":"2024-06-15T12:00:00Z","fuelType":"COAL","generation":1000},
  {"startTime":"2024-06-15T12:00:00Z","fuelType":"WIND","generation":1000}
]`

const legacyPayload = "HDR,FUELINST\n" +
	"FUELINST,20240615115500,750,250\n" +
	"FUELINST,20240615120000,1000,1000\n" +
	"FTR,2\n"

type testDeps struct {
	cycle   *Cycle
	store   *history.Store
	status  *status.Engine
	cache   *history.SnapshotCache
	logPath string
}

func newTestCycle(t *testing.T, fetcher Fetcher) *testDeps {
	t.Helper()

	table, err := intensity.NewTable(map[string]float64{"COAL": 1.0, "WIND": 0.0})
	require.NoError(t, err)
	computer := intensity.NewComputer(table, intensity.Options{})

	store := history.NewStore(0)
	merger := feed.NewMerger(store, []string{"COAL", "WIND"})
	statusEng := status.NewEngine(
		status.Options{WindowSize: 10},
		status.NewLogNotifier(zerolog.Nop()),
		zerolog.Nop(),
	)

	dir := t.TempDir()
	cache := history.NewSnapshotCache(filepath.Join(dir, "last_good.json"))
	logPath := filepath.Join(dir, "intensity.log")

	cycle := NewCycle(Config{
		Log:          zerolog.Nop(),
		Fetcher:      fetcher,
		Merger:       merger,
		Store:        store,
		Computer:     computer,
		Status:       statusEng,
		IntensityLog: history.NewIntensityLog(logPath),
		Cache:        cache,
		Options: Options{
			FeedLabel:      "FUELINST",
			LegacyTemplate: []string{"", "timestamp", "COAL", "WIND"},
			TimeField:      "timestamp",
			TimeLayout:     "20060102150405",
			Fuels:          []string{"COAL", "WIND"},
			StreamOrder:    feed.OrderAscending,
			FetchTimeout:   time.Second,
		},
	})
	return &testDeps{cycle: cycle, store: store, status: statusEng, cache: cache, logPath: logPath}
}

func TestRunIngestsStreamFeed(t *testing.T) {
	deps := newTestCycle(t, &fakeFetcher{stream: []byte(streamPayload)})

	require.NoError(t, deps.cycle.Run())

	assert.Equal(t, 2, deps.store.Len())

	result, ok := deps.cycle.LastResult()
	require.True(t, ok)
	assert.InDelta(t, 0.5, result.WeightedIntensity, 1e-12)
	assert.False(t, result.Stale)

	report, ok := deps.status.LastReport()
	require.True(t, ok)
	assert.False(t, report.Predicted)

	// The newest complete snapshot was persisted as last-good.
	cached, err := deps.cache.Load()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).UnixMilli(), cached.TimestampMs)

	// Re-running with identical data is a no-op on history, but still
	// appends one intensity line per cycle.
	require.NoError(t, deps.cycle.Run())
	assert.Equal(t, 2, deps.store.Len())

	content, err := os.ReadFile(deps.logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "\n"))
}

func TestRunFallsBackToLegacyFeed(t *testing.T) {
	t.Run("stream transport failure", func(t *testing.T) {
		deps := newTestCycle(t, &fakeFetcher{
			streamErr: &domain.FetchError{URL: "https://stream", Err: context.DeadlineExceeded},
			legacy:    []byte(legacyPayload),
		})

		require.NoError(t, deps.cycle.Run())
		assert.Equal(t, 2, deps.store.Len())

		result, ok := deps.cycle.LastResult()
		require.True(t, ok)
		assert.InDelta(t, 0.5, result.WeightedIntensity, 1e-12)
		assert.False(t, result.Stale)
	})

	t.Run("stream parse failure", func(t *testing.T) {
		deps := newTestCycle(t, &fakeFetcher{
			stream: []byte("{definitely not an array"),
			legacy: []byte(legacyPayload),
		})

		require.NoError(t, deps.cycle.Run())
		assert.Equal(t, 2, deps.store.Len())
	})
}

func TestRunFallsBackToCacheOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		streamErr: &domain.FetchError{URL: "https://stream", Err: context.DeadlineExceeded},
		legacyErr: &domain.FetchError{URL: "https://legacy", Err: context.DeadlineExceeded},
	}
	deps := newTestCycle(t, fetcher)

	ts := time.Date(2024, 6, 15, 11, 55, 0, 0, time.UTC).UnixMilli()
	require.NoError(t, deps.cache.Store(domain.FuelSnapshot{
		TimestampMs:      ts,
		GenerationByFuel: map[string]int{"COAL": 750, "WIND": 250},
	}))

	require.NoError(t, deps.cycle.Run())

	assert.Equal(t, 1, deps.store.Len())

	result, ok := deps.cycle.LastResult()
	require.True(t, ok)
	assert.InDelta(t, 0.75, result.WeightedIntensity, 1e-12)
	assert.True(t, result.Stale)

	report, ok := deps.status.LastReport()
	require.True(t, ok)
	assert.True(t, report.Predicted)
	assert.True(t, report.Stale)
}

func TestRunWithNoDataAtAllDoesNothing(t *testing.T) {
	deps := newTestCycle(t, &fakeFetcher{
		streamErr: &domain.FetchError{URL: "https://stream", Err: context.DeadlineExceeded},
		legacyErr: &domain.FetchError{URL: "https://legacy", Err: context.DeadlineExceeded},
	})

	require.NoError(t, deps.cycle.Run())

	assert.Equal(t, 0, deps.store.Len())
	_, ok := deps.cycle.LastResult()
	assert.False(t, ok)
	_, ok = deps.status.LastReport()
	assert.False(t, ok)
}

func TestRunEmptyFeedDrivesPrediction(t *testing.T) {
	fetcher := &fakeFetcher{stream: []byte(streamPayload)}
	deps := newTestCycle(t, fetcher)

	require.NoError(t, deps.cycle.Run())
	report, ok := deps.status.LastReport()
	require.True(t, ok)
	require.False(t, report.Predicted)

	// The feed goes quiet: status keeps being driven from held data,
	// flagged as a prediction.
	fetcher.stream = []byte("[]")
	require.NoError(t, deps.cycle.Run())

	report, ok = deps.status.LastReport()
	require.True(t, ok)
	assert.True(t, report.Predicted)
	assert.True(t, report.Stale)

	result, ok := deps.cycle.LastResult()
	require.True(t, ok)
	assert.True(t, result.Stale)
}

func TestRunReportsIntensityUnavailable(t *testing.T) {
	deps := newTestCycle(t, &fakeFetcher{
		stream: []byte(`[{"startTime":"2024-06-15T11:55:00Z","fuelType":"MYSTERY","generation":100}]`),
	})

	require.NoError(t, deps.cycle.Run())

	// The snapshot merged, but no coefficient resolves for its only
	// fuel, so intensity stays unavailable rather than zero.
	assert.Equal(t, 1, deps.store.Len())
	_, ok := deps.cycle.LastResult()
	assert.False(t, ok)
}

func TestRunSkipsWhenCycleAlreadyRunning(t *testing.T) {
	deps := newTestCycle(t, &fakeFetcher{stream: []byte(streamPayload)})

	deps.cycle.mu.Lock()
	defer deps.cycle.mu.Unlock()

	require.NoError(t, deps.cycle.Run())
	assert.Equal(t, 0, deps.store.Len())
}
