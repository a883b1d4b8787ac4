package status

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmounsey/gridlight/internal/domain"
)

type recordingNotifier struct {
	reports  []domain.StatusReport
	failNext int
}

func (n *recordingNotifier) Notify(report domain.StatusReport) error {
	if n.failNext > 0 {
		n.failNext--
		return errors.New("notifier unavailable")
	}
	n.reports = append(n.reports, report)
	return nil
}

var testBase = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// harness wires an engine to a recording notifier and a manual clock.
type harness struct {
	engine   *Engine
	notifier *recordingNotifier
	clock    time.Time
}

func newHarness(opts Options) *harness {
	h := &harness{
		notifier: &recordingNotifier{},
		clock:    testBase,
	}
	h.engine = NewEngine(opts, h.notifier, zerolog.Nop())
	h.engine.now = func() time.Time { return h.clock }
	return h
}

// eval feeds one fresh reading stamped at the current clock.
func (h *harness) eval(retail float64, storageDrawMW int) domain.StatusReport {
	result := domain.IntensityResult{
		TimestampMs:       h.clock.UnixMilli(),
		WeightedIntensity: retail,
		RetailIntensity:   retail,
	}
	return h.engine.Evaluate(result, storageDrawMW, false)
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

// seedWindow preloads the rolling series without running evaluations,
// so classification tests start from a known spread.
func (h *harness) seedWindow(values ...float64) {
	h.engine.window = append(h.engine.window, values...)
}

func TestEvaluateClassifiesAgainstRollingThirds(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MinNotifyInterval: time.Minute})
	h.seedWindow(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)

	report := h.eval(0.1, 0)
	assert.Equal(t, domain.StatusGreen, report.Status)
	assert.False(t, report.Stale)

	h.advance(5 * time.Minute)
	report = h.eval(0.65, 0)
	assert.Equal(t, domain.StatusRed, report.Status)

	h.advance(5 * time.Minute)
	report = h.eval(0.3, 0)
	assert.Equal(t, domain.StatusYellow, report.Status)
}

func TestEvaluateFlatWindowNeverReadsGreen(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MinNotifyInterval: time.Minute})

	// Identical readings carry no evidence the grid is unusually clean.
	for i := 0; i < 5; i++ {
		report := h.eval(0.4, 0)
		assert.Equal(t, domain.StatusYellow, report.Status)
		h.advance(5 * time.Minute)
	}
}

func TestEvaluateStaleCapsGreenToYellow(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MaxAge: 30 * time.Minute, MinNotifyInterval: time.Minute})
	h.seedWindow(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)

	// The reading is two hours old by the time it is evaluated.
	result := domain.IntensityResult{
		TimestampMs:     testBase.Add(-2 * time.Hour).UnixMilli(),
		RetailIntensity: 0.1,
	}
	report := h.engine.Evaluate(result, 0, false)

	assert.True(t, report.Stale)
	assert.Equal(t, domain.StatusYellow, report.Status)
	assert.False(t, report.Supergreen)
}

func TestEvaluateStaleStillPermitsRed(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MaxAge: 30 * time.Minute, MinNotifyInterval: time.Minute})
	h.seedWindow(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)

	result := domain.IntensityResult{
		TimestampMs:     testBase.Add(-2 * time.Hour).UnixMilli(),
		RetailIntensity: 0.9,
	}
	report := h.engine.Evaluate(result, 0, false)

	assert.True(t, report.Stale)
	assert.Equal(t, domain.StatusRed, report.Status)
}

func TestEvaluateHonoursExplicitStaleFlag(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MaxAge: time.Hour, MinNotifyInterval: time.Minute})
	h.seedWindow(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)

	// Fresh timestamp, but the pipeline already knows it came from the
	// fallback cache.
	result := domain.IntensityResult{
		TimestampMs:     h.clock.UnixMilli(),
		RetailIntensity: 0.1,
		Stale:           true,
	}
	report := h.engine.Evaluate(result, 0, false)

	assert.True(t, report.Stale)
	assert.Equal(t, domain.StatusYellow, report.Status)
}

func TestEvaluateSupergreenNeedsGreenAndNoStorageDraw(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MinNotifyInterval: time.Minute})
	h.seedWindow(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)

	report := h.eval(0.1, -50)
	require.Equal(t, domain.StatusGreen, report.Status)
	assert.True(t, report.Supergreen)

	h.advance(5 * time.Minute)
	report = h.eval(0.1, 400)
	require.Equal(t, domain.StatusGreen, report.Status)
	assert.False(t, report.Supergreen)

	h.advance(5 * time.Minute)
	report = h.eval(0.1, 0)
	require.Equal(t, domain.StatusGreen, report.Status)
	assert.True(t, report.Supergreen)
}

func TestEvaluateNotificationHysteresis(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MinNotifyInterval: 20 * time.Minute})
	h.seedWindow(0.1, 0.2, 0.3, 0.4, 0.5, 0.6)

	// First status is a change from nothing and notifies immediately.
	report := h.eval(0.65, 0)
	require.Equal(t, domain.StatusRed, report.Status)
	require.Len(t, h.notifier.reports, 1)

	// GREEN five minutes later differs, but the interval has not
	// elapsed.
	h.advance(5 * time.Minute)
	report = h.eval(0.1, 0)
	require.Equal(t, domain.StatusGreen, report.Status)
	assert.Len(t, h.notifier.reports, 1)

	// Reverts to RED before the interval elapses: same as last
	// notified, nothing fires.
	h.advance(5 * time.Minute)
	report = h.eval(0.7, 0)
	require.Equal(t, domain.StatusRed, report.Status)
	assert.Len(t, h.notifier.reports, 1)

	// Past the interval a differing status finally fires.
	h.advance(15 * time.Minute)
	report = h.eval(0.12, 0)
	require.Equal(t, domain.StatusGreen, report.Status)
	require.Len(t, h.notifier.reports, 2)

	assert.Equal(t, domain.StatusRed, h.notifier.reports[0].Status)
	assert.Equal(t, domain.StatusGreen, h.notifier.reports[1].Status)
}

func TestEvaluateRetriesAfterNotifierFailure(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MinNotifyInterval: 20 * time.Minute})
	h.notifier.failNext = 1

	h.eval(0.4, 0)
	assert.Empty(t, h.notifier.reports)

	// The failed attempt did not consume the change; the next cycle
	// retries and succeeds.
	h.advance(5 * time.Minute)
	h.eval(0.4, 0)
	require.Len(t, h.notifier.reports, 1)
	assert.Equal(t, domain.StatusYellow, h.notifier.reports[0].Status)
}

func TestEvaluateHeldSnapshotDoesNotGrowWindow(t *testing.T) {
	h := newHarness(Options{WindowSize: 100, MinNotifyInterval: time.Minute})

	result := domain.IntensityResult{
		TimestampMs:     h.clock.UnixMilli(),
		RetailIntensity: 0.4,
	}
	h.engine.Evaluate(result, 0, false)
	require.Len(t, h.engine.window, 1)

	// Fetch failed; the pipeline re-drives the same snapshot as a
	// prediction. The thresholds must not drift toward the held value.
	report := h.engine.Evaluate(result, 0, true)
	assert.True(t, report.Predicted)
	assert.Len(t, h.engine.window, 1)
}

func TestEvaluateWindowIsBounded(t *testing.T) {
	h := newHarness(Options{WindowSize: 3, MinNotifyInterval: time.Minute})

	for _, v := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6} {
		h.eval(v, 0)
		h.advance(5 * time.Minute)
	}
	assert.Len(t, h.engine.window, 3)
	assert.Equal(t, []float64{0.4, 0.5, 0.6}, h.engine.window)
}

func TestLastReport(t *testing.T) {
	h := newHarness(Options{WindowSize: 10, MinNotifyInterval: time.Minute})

	_, ok := h.engine.LastReport()
	assert.False(t, ok)

	want := h.eval(0.4, 0)
	got, ok := h.engine.LastReport()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLogNotifierNeverFails(t *testing.T) {
	notifier := NewLogNotifier(zerolog.Nop())
	assert.NoError(t, notifier.Notify(domain.StatusReport{Status: domain.StatusGreen}))
}
