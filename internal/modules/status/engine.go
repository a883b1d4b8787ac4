package status

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/domain"
	"github.com/dmounsey/gridlight/pkg/formulas"
)

// Options configures a status Engine.
type Options struct {
	// WindowSize bounds the rolling retail-intensity series the
	// percentile thresholds are cut from.
	WindowSize int

	// MaxAge is the oldest a snapshot may be and still earn GREEN.
	// Beyond it the status is capped to YELLOW; RED passes through.
	// Zero disables the age check.
	MaxAge time.Duration

	// MinNotifyInterval is the shortest gap between two notifications.
	MinNotifyInterval time.Duration
}

// Engine turns each cycle's intensity result into a traffic-light
// report and pushes changes through the Notifier under hysteresis.
//
// Thresholds are recomputed every evaluation from the rolling window,
// so they track the grid rather than fixed constants: the bottom third
// of recent retail intensities reads GREEN, the top third RED, the rest
// YELLOW.
type Engine struct {
	opts     Options
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	mu             sync.Mutex
	window         []float64
	lastSeenMs     int64
	haveSeen       bool
	lastReport     domain.StatusReport
	haveReport     bool
	lastNotified   domain.Status
	lastNotifiedAt time.Time
}

// NewEngine builds a status engine. notifier must not be nil.
func NewEngine(opts Options, notifier Notifier, log zerolog.Logger) *Engine {
	return &Engine{
		opts:     opts,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Evaluate classifies one intensity result and returns the report.
// storageDrawMW is the storage category's metered output at the same
// snapshot; predicted marks results re-driven from held history rather
// than a live reading.
//
// The rolling window only grows when the snapshot timestamp advances,
// so re-evaluating held data does not skew the thresholds.
func (e *Engine) Evaluate(result domain.IntensityResult, storageDrawMW int, predicted bool) domain.StatusReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	retail := result.RetailIntensity

	if !e.haveSeen || result.TimestampMs != e.lastSeenMs {
		e.push(retail)
		e.lastSeenMs = result.TimestampMs
		e.haveSeen = true
	}

	stale := result.Stale
	if e.opts.MaxAge > 0 && now.Sub(time.UnixMilli(result.TimestampMs)) > e.opts.MaxAge {
		stale = true
	}

	status := e.classify(retail)
	if stale && status.BetterThan(domain.StatusYellow) {
		status = domain.StatusYellow
	}

	report := domain.StatusReport{
		Status:          status,
		Supergreen:      status == domain.StatusGreen && storageDrawMW <= 0,
		Stale:           stale,
		Predicted:       predicted,
		RetailIntensity: retail,
		GeneratedAt:     now,
	}
	e.lastReport = report
	e.haveReport = true

	e.maybeNotify(report, now)
	return report
}

// LastReport returns the most recent report, if any evaluation has run
func (e *Engine) LastReport() (domain.StatusReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport, e.haveReport
}

func (e *Engine) push(retail float64) {
	e.window = append(e.window, retail)
	if e.opts.WindowSize > 0 && len(e.window) > e.opts.WindowSize {
		e.window = e.window[len(e.window)-e.opts.WindowSize:]
	}
}

// classify cuts the window at the 33rd and 67th percentiles. GREEN
// additionally requires the cuts to be distinct: a flat window carries
// no evidence the grid is unusually clean, so it reads YELLOW.
func (e *Engine) classify(retail float64) domain.Status {
	low := formulas.Quantile(1.0/3.0, e.window)
	high := formulas.Quantile(2.0/3.0, e.window)
	if math.IsNaN(low) || math.IsNaN(high) {
		return domain.StatusYellow
	}

	switch {
	case retail > high:
		return domain.StatusRed
	case retail <= low && low < high:
		return domain.StatusGreen
	default:
		return domain.StatusYellow
	}
}

// maybeNotify fires the notifier only when the status differs from the
// last *notified* status and the minimum interval has elapsed. Both
// conditions gate together, so a status that flaps inside the interval
// still notifies once it holds past it.
func (e *Engine) maybeNotify(report domain.StatusReport, now time.Time) {
	if report.Status == e.lastNotified {
		return
	}
	if !e.lastNotifiedAt.IsZero() && now.Sub(e.lastNotifiedAt) < e.opts.MinNotifyInterval {
		return
	}

	if err := e.notifier.Notify(report); err != nil {
		e.log.Error().Err(err).Str("status", string(report.Status)).Msg("Status notification failed")
		return
	}
	e.lastNotified = report.Status
	e.lastNotifiedAt = now
}
