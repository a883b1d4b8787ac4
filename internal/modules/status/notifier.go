package status

import (
	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/domain"
)

// Notifier receives status-change reports that pass the hysteresis
// gate. Implementations talk to the outside world (logs, webhooks,
// whatever); a Notify failure is reported but never stops a cycle.
type Notifier interface {
	Notify(report domain.StatusReport) error
}

// LogNotifier is the default Notifier. It writes status changes to the
// structured log and nothing else.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(report domain.StatusReport) error {
	n.log.Info().
		Str("status", string(report.Status)).
		Bool("supergreen", report.Supergreen).
		Bool("stale", report.Stale).
		Bool("predicted", report.Predicted).
		Float64("retail_intensity", report.RetailIntensity).
		Msg("Grid status changed")
	return nil
}
