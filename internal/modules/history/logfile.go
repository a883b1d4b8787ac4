package history

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dmounsey/gridlight/internal/domain"
)

// IntensityLog appends one line per pipeline cycle to a flat file:
//
//	<RFC3339 time>,<retail kg/kWh>,<weighted kg/kWh>,<total MW>,<FUEL:MW;FUEL:MW;…>
//
// Fuels are sorted so identical snapshots produce identical lines.
type IntensityLog struct {
	path string
}

// NewIntensityLog creates a logger appending to path
func NewIntensityLog(path string) *IntensityLog {
	return &IntensityLog{path: path}
}

// Append writes one cycle's figures. The file is created on first use.
func (l *IntensityLog) Append(result domain.IntensityResult, snap domain.FuelSnapshot) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open intensity log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s,%.6f,%.6f,%.1f,%s\n",
		time.UnixMilli(result.TimestampMs).UTC().Format(time.RFC3339),
		result.RetailIntensity,
		result.WeightedIntensity,
		result.TotalGenerationMW,
		formatFuels(snap.GenerationByFuel),
	)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append intensity log: %w", err)
	}
	return nil
}

func formatFuels(generation map[string]int) string {
	fuels := make([]string, 0, len(generation))
	for fuel := range generation {
		fuels = append(fuels, fuel)
	}
	sort.Strings(fuels)

	parts := make([]string, 0, len(fuels))
	for _, fuel := range fuels {
		parts = append(parts, fmt.Sprintf("%s:%d", fuel, generation[fuel]))
	}
	return strings.Join(parts, ";")
}
