package feed

import (
	"strconv"
	"strings"
	"time"

	"github.com/dmounsey/gridlight/internal/domain"
)

const (
	headerTag  = "HDR"
	trailerTag = "FTR"
)

// Row is one legacy data row, keyed by the template names. Template
// slots with empty names are never materialized as keys.
type Row map[string]string

// ParseLegacy parses the legacy fixed-column feed: an HDR row carrying
// the dataset label, comma-separated data rows whose columns follow the
// caller's template, and an FTR trailer declaring the row count.
//
// Empty input yields an empty result. A label mismatch (when both the
// header label and expectedLabel are non-empty), a row whose field
// count disagrees with the template, or a trailer count that disagrees
// with the rows actually present is a FormatError.
func ParseLegacy(payload []byte, expectedLabel string, template []string) ([]Row, error) {
	lines := splitLines(payload)
	if len(lines) == 0 {
		return nil, nil
	}
	if len(lines) < 2 {
		return nil, domain.NewFormatError("legacy feed", "input has no trailer row")
	}

	header := strings.Split(lines[0], ",")
	if header[0] != headerTag {
		return nil, domain.NewFormatError("legacy feed", "first row is %q, want %s", header[0], headerTag)
	}
	if len(header) > 1 {
		label := strings.TrimSpace(header[1])
		if label != "" && expectedLabel != "" && label != expectedLabel {
			return nil, domain.NewFormatError("legacy feed", "dataset label %q, want %q", label, expectedLabel)
		}
	}

	trailer := strings.Split(lines[len(lines)-1], ",")
	if trailer[0] != trailerTag {
		return nil, domain.NewFormatError("legacy feed", "last row is %q, want %s", trailer[0], trailerTag)
	}
	if len(trailer) < 2 {
		return nil, domain.NewFormatError("legacy feed", "trailer declares no row count")
	}
	declared, err := strconv.Atoi(strings.TrimSpace(trailer[1]))
	if err != nil {
		return nil, domain.NewFormatError("legacy feed", "trailer count %q is not numeric", trailer[1])
	}

	dataLines := lines[1 : len(lines)-1]
	if declared != len(dataLines) {
		return nil, domain.NewFormatError("legacy feed", "trailer declares %d rows, found %d", declared, len(dataLines))
	}

	rows := make([]Row, 0, len(dataLines))
	for i, line := range dataLines {
		fields := strings.Split(line, ",")
		if len(fields) != len(template) {
			return nil, domain.NewFormatError("legacy feed", "row %d has %d fields, template names %d", i+1, len(fields), len(template))
		}

		row := make(Row, len(template))
		for pos, name := range template {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			row[name] = strings.TrimSpace(fields[pos])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// RowsToPoints converts legacy rows into flat fuel points. timeField
// names the row key carrying the observation time in timeLayout
// (interpreted as UTC); fuels lists the row keys that are fuel
// readings. Row keys outside fuels are ignored, and a listed fuel
// absent from a row is simply not emitted.
func RowsToPoints(rows []Row, timeField, timeLayout string, fuels []string) ([]FuelPoint, error) {
	points := make([]FuelPoint, 0, len(rows)*len(fuels))
	for i, row := range rows {
		raw, ok := row[timeField]
		if !ok {
			return nil, domain.NewFormatError("legacy feed", "row %d has no %q field", i+1, timeField)
		}
		ts, err := time.ParseInLocation(timeLayout, raw, time.UTC)
		if err != nil {
			return nil, domain.NewFormatError("legacy feed", "row %d time %q does not match layout %q", i+1, raw, timeLayout)
		}

		for _, fuel := range fuels {
			value, ok := row[fuel]
			if !ok {
				continue
			}
			mw, err := strconv.Atoi(value)
			if err != nil {
				return nil, domain.NewFormatError("legacy feed", "row %d fuel %s reading %q is not an integer", i+1, fuel, value)
			}
			points = append(points, FuelPoint{
				TimestampMs:  ts.UnixMilli(),
				Fuel:         fuel,
				GenerationMW: mw,
			})
		}
	}
	return points, nil
}

// splitLines breaks the payload into trimmed non-empty lines
func splitLines(payload []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
