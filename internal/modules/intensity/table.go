package intensity

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/dmounsey/gridlight/internal/domain"
)

const (
	openFrom = math.MinInt32
	openTo   = math.MaxInt32
)

// coefficient is one date-ranged intensity value. Bounds are inclusive
// years; open ends use openFrom/openTo.
type coefficient struct {
	from  int
	to    int
	value float64
}

func (c coefficient) covers(year int) bool {
	return c.from <= year && year <= c.to
}

func (c coefficient) span() int {
	return c.to - c.from
}

// Table resolves the effective emission intensity (kgCO2/kWh) for a
// fuel code in a given year. Built once at load from flat config keys;
// a key may carry a date-range qualifier after the fuel code
// ("INTIRL /2011", "INTIRL 2012/2021", "INTIRL 2024/"). Emitted fuel
// codes never contain the range delimiter.
type Table struct {
	dated   map[string][]coefficient // narrowest range first
	undated map[string]float64
	fuels   []string // sorted
}

// NewTable parses flat coefficient keys into a resolution table.
// A malformed qualifier (non-numeric bound, missing delimiter, inverted
// range) is a FormatError at load, never at resolve.
func NewTable(flat map[string]float64) (*Table, error) {
	t := &Table{
		dated:   make(map[string][]coefficient),
		undated: make(map[string]float64),
	}

	seen := make(map[string]bool)
	for key, value := range flat {
		key = strings.TrimSpace(key)
		fuel, qualifier, hasQualifier := strings.Cut(key, " ")
		if fuel == "" {
			return nil, domain.NewFormatError("intensity coefficients", "empty fuel code in key %q", key)
		}
		if strings.Contains(fuel, "/") {
			return nil, domain.NewFormatError("intensity coefficients", "key %q mixes fuel code and range without a separator", key)
		}

		if !hasQualifier {
			t.undated[fuel] = value
			seen[fuel] = true
			continue
		}

		from, to, err := parseYearRange(strings.TrimSpace(qualifier))
		if err != nil {
			return nil, domain.NewFormatError("intensity coefficients", "key %q: %v", key, err)
		}
		t.dated[fuel] = append(t.dated[fuel], coefficient{from: from, to: to, value: value})
		seen[fuel] = true
	}

	// Narrowest range first so the most specific match wins.
	for _, coeffs := range t.dated {
		sort.Slice(coeffs, func(i, j int) bool {
			if coeffs[i].span() != coeffs[j].span() {
				return coeffs[i].span() < coeffs[j].span()
			}
			return coeffs[i].from < coeffs[j].from
		})
	}

	t.fuels = lo.Keys(seen)
	sort.Strings(t.fuels)

	return t, nil
}

// parseYearRange parses "from/to" with optional open ends: "/2011" is
// everything up to and including 2011, "2012/" is 2012 onward,
// "2012/2021" is inclusive both ends.
func parseYearRange(q string) (int, int, error) {
	fromStr, toStr, found := strings.Cut(q, "/")
	if !found {
		return 0, 0, fmt.Errorf("qualifier %q has no '/' delimiter", q)
	}
	if fromStr == "" && toStr == "" {
		return 0, 0, fmt.Errorf("qualifier %q is empty on both ends", q)
	}

	from := openFrom
	if fromStr != "" {
		parsed, err := strconv.Atoi(fromStr)
		if err != nil {
			return 0, 0, fmt.Errorf("start year %q is not numeric", fromStr)
		}
		from = parsed
	}

	to := openTo
	if toStr != "" {
		parsed, err := strconv.Atoi(toStr)
		if err != nil {
			return 0, 0, fmt.Errorf("end year %q is not numeric", toStr)
		}
		to = parsed
	}

	if from > to {
		return 0, 0, fmt.Errorf("range %q is inverted", q)
	}
	return from, to, nil
}

// Resolve returns the effective coefficient for a fuel in a year:
// the narrowest dated range covering the year, then the undated
// fallback, else absent. Absent fuels are excluded from weighting,
// never treated as zero.
func (t *Table) Resolve(fuel string, year int) (float64, bool) {
	if c, found := lo.Find(t.dated[fuel], func(c coefficient) bool {
		return c.covers(year)
	}); found {
		return c.value, true
	}
	v, ok := t.undated[fuel]
	return v, ok
}

// Fuels returns every fuel code with at least one coefficient, sorted
func (t *Table) Fuels() []string {
	out := make([]string, len(t.fuels))
	copy(out, t.fuels)
	return out
}

// CheckForwardCompleteness returns the fuels that resolve for year but
// not for year+1. A non-empty result means the configuration will go
// blind for those fuels at the turn of the year; callers log it as a
// warning, it is never fatal.
func (t *Table) CheckForwardCompleteness(year int) []string {
	var missing []string
	for _, fuel := range t.fuels {
		if _, ok := t.Resolve(fuel, year); !ok {
			continue
		}
		if _, ok := t.Resolve(fuel, year+1); !ok {
			missing = append(missing, fuel)
		}
	}
	return missing
}
