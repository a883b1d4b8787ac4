package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/dmounsey/gridlight/internal/domain"
)

// Named category sets. Storage is special: its fuels are excluded from
// intensity weighting entirely.
const (
	CategoryStorage   = "storage"
	CategoryFossil    = "fossil"
	CategoryImport    = "import"
	CategoryNuclear   = "nuclear"
	CategoryRenewable = "renewable"
	CategoryLowCarbon = "low_carbon"
)

// ScaleFactor inflates one fuel's metered MW before weighting, e.g. to
// account for embedded generation the feed cannot see. A factor without
// a documented justification is rejected at load.
type ScaleFactor struct {
	Factor        float64 `yaml:"factor"`
	Justification string  `yaml:"justification"`
}

// Losses are the grid delivery loss fractions used to convert the
// generation-side intensity into the retail figure.
type Losses struct {
	Transmission float64 `yaml:"transmission"`
	Distribution float64 `yaml:"distribution"`
}

// Fuels is the parsed fuel data file: everything the pipeline knows
// about fuel codes beyond the feed itself. Intensity keys may carry a
// date-range qualifier after the fuel code ("INTIRL 2012/2021"); the
// qualifier grammar is parsed by the intensity table, not here.
type Fuels struct {
	Intensity    map[string]float64     `yaml:"intensity"`
	DisplayNames map[string]string      `yaml:"display_names"`
	Categories   map[string][]string    `yaml:"categories"`
	ScaleFactors map[string]ScaleFactor `yaml:"scale_factors"`
	Losses       Losses                 `yaml:"losses"`
}

// LoadFuels reads and validates the fuel data file
func LoadFuels(path string) (*Fuels, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fuels file: %w", err)
	}
	return ParseFuels(raw, path)
}

// ParseFuels parses and validates fuel data from YAML bytes.
// source names the input in errors.
func ParseFuels(raw []byte, source string) (*Fuels, error) {
	var f Fuels
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, domain.NewFormatError(source, "invalid YAML: %v", err)
	}

	if len(f.Intensity) == 0 {
		return nil, domain.NewFormatError(source, "no intensity coefficients configured")
	}
	for fuel, sf := range f.ScaleFactors {
		if sf.Factor <= 0 {
			return nil, domain.NewFormatError(source, "scale factor for %s must be positive, got %v", fuel, sf.Factor)
		}
		if strings.TrimSpace(sf.Justification) == "" {
			return nil, domain.NewFormatError(source, "scale factor for %s is missing its justification", fuel)
		}
	}
	if f.Losses.Transmission < 0 || f.Losses.Transmission >= 1 {
		return nil, domain.NewFormatError(source, "transmission loss %v out of [0,1)", f.Losses.Transmission)
	}
	if f.Losses.Distribution < 0 || f.Losses.Distribution >= 1 {
		return nil, domain.NewFormatError(source, "distribution loss %v out of [0,1)", f.Losses.Distribution)
	}

	return &f, nil
}

// Category returns the fuel codes in one named category, empty when
// the category is not configured
func (f *Fuels) Category(name string) []string {
	return f.Categories[name]
}

// ExpectedFuels returns the union of all category members, sorted.
// This is the fuel set a snapshot must carry to count as complete.
func (f *Fuels) ExpectedFuels() []string {
	fuels := lo.Uniq(lo.Flatten(lo.Values(f.Categories)))
	sort.Strings(fuels)
	return fuels
}

// CategoriesOf returns the sorted names of every category containing
// fuel. A fuel may belong to several (WIND is both renewable and
// low-carbon).
func (f *Fuels) CategoriesOf(fuel string) []string {
	var names []string
	for name, members := range f.Categories {
		if lo.Contains(members, fuel) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// FactorByFuel flattens the scale factors for the intensity computer
func (f *Fuels) FactorByFuel() map[string]float64 {
	out := make(map[string]float64, len(f.ScaleFactors))
	for fuel, sf := range f.ScaleFactors {
		out[fuel] = sf.Factor
	}
	return out
}

// DisplayName returns the configured human-readable name for a fuel
// code, falling back to the code itself
func (f *Fuels) DisplayName(fuel string) string {
	if name, ok := f.DisplayNames[fuel]; ok {
		return name
	}
	return fuel
}
