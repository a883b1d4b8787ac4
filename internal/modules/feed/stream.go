package feed

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/dmounsey/gridlight/internal/domain"
)

// FuelPoint is one raw feed reading: a fuel's metered output at one
// settlement timestamp.
type FuelPoint struct {
	TimestampMs  int64
	Fuel         string
	GenerationMW int
}

// PointGroup is every reading that shares one timestamp, as a
// partial-or-complete fuel map.
type PointGroup struct {
	TimestampMs int64
	Generation  map[string]int
}

// Order states how a batch of points was published. The merger must be
// told; it never assumes.
type Order int

const (
	// OrderAscending means the oldest publication comes first.
	OrderAscending Order = iota
	// OrderDescending means the newest publication comes first.
	OrderDescending
)

// streamRecord is one element of the modern streaming-JSON feed.
// Extra fields in the payload are ignored.
type streamRecord struct {
	StartTime  string `json:"startTime"`
	FuelType   string `json:"fuelType"`
	Generation int    `json:"generation"`
}

// ParseStream parses the modern feed: a JSON array of per-fuel point
// records. Points come back in payload order; ISO-8601 start times
// become epoch-millisecond keys. Empty input yields an empty result.
func ParseStream(payload []byte) ([]FuelPoint, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}

	var records []streamRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, domain.NewFormatError("stream feed", "invalid JSON: %v", err)
	}

	points := make([]FuelPoint, 0, len(records))
	for i, rec := range records {
		if rec.StartTime == "" {
			return nil, domain.NewFormatError("stream feed", "record %d has no startTime", i)
		}
		if rec.FuelType == "" {
			return nil, domain.NewFormatError("stream feed", "record %d has no fuelType", i)
		}
		ts, err := time.Parse(time.RFC3339, rec.StartTime)
		if err != nil {
			return nil, domain.NewFormatError("stream feed", "record %d startTime %q is not ISO-8601", i, rec.StartTime)
		}
		points = append(points, FuelPoint{
			TimestampMs:  ts.UnixMilli(),
			Fuel:         rec.FuelType,
			GenerationMW: rec.Generation,
		})
	}
	return points, nil
}

// Group folds points into one fuel map per timestamp. order states the
// batch's publish order so that the latest publication wins when the
// same (timestamp, fuel) pair repeats. Groups come back sorted by
// timestamp ascending.
func Group(points []FuelPoint, order Order) []PointGroup {
	byTS := make(map[int64]map[string]int)

	fold := func(p FuelPoint) {
		g, ok := byTS[p.TimestampMs]
		if !ok {
			g = make(map[string]int)
			byTS[p.TimestampMs] = g
		}
		g[p.Fuel] = p.GenerationMW
	}

	// Walk in publish order, oldest first, so overwrites are newest-wins.
	if order == OrderDescending {
		for i := len(points) - 1; i >= 0; i-- {
			fold(points[i])
		}
	} else {
		for _, p := range points {
			fold(p)
		}
	}

	groups := make([]PointGroup, 0, len(byTS))
	for ts, generation := range byTS {
		groups = append(groups, PointGroup{TimestampMs: ts, Generation: generation})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].TimestampMs < groups[j].TimestampMs
	})
	return groups
}
