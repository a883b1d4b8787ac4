package feed

import (
	"github.com/samber/lo"

	"github.com/dmounsey/gridlight/internal/domain"
)

// SnapshotStore is the history side of the merge: an idempotent upsert
// that folds a partial fuel map into the snapshot for a timestamp and
// returns the merged state.
type SnapshotStore interface {
	Merge(timestampMs int64, generation map[string]int) domain.FuelSnapshot
}

// MergeStats summarizes one merge pass
type MergeStats struct {
	Points     int
	Groups     int
	Complete   int
	Incomplete int
}

// Merger folds parsed feed points into the history store,
// last-write-wins per (timestamp, fuel). Re-merging an identical batch
// is a no-op. A snapshot is complete once it carries every expected
// fuel code; incomplete snapshots stay visible but flagged.
type Merger struct {
	store    SnapshotStore
	expected []string
}

// NewMerger builds a merger. expectedFuels is the union of configured
// category members: the codes a complete snapshot must carry.
func NewMerger(store SnapshotStore, expectedFuels []string) *Merger {
	return &Merger{store: store, expected: expectedFuels}
}

// Merge groups points by timestamp and folds each group into the
// store. order states the batch's publish order; the merger never
// assumes one. Out-of-order and duplicate timestamps are tolerated.
func (m *Merger) Merge(points []FuelPoint, order Order) MergeStats {
	groups := Group(points, order)

	stats := MergeStats{Points: len(points), Groups: len(groups)}
	for _, g := range groups {
		merged := m.store.Merge(g.TimestampMs, g.Generation)
		if m.IsComplete(merged) {
			stats.Complete++
		} else {
			stats.Incomplete++
		}
	}
	return stats
}

// IsComplete reports whether a snapshot carries every expected fuel
func (m *Merger) IsComplete(snap domain.FuelSnapshot) bool {
	return lo.EveryBy(m.expected, func(fuel string) bool {
		_, ok := snap.GenerationByFuel[fuel]
		return ok
	})
}
