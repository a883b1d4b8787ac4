package history

import (
	"sort"
	"sync"

	"github.com/dmounsey/gridlight/internal/domain"
)

// Store owns the canonical snapshot sequence: one FuelSnapshot per
// unique timestamp, bounded by a retention count. Mutation happens only
// through Merge; every read hands out clones, so callers hold immutable
// views.
type Store struct {
	mu        sync.RWMutex
	snaps     map[int64]domain.FuelSnapshot
	order     []int64 // ascending timestamps
	retention int
}

// NewStore creates an empty store keeping at most retention snapshots.
// retention <= 0 means unbounded.
func NewStore(retention int) *Store {
	return &Store{
		snaps:     make(map[int64]domain.FuelSnapshot),
		retention: retention,
	}
}

// Merge folds a partial fuel map into the snapshot for a timestamp,
// last-write-wins per fuel, and returns the merged state. Re-merging
// identical data is a no-op, so duplicate fetches are safe.
func (s *Store) Merge(timestampMs int64, generation map[string]int) domain.FuelSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, exists := s.snaps[timestampMs]
	if !exists {
		snap = domain.NewFuelSnapshot(timestampMs)
		s.insertOrdered(timestampMs)
	}
	for fuel, mw := range generation {
		snap.GenerationByFuel[fuel] = mw
	}
	s.snaps[timestampMs] = snap

	s.prune()

	return snap.Clone()
}

func (s *Store) insertOrdered(timestampMs int64) {
	i := sort.Search(len(s.order), func(i int) bool {
		return s.order[i] >= timestampMs
	})
	s.order = append(s.order, 0)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = timestampMs
}

func (s *Store) prune() {
	if s.retention <= 0 {
		return
	}
	for len(s.order) > s.retention {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.snaps, oldest)
	}
}

// Len returns the number of snapshots held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Latest returns the newest snapshot
func (s *Store) Latest() (domain.FuelSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return domain.FuelSnapshot{}, false
	}
	return s.snaps[s.order[len(s.order)-1]].Clone(), true
}

// NewestMatching walks newest-first and returns the first snapshot the
// predicate accepts. The pipeline uses it to find the newest complete
// snapshot.
func (s *Store) NewestMatching(pred func(domain.FuelSnapshot) bool) (domain.FuelSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		snap := s.snaps[s.order[i]]
		if pred(snap) {
			return snap.Clone(), true
		}
	}
	return domain.FuelSnapshot{}, false
}

// Window returns the newest n snapshots in ascending timestamp order
func (s *Store) Window(n int) []domain.FuelSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.order) == 0 {
		return nil
	}
	if n > len(s.order) {
		n = len(s.order)
	}

	out := make([]domain.FuelSnapshot, 0, n)
	for _, ts := range s.order[len(s.order)-n:] {
		out = append(out, s.snaps[ts].Clone())
	}
	return out
}

// Since returns every snapshot at or after a timestamp, ascending
func (s *Store) Since(timestampMs int64) []domain.FuelSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := sort.Search(len(s.order), func(i int) bool {
		return s.order[i] >= timestampMs
	})

	out := make([]domain.FuelSnapshot, 0, len(s.order)-start)
	for _, ts := range s.order[start:] {
		out = append(out, s.snaps[ts].Clone())
	}
	return out
}
