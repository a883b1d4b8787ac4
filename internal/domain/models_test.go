package domain

import (
	"testing"
	"time"
)

func TestFuelSnapshotTotalMW(t *testing.T) {
	tests := []struct {
		name       string
		generation map[string]int
		want       int
	}{
		{
			name:       "Mixed fuels including negative storage",
			generation: map[string]int{"CCGT": 16000, "WIND": 1000, "PS": -400},
			want:       16600,
		},
		{
			name:       "Empty map",
			generation: map[string]int{},
			want:       0,
		},
		{
			name:       "Nil map",
			generation: nil,
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := FuelSnapshot{TimestampMs: 1, GenerationByFuel: tt.generation}
			if got := snap.TotalMW(); got != tt.want {
				t.Errorf("TotalMW() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFuelSnapshotYear(t *testing.T) {
	// 2024-06-15T12:00:00Z
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).UnixMilli()
	snap := NewFuelSnapshot(ts)
	if got := snap.Year(); got != 2024 {
		t.Errorf("Year() = %d, want 2024", got)
	}

	// New Year's Eve in UTC must stay in the old year regardless of
	// the host timezone.
	eve := time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC).UnixMilli()
	snap = NewFuelSnapshot(eve)
	if got := snap.Year(); got != 2023 {
		t.Errorf("Year() = %d, want 2023", got)
	}
}

func TestFuelSnapshotClone(t *testing.T) {
	orig := FuelSnapshot{
		TimestampMs:      42,
		GenerationByFuel: map[string]int{"WIND": 100},
	}

	clone := orig.Clone()
	clone.GenerationByFuel["WIND"] = 999
	clone.GenerationByFuel["COAL"] = 1

	if orig.GenerationByFuel["WIND"] != 100 {
		t.Error("mutating the clone must not touch the original")
	}
	if _, ok := orig.GenerationByFuel["COAL"]; ok {
		t.Error("keys added to the clone leaked into the original")
	}
}
