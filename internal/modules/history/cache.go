package history

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmounsey/gridlight/internal/domain"
)

// SnapshotCache persists the single "last good" snapshot used as the
// fetch-failure fallback.
type SnapshotCache struct {
	path string
}

// NewSnapshotCache creates a cache backed by one JSON file
func NewSnapshotCache(path string) *SnapshotCache {
	return &SnapshotCache{path: path}
}

// Store replaces the cached snapshot. Writing to a temp file and
// renaming keeps a crash mid-write from ever leaving a half-written
// cache behind.
func (c *SnapshotCache) Store(snap domain.FuelSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace snapshot cache: %w", err)
	}
	return nil
}

// Load reads the cached snapshot back. A missing or unreadable cache
// is an error; callers fall through to the no-data path.
func (c *SnapshotCache) Load() (domain.FuelSnapshot, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return domain.FuelSnapshot{}, fmt.Errorf("read snapshot cache: %w", err)
	}

	var snap domain.FuelSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.FuelSnapshot{}, fmt.Errorf("decode snapshot cache: %w", err)
	}
	return snap, nil
}
