package domain

import (
	"fmt"
	"time"
)

// Status is the advisory traffic light derived each cycle. The set is
// closed and totally ordered: RED < YELLOW < GREEN.
type Status string

const (
	StatusRed    Status = "RED"
	StatusYellow Status = "YELLOW"
	StatusGreen  Status = "GREEN"
)

// rank orders statuses worst to best. Unknown values rank below RED so
// a corrupted status never beats a real one.
func (s Status) rank() int {
	switch s {
	case StatusRed:
		return 1
	case StatusYellow:
		return 2
	case StatusGreen:
		return 3
	}
	return 0
}

// Valid reports whether s is one of the three defined statuses
func (s Status) Valid() bool {
	return s.rank() > 0
}

// BetterThan reports whether s is strictly better than other
// (GREEN beats YELLOW beats RED)
func (s Status) BetterThan(other Status) bool {
	return s.rank() > other.rank()
}

// Worst returns the worse of s and other
func (s Status) Worst(other Status) Status {
	if s.BetterThan(other) {
		return other
	}
	return s
}

// ParseStatus converts a stored string back into a Status
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, raw)
	}
	return s, nil
}

// StatusReport is the full advisory output of one evaluation cycle
type StatusReport struct {
	Status          Status    `json:"status"`
	Supergreen      bool      `json:"supergreen"`
	Stale           bool      `json:"stale"`
	Predicted       bool      `json:"predicted"`
	RetailIntensity float64   `json:"retail_intensity"`
	GeneratedAt     time.Time `json:"generated_at"`
}
