package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmounsey/gridlight/internal/domain"
)

func TestParseStream(t *testing.T) {
	payload := `[
		{"dataset":"FUELINST","publishTime":"2024-06-15T12:00:00Z","startTime":"2024-06-15T11:55:00Z","fuelType":"CCGT","generation":16000},
		{"startTime":"2024-06-15T11:55:00Z","fuelType":"WIND","generation":9000},
		{"startTime":"2024-06-15T12:00:00Z","fuelType":"CCGT","generation":-150}
	]`

	points, err := ParseStream([]byte(payload))
	require.NoError(t, err)
	require.Len(t, points, 3)

	ts := time.Date(2024, 6, 15, 11, 55, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, FuelPoint{TimestampMs: ts, Fuel: "CCGT", GenerationMW: 16000}, points[0])
	assert.Equal(t, "WIND", points[1].Fuel)
	assert.Equal(t, -150, points[2].GenerationMW, "readings are signed")
}

func TestParseStreamEmpty(t *testing.T) {
	for _, payload := range []string{"", "  ", "[]"} {
		points, err := ParseStream([]byte(payload))
		assert.NoError(t, err)
		assert.Empty(t, points)
	}
}

func TestParseStreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not JSON", payload: "HDR,FUELINST"},
		{name: "missing startTime", payload: `[{"fuelType":"CCGT","generation":1}]`},
		{name: "missing fuelType", payload: `[{"startTime":"2024-06-15T11:55:00Z","generation":1}]`},
		{name: "startTime not ISO-8601", payload: `[{"startTime":"20240615115500","fuelType":"CCGT","generation":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStream([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, domain.IsFormatError(err), "want FormatError, got %T", err)
		})
	}
}

func TestGroup(t *testing.T) {
	t1 := time.Date(2024, 6, 15, 11, 55, 0, 0, time.UTC).UnixMilli()
	t2 := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).UnixMilli()

	points := []FuelPoint{
		{TimestampMs: t2, Fuel: "CCGT", GenerationMW: 15900},
		{TimestampMs: t1, Fuel: "CCGT", GenerationMW: 16000},
		{TimestampMs: t1, Fuel: "WIND", GenerationMW: 9000},
	}

	groups := Group(points, OrderAscending)
	require.Len(t, groups, 2)

	assert.Equal(t, t1, groups[0].TimestampMs, "groups are sorted by timestamp regardless of input order")
	assert.Equal(t, map[string]int{"CCGT": 16000, "WIND": 9000}, groups[0].Generation)
	assert.Equal(t, map[string]int{"CCGT": 15900}, groups[1].Generation)
}

func TestGroupPublishOrderResolvesDuplicates(t *testing.T) {
	ts := time.Date(2024, 6, 15, 11, 55, 0, 0, time.UTC).UnixMilli()

	// The same (timestamp, fuel) pair published twice: a correction.
	points := []FuelPoint{
		{TimestampMs: ts, Fuel: "CCGT", GenerationMW: 100},
		{TimestampMs: ts, Fuel: "CCGT", GenerationMW: 200},
	}

	t.Run("ascending batches keep the later element", func(t *testing.T) {
		groups := Group(points, OrderAscending)
		require.Len(t, groups, 1)
		assert.Equal(t, 200, groups[0].Generation["CCGT"])
	})

	t.Run("descending batches keep the earlier element", func(t *testing.T) {
		groups := Group(points, OrderDescending)
		require.Len(t, groups, 1)
		assert.Equal(t, 100, groups[0].Generation["CCGT"])
	})
}

func TestGroupEmpty(t *testing.T) {
	assert.Empty(t, Group(nil, OrderAscending))
}
