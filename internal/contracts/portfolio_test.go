package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionsValue(t *testing.T) {
	positions := []Position{
		{Symbol: "AAPL", TotalValue: 6000},
		{Symbol: "MSFT", TotalValue: 4000},
	}

	assert.Equal(t, 10000.0, PositionsValue(positions))
	assert.Equal(t, []string{"AAPL", "MSFT"}, Symbols(positions))
}

func TestCheckValueDrift(t *testing.T) {
	portfolio := &Portfolio{ID: "p1", TotalValue: 10000}

	tests := []struct {
		name      string
		positions []Position
		wantOK    bool
	}{
		{"exact", []Position{{TotalValue: 10000}}, true},
		{"within tolerance", []Position{{TotalValue: 10050}}, true},
		{"timing drift too large", []Position{{TotalValue: 10500}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := CheckValueDrift(portfolio, tt.positions, DefaultValueDriftTolerance)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestReturnsOf(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	points := []ValuePoint{
		{Date: day(1), Value: 100},
		{Date: day(2), Value: 110},
		{Date: day(3), Value: 99},
	}

	returns := ReturnsOf(points)
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)
	assert.Equal(t, []float64{100, 110, 99}, ValuesOf(points))
	assert.Nil(t, ReturnsOf(points[:1]))
}

func TestPosition_JSON(t *testing.T) {
	pos := Position{Symbol: "AAPL", Quantity: 10, CurrentPrice: 150, TotalValue: 1500, AllocationPct: 15}

	data, err := json.Marshal(pos)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"allocation_pct":15`)
}
