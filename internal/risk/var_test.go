package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleReturns = []float64{0.02, -0.01, 0.03, -0.02, 0.01}

func TestCalculateVaR_Example(t *testing.T) {
	result, err := CalculateVaR(sampleReturns, 0.95)
	require.NoError(t, err)

	// floor(5 × 0.05) = 0 → 최악 수익률
	assert.Equal(t, 0, result.TailIndex)
	assert.InDelta(t, 0.02, result.VaR, 1e-12)
	assert.InDelta(t, 200.0, result.VaR*10000, 1e-9)
	assert.InDelta(t, 0.02, result.CVaR, 1e-12)
}

func TestCalculateVaR_TailIndex(t *testing.T) {
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = float64(i-10) / 100 // -0.10 ... 0.09
	}

	result, err := CalculateVaR(returns, 0.90)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TailIndex)
	assert.InDelta(t, 0.08, result.VaR, 1e-12)
	assert.InDelta(t, 0.09, result.CVaR, 1e-12) // mean(-0.10, -0.09, -0.08)
}

func TestCalculateVaR_CVaRAtLeastVaR(t *testing.T) {
	returns := []float64{-0.05, 0.01, -0.02, 0.03, -0.04, 0.02, -0.01, 0.00, 0.015, -0.03}

	for _, c := range []float64{0.5, 0.8, 0.9, 0.95, 0.99} {
		result, err := CalculateVaR(returns, c)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.CVaR, result.VaR, "confidence=%v", c)
	}
}

func TestCalculateVaR_MonotonicInConfidence(t *testing.T) {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = math.Sin(float64(i)) / 50
	}

	prev := -1.0
	for _, c := range []float64{0.80, 0.90, 0.95, 0.99} {
		result, err := CalculateVaR(returns, c)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.VaR, prev)
		prev = result.VaR
	}
}

// gainTailReturns 최악 구간 일부가 이익인 시계열 (-0.01, 0.03 ... 0.21)
func gainTailReturns() []float64 {
	returns := []float64{-0.01}
	for i := 3; i <= 21; i++ {
		returns = append(returns, float64(i)/100)
	}
	return returns
}

func TestCalculateVaR_GainTail(t *testing.T) {
	result, err := CalculateVaR(gainTailReturns(), 0.90)
	require.NoError(t, err)

	// sorted[2] = 0.04 (이익) → 손실 0
	assert.Equal(t, 2, result.TailIndex)
	assert.Equal(t, 0.0, result.VaR)
	assert.Equal(t, 0.0, result.CVaR) // mean(-0.01, 0.03, 0.04) > 0

	allGains := []float64{0.01, 0.02, 0.03, 0.04}
	result, err = CalculateVaR(allGains, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.VaR)
	assert.Equal(t, 0.0, result.CVaR)
}

func TestCalculateVaR_PropertiesHoldForAnySeries(t *testing.T) {
	series := map[string][]float64{
		"gain tail":  gainTailReturns(),
		"all gains":  {0.05, 0.01, 0.02, 0.03, 0.04},
		"all losses": {-0.05, -0.01, -0.02, -0.03, -0.04},
		"mixed":      {-0.05, 0.01, -0.02, 0.03, -0.04, 0.02, -0.01, 0.00, 0.015, -0.03},
		"sine":       sineReturns(100),
	}
	confidences := []float64{0.50, 0.80, 0.90, 0.95, 0.99}

	for name, returns := range series {
		t.Run(name, func(t *testing.T) {
			prev := 0.0
			for _, c := range confidences {
				result, err := CalculateVaR(returns, c)
				require.NoError(t, err)

				assert.GreaterOrEqual(t, result.VaR, 0.0, "confidence=%v", c)
				assert.GreaterOrEqual(t, result.CVaR, result.VaR, "confidence=%v", c)
				assert.GreaterOrEqual(t, result.VaR, prev, "confidence=%v", c)
				prev = result.VaR
			}
		})
	}
}

func sineReturns(n int) []float64 {
	returns := make([]float64, n)
	for i := range returns {
		returns[i] = math.Sin(float64(i))/50 + 0.005
	}
	return returns
}

func TestCalculateVaR_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		returns    []float64
		confidence float64
	}{
		{"empty", nil, 0.95},
		{"single point", []float64{0.01}, 0.95},
		{"NaN", []float64{0.01, math.NaN()}, 0.95},
		{"Inf", []float64{math.Inf(-1), 0.01}, 0.95},
		{"confidence zero", sampleReturns, 0},
		{"confidence one", sampleReturns, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateVaR(tt.returns, tt.confidence)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCalculateParametricVaR(t *testing.T) {
	result, err := CalculateParametricVaR(0, 0.01, 0.95)
	require.NoError(t, err)

	assert.InDelta(t, 0.016449, result.VaR, 1e-5)
	assert.Greater(t, result.CVaR, result.VaR)

	_, err = CalculateParametricVaR(0, -0.01, 0.95)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStatHelpers(t *testing.T) {
	assert.InDelta(t, 0.006, Mean(sampleReturns), 1e-12)
	assert.InDelta(t, 0.01854723699, PopStdDev(sampleReturns), 1e-9)

	down, ok := DownsideDeviation(sampleReturns)
	assert.True(t, ok)
	assert.InDelta(t, 0.005, down, 1e-12)

	_, ok = DownsideDeviation([]float64{0.01, 0.02})
	assert.False(t, ok)

	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 1.0, PercentileAt(sorted, 5))
	assert.Equal(t, 6.0, PercentileAt(sorted, 50))
	assert.Equal(t, 10.0, PercentileAt(sorted, 95))
}
