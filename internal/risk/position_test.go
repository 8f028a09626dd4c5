package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/contracts"
)

func samplePositions() []contracts.Position {
	return []contracts.Position{
		{Symbol: "AAA", Quantity: 600, CurrentPrice: 100, TotalValue: 60000, AllocationPct: 60},
		{Symbol: "BBB", Quantity: 800, CurrentPrice: 50, TotalValue: 40000, AllocationPct: 40},
	}
}

func TestAnalyzePositions(t *testing.T) {
	risks, err := AnalyzePositions(100000, samplePositions(), map[string]float64{"AAA": 0.30})
	require.NoError(t, err)
	require.Len(t, risks, 2)

	a := risks[0]
	assert.Equal(t, "AAA", a.Symbol)
	assert.InDelta(t, 60.0, a.PercentageOfPortfolio, 1e-9)
	assert.InDelta(t, 60000*0.30*1.645/math.Sqrt(252), a.IndividualVaR, 1e-9)
	assert.InDelta(t, a.IndividualVaR*0.6, a.MarginalVaR, 1e-9)
	assert.InDelta(t, a.MarginalVaR*0.6, a.ComponentVaR, 1e-9)
	assert.InDelta(t, 36.0, a.ConcentrationRisk, 1e-9)
	assert.False(t, a.VolatilityDefaulted)

	// 변동성 정보 없는 종목은 기본값
	b := risks[1]
	assert.Equal(t, "BBB", b.Symbol)
	assert.Equal(t, DefaultAssetVolatility, b.Volatility)
	assert.True(t, b.VolatilityDefaulted)
	assert.InDelta(t, 16.0, b.ConcentrationRisk, 1e-9)
}

func TestAnalyzePositions_InvalidValue(t *testing.T) {
	_, err := AnalyzePositions(0, samplePositions(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConcentrationRisk_Convex(t *testing.T) {
	assert.Less(t, 2*ConcentrationRisk(50), ConcentrationRisk(100))
	assert.Less(t, ConcentrationRisk(10), ConcentrationRisk(20))
	assert.InDelta(t, 100.0, ConcentrationRisk(100), 1e-9)
}

func TestMeasureExposure(t *testing.T) {
	exposure := MeasureExposure(100000, samplePositions())
	assert.InDelta(t, 60.0, exposure.MaxAllocationPct, 1e-9)
	assert.InDelta(t, 1.0, exposure.Leverage, 1e-9)

	assert.Equal(t, Exposure{}, MeasureExposure(0, samplePositions()))
}
