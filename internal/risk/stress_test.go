package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/contracts"
)

func TestRunStressTests_UniformShock(t *testing.T) {
	input := StressInput{Positions: samplePositions()}
	scenario := StressScenario{Name: "uniform", MarketChange: -30, VolatilityMultiplier: 2}

	results := RunStressTests(input, []StressScenario{scenario})
	require.Len(t, results, 1)

	r := results[0]
	require.False(t, r.Failed(), r.Error)
	assert.InDelta(t, 100000.0, r.PortfolioValue, 1e-9)
	assert.InDelta(t, 30000.0, r.PortfolioLoss, 1e-6)
	assert.InDelta(t, 30.0, r.LossPercentage, 1e-9)
	assert.Equal(t, SeverityHigh, r.Severity)
	require.Len(t, r.AssetImpacts, 2)
	assert.InDelta(t, 70.0, r.AssetImpacts[0].StressedPrice, 1e-9)
	assert.InDelta(t, 30.0, r.AssetImpacts[1].LossPct, 1e-9)

	assert.InDelta(t, 0.40, r.StressedMetrics.Volatility, 1e-12)
	assert.InDelta(t, DefaultBaselineCorrelation, r.StressedMetrics.Correlation, 1e-12)
	assert.Greater(t, r.StressedMetrics.VaR, 0.0)
}

func TestRunStressTests_ExactBoundaryIsHigh(t *testing.T) {
	scenario := StressScenario{Name: "boundary", MarketChange: -30, VolatilityMultiplier: 1}

	for _, price := range []float64{0.1, 1.1, 2.2, 3.3, 7.7, 123.45, 0.7, 19.99, 1234.56, 33.3} {
		positions := []contracts.Position{
			{Symbol: "AAA", Quantity: 3, CurrentPrice: price, TotalValue: price * 3},
		}

		results := RunStressTests(StressInput{Positions: positions}, []StressScenario{scenario})
		require.Len(t, results, 1)
		require.False(t, results[0].Failed(), results[0].Error)

		assert.Equal(t, 30.0, results[0].LossPercentage, "price=%v", price)
		assert.Equal(t, SeverityHigh, results[0].Severity, "price=%v", price)
	}
}

func TestRunStressTests_IsolatesFailures(t *testing.T) {
	scenarios := []StressScenario{
		{Name: "ok", MarketChange: -10, VolatilityMultiplier: 1.5},
		{Name: "bad multiplier", MarketChange: -10, VolatilityMultiplier: 0},
		{Name: "bad change", MarketChange: -150, VolatilityMultiplier: 1},
		{Name: "also ok", MarketChange: -40, VolatilityMultiplier: 2, CorrelationShock: 0.9},
	}

	results := RunStressTests(StressInput{Positions: samplePositions()}, scenarios)
	require.Len(t, results, 4)

	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Equal(t, "bad multiplier", results[1].ScenarioName)
	assert.True(t, results[2].Failed())
	assert.False(t, results[3].Failed())

	assert.Equal(t, SeverityLow, results[0].Severity)
	assert.Equal(t, SeverityExtreme, results[3].Severity)
	// 0.30 + 0.9 → 1로 제한
	assert.InDelta(t, 1.0, results[3].StressedMetrics.Correlation, 1e-12)
}

func TestRunStressTests_MissingPrice(t *testing.T) {
	positions := append(samplePositions(), contracts.Position{Symbol: "CCC", Quantity: 10, TotalValue: 1000})

	results := RunStressTests(StressInput{Positions: positions}, DefaultScenarios())
	require.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, r.Failed())
		assert.Contains(t, r.Error, "CCC")
	}
}

func TestSeverityForLoss(t *testing.T) {
	tests := []struct {
		loss float64
		want Severity
	}{
		{5, SeverityLow},
		{10, SeverityLow},
		{10.5, SeverityMedium},
		{20.5, SeverityHigh},
		{30, SeverityHigh},
		{30.1, SeverityExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityForLoss(tt.loss), "loss=%v", tt.loss)
	}
}

func TestDefaultScenarios(t *testing.T) {
	scenarios := DefaultScenarios()
	require.Len(t, scenarios, 5)
	for _, s := range scenarios {
		assert.NoError(t, ValidateScenario(s), s.Name)
	}
}
