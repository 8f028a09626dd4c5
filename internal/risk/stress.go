package risk

import (
	"fmt"
	"math"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// =============================================================================
// Stress Test (순수 계산)
// =============================================================================

// 시나리오 하 추정 지표의 기준값
const (
	DefaultBaselineVolatility  = 0.20
	DefaultBaselineCorrelation = 0.30
)

// StressInput 스트레스 테스트 입력
type StressInput struct {
	Positions           []contracts.Position
	PortfolioValue      float64 // 0이면 포지션 합계 사용
	BaselineVolatility  float64 // 0이면 DefaultBaselineVolatility
	BaselineCorrelation float64 // 0이면 DefaultBaselineCorrelation
}

// DefaultScenarios 기본 과거 위기 시나리오
func DefaultScenarios() []StressScenario {
	return []StressScenario{
		{Name: "2008 Financial Crisis", MarketChange: -37, VolatilityMultiplier: 2.5, CorrelationShock: 0.30, Duration: "6 months"},
		{Name: "COVID-19 Crash", MarketChange: -34, VolatilityMultiplier: 3.0, CorrelationShock: 0.40, Duration: "1 month"},
		{Name: "Dot-com Bust", MarketChange: -49, VolatilityMultiplier: 2.0, CorrelationShock: 0.20, Duration: "2 years"},
		{Name: "Interest Rate Shock", MarketChange: -15, VolatilityMultiplier: 1.5, CorrelationShock: 0.10, Duration: "3 months"},
		{Name: "Flash Crash", MarketChange: -10, VolatilityMultiplier: 4.0, CorrelationShock: 0.50, Duration: "1 day"},
	}
}

// RunStressTests 시나리오별 독립 평가
// 한 시나리오의 실패는 해당 결과의 Error로만 보고되고 나머지는 계속 평가된다
func RunStressTests(input StressInput, scenarios []StressScenario) []StressTestResult {
	results := make([]StressTestResult, 0, len(scenarios))
	for _, scenario := range scenarios {
		result, err := runScenario(input, scenario)
		if err != nil {
			result = StressTestResult{
				ScenarioName: scenario.Name,
				Duration:     scenario.Duration,
				Error:        err.Error(),
			}
		}
		results = append(results, result)
	}
	return results
}

func runScenario(input StressInput, scenario StressScenario) (StressTestResult, error) {
	if err := ValidateScenario(scenario); err != nil {
		return StressTestResult{}, err
	}

	portfolioValue := input.PortfolioValue
	if portfolioValue <= 0 {
		portfolioValue = contracts.PositionsValue(input.Positions)
	}
	if !(portfolioValue > 0) {
		return StressTestResult{}, fmt.Errorf("%w: portfolio value must be positive", ErrInvalidInput)
	}

	shock := 1 + scenario.MarketChange/100
	impacts := make([]AssetImpact, 0, len(input.Positions))
	var totalLoss, stressedTotal float64

	for _, pos := range input.Positions {
		if !(pos.CurrentPrice > 0) || !isFinite(pos.CurrentPrice) {
			return StressTestResult{}, fmt.Errorf("%w: missing price data for %s", ErrInvalidInput, pos.Symbol)
		}

		currentValue := pos.CurrentPrice * pos.Quantity
		stressedPrice := pos.CurrentPrice * shock
		stressedValue := stressedPrice * pos.Quantity
		loss := currentValue - stressedValue

		impact := AssetImpact{
			Symbol:        pos.Symbol,
			CurrentValue:  currentValue,
			StressedPrice: stressedPrice,
			StressedValue: stressedValue,
			Loss:          loss,
		}
		if currentValue != 0 {
			impact.LossPct = loss / currentValue * 100
		}
		impacts = append(impacts, impact)

		totalLoss += loss
		stressedTotal += stressedValue
	}

	// 부동소수점 오차로 경계(30%)를 넘지 않도록 1e-9 단위로 반올림
	lossPct := roundTo(math.Abs(totalLoss/portfolioValue*100), lossPctScale)

	baseVol := input.BaselineVolatility
	if baseVol <= 0 {
		baseVol = DefaultBaselineVolatility
	}
	baseCorr := input.BaselineCorrelation
	if baseCorr == 0 {
		baseCorr = DefaultBaselineCorrelation
	}
	stressedVol := baseVol * scenario.VolatilityMultiplier

	return StressTestResult{
		ScenarioName:   scenario.Name,
		Duration:       scenario.Duration,
		PortfolioValue: portfolioValue,
		PortfolioLoss:  totalLoss,
		LossPercentage: lossPct,
		AssetImpacts:   impacts,
		StressedMetrics: StressedMetrics{
			Volatility:  stressedVol,
			VaR:         math.Max(0, stressedTotal) * stressedVol * z95 / math.Sqrt(TradingDaysPerYear),
			Correlation: clamp(baseCorr+scenario.CorrelationShock, -1, 1),
		},
		Severity: SeverityForLoss(lossPct),
	}, nil
}

// lossPctScale 손실률 반올림 배율 (1e-9 % 단위)
const lossPctScale = 1e9

// roundTo scale 배율 기준 반올림 (정수 나눗셈이라 30 같은 값이 정확히 복원됨)
func roundTo(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

// SeverityForLoss 손실률(%) 기준 심각도
func SeverityForLoss(lossPct float64) Severity {
	switch {
	case lossPct > 30:
		return SeverityExtreme
	case lossPct > 20:
		return SeverityHigh
	case lossPct > 10:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ValidateScenario 시나리오 입력 검증
func ValidateScenario(s StressScenario) error {
	if s.Name == "" {
		return fmt.Errorf("%w: scenario name is required", ErrInvalidInput)
	}
	if !isFinite(s.MarketChange) || s.MarketChange < -100 {
		return fmt.Errorf("%w: market change must be >= -100%%, got %v", ErrInvalidInput, s.MarketChange)
	}
	if !(s.VolatilityMultiplier > 0) || !isFinite(s.VolatilityMultiplier) {
		return fmt.Errorf("%w: volatility multiplier must be positive, got %v", ErrInvalidInput, s.VolatilityMultiplier)
	}
	if !isFinite(s.CorrelationShock) {
		return fmt.Errorf("%w: non-finite correlation shock", ErrInvalidInput)
	}
	return nil
}
