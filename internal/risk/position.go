package risk

import (
	"fmt"
	"math"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// z95 95% 단측 z-score
const z95 = 1.645

// AnalyzePositions 포트폴리오 리스크를 종목별 기여도로 분해
// volatilities: 종목별 연 변동성, 없는 종목은 DefaultAssetVolatility 사용
// 종목 간 공유 상태 없음, 결과 순서 = 입력 순서
func AnalyzePositions(portfolioValue float64, positions []contracts.Position, volatilities map[string]float64) ([]PositionRisk, error) {
	if !(portfolioValue > 0) || !isFinite(portfolioValue) {
		return nil, fmt.Errorf("%w: portfolio value must be positive, got %v", ErrInvalidInput, portfolioValue)
	}

	risks := make([]PositionRisk, 0, len(positions))
	for _, pos := range positions {
		if !isFinite(pos.TotalValue) {
			return nil, fmt.Errorf("%w: non-finite value for %s", ErrInvalidInput, pos.Symbol)
		}

		vol, ok := volatilities[pos.Symbol]
		defaulted := !ok || !(vol > 0) || !isFinite(vol)
		if defaulted {
			vol = DefaultAssetVolatility
		}

		exposure := pos.TotalValue
		pct := exposure / portfolioValue * 100
		individual := exposure * vol * z95 / math.Sqrt(TradingDaysPerYear)
		marginal := individual * (exposure / portfolioValue)

		risks = append(risks, PositionRisk{
			Symbol:                pos.Symbol,
			Exposure:              exposure,
			PercentageOfPortfolio: pct,
			Volatility:            vol,
			IndividualVaR:         individual,
			MarginalVaR:           marginal,
			ComponentVaR:          marginal * pct / 100,
			ConcentrationRisk:     ConcentrationRisk(pct),
			VolatilityDefaulted:   defaulted,
		})
	}

	return risks, nil
}

// ConcentrationRisk (비중/100)² × 100, 비중에 대해 볼록 증가
func ConcentrationRisk(allocationPct float64) float64 {
	share := allocationPct / 100
	return share * share * 100
}

// MeasureExposure 한도 체크용 최대 비중(%)과 총 레버리지
func MeasureExposure(portfolioValue float64, positions []contracts.Position) Exposure {
	var exposure Exposure
	if portfolioValue <= 0 {
		return exposure
	}

	gross := 0.0
	for _, pos := range positions {
		gross += math.Abs(pos.TotalValue)
		pct := math.Abs(pos.TotalValue) / portfolioValue * 100
		if pct > exposure.MaxAllocationPct {
			exposure.MaxAllocationPct = pct
		}
	}
	exposure.Leverage = gross / portfolioValue
	return exposure
}
