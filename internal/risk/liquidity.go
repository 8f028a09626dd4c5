package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// 유동성 가정
const (
	// MaxVolumeParticipation 슬리피지 없이 매도 가능한 일 거래대금 비율
	MaxVolumeParticipation = 0.10
	// MaxMarketImpact 시장 충격 상한
	MaxMarketImpact = 0.05
	// StressVolumeMultiplier 스트레스 시 거래대금 축소 배수
	StressVolumeMultiplier = 0.5
	// StressSpreadMultiplier 스트레스 시 스프레드 확대 배수
	StressSpreadMultiplier = 2.0
	// MaxStressedMarketImpact 스트레스 시 시장 충격 상한
	MaxStressedMarketImpact = 0.10
)

// AnalyzeLiquidity 종목별 청산 소요일/시장 충격과 포트폴리오 집계
// avgDailyVolume: 종목별 평균 일 거래대금 (통화 단위)
func AnalyzeLiquidity(positions []contracts.Position, avgDailyVolume map[string]float64) (*LiquidityRisk, error) {
	result := &LiquidityRisk{
		Assets:       make([]AssetLiquidity, 0, len(positions)),
		CalculatedAt: time.Now(),
		Stressed: StressedLiquidity{
			VolumeMultiplier: StressVolumeMultiplier,
			SpreadMultiplier: StressSpreadMultiplier,
		},
	}

	var weightedDays, weightedScore, weightedImpact float64

	for _, pos := range positions {
		adv, ok := avgDailyVolume[pos.Symbol]
		if !ok || !(adv > 0) || !isFinite(adv) {
			return nil, fmt.Errorf("%w: missing average daily volume for %s", ErrInvalidInput, pos.Symbol)
		}
		value := math.Abs(pos.TotalValue)

		days := value / (adv * MaxVolumeParticipation)
		asset := AssetLiquidity{
			Symbol:          pos.Symbol,
			PositionValue:   value,
			AvgDailyVolume:  adv,
			DaysToLiquidate: days,
			MarketImpact:    math.Min(MaxMarketImpact, value/adv),
			LiquidityScore:  liquidityScore(days),
		}
		result.Assets = append(result.Assets, asset)

		result.TotalValue += value
		weightedDays += days * value
		weightedScore += asset.LiquidityScore * value
		weightedImpact += asset.MarketImpact * value

		switch {
		case days < 0.1:
			result.Buckets.Immediate += value
		case days < 1:
			result.Buckets.Within1Day += value
		case days < 5:
			result.Buckets.Within1Wk += value
		default:
			result.Buckets.Illiquid += value
		}
	}

	if result.TotalValue == 0 {
		result.LiquidityScore = 100
		result.Stressed.LiquidityScore = 100
		return result, nil
	}

	result.DaysToLiquidate = weightedDays / result.TotalValue
	result.LiquidityScore = weightedScore / result.TotalValue

	// 스트레스: 거래대금 축소 → 청산 기간 증가, 스프레드 확대 → 충격 증가
	stressedDays := result.DaysToLiquidate / StressVolumeMultiplier
	result.Stressed.DaysToLiquidate = stressedDays
	result.Stressed.MarketImpact = math.Min(MaxStressedMarketImpact,
		weightedImpact/result.TotalValue*StressSpreadMultiplier/StressVolumeMultiplier)
	result.Stressed.LiquidityScore = liquidityScore(stressedDays)

	return result, nil
}

// liquidityScore clamp(0, 100, 100 − days×10)
func liquidityScore(days float64) float64 {
	return clamp(100-days*10, 0, 100)
}
