package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// =============================================================================
// RiskMetricsCalculator (Pure)
// =============================================================================

// CalculateMetrics 수익률 시계열과 평가금액으로 리스크 스냅샷 계산
// ⭐ SSOT: 포트폴리오 존재 확인(NotFound)은 호출자 책임, 여기서는 입력 검증만
func CalculateMetrics(input MetricsInput) (*RiskMetrics, error) {
	if err := validateMetricsInput(input); err != nil {
		return nil, err
	}

	returns := input.Returns
	varResult, err := CalculateVaR(returns, input.Confidence)
	if err != nil {
		return nil, err
	}

	mean := Mean(returns)
	vol := PopStdDev(returns)
	annVol := vol * math.Sqrt(TradingDaysPerYear)
	annReturn := mean * TradingDaysPerYear
	excess := annReturn - input.RiskFreeRate

	parametric, err := CalculateParametricVaR(mean, vol, input.Confidence)
	if err != nil {
		return nil, err
	}

	m := &RiskMetrics{
		ID:                   uuid.New().String(),
		PortfolioID:          input.PortfolioID,
		Horizon:              input.Horizon,
		Confidence:           input.Confidence,
		PortfolioValue:       input.PortfolioValue,
		SampleCount:          len(returns),
		VaR:                  varResult.VaR * input.PortfolioValue,
		CVaR:                 varResult.CVaR * input.PortfolioValue,
		ParametricVaR:        parametric.VaR * input.PortfolioValue,
		MeanReturn:           mean,
		AnnualizedReturn:     annReturn,
		Volatility:           vol,
		AnnualizedVolatility: annVol,
		CalculatedAt:         time.Now(),
	}
	if m.Horizon == "" {
		m.Horizon = Horizon1D
	}

	// Sharpe: 변동성 0이면 0 (상수 수익률)
	if annVol > 0 {
		m.SharpeRatio = excess / annVol
	}

	// Sortino: 음수 수익률이 없으면 0
	if downside, ok := DownsideDeviation(returns); ok {
		m.DownsideVolatility = downside * math.Sqrt(TradingDaysPerYear)
		if m.DownsideVolatility > 0 {
			m.SortinoRatio = excess / m.DownsideVolatility
		}
	}

	// Drawdown
	values := input.Values
	if len(values) == 0 {
		values = compoundValues(input.PortfolioValue, returns)
	}
	m.MaxDrawdown, m.CurrentDrawdown = CalculateDrawdown(values)

	// Calmar: MDD는 %, 비율 계산은 소수 기준
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = annReturn / (m.MaxDrawdown / 100)
	}

	// Beta/Alpha/Treynor: 시장 수익률 시계열이 있을 때만
	if len(input.MarketReturns) > 0 {
		beta, err := CalculateBeta(returns, input.MarketReturns)
		if err != nil {
			return nil, err
		}
		alpha := annReturn - (input.RiskFreeRate + beta*(input.BenchmarkReturn-input.RiskFreeRate))
		m.Beta = &beta
		m.Alpha = &alpha
		if beta != 0 {
			treynor := excess / beta
			m.TreynorRatio = &treynor
		}
	}

	if len(input.Correlations) > 0 {
		m.Correlations = make(map[string]float64, len(input.Correlations))
		for pair, c := range input.Correlations {
			m.Correlations[pair] = c
		}
	}

	m.RiskScore = CalculateRiskScore(m)
	m.RiskLevel = LevelForScore(m.RiskScore)

	return m, nil
}

// CalculateDrawdown 가치 시계열의 최대/현재 낙폭 (%)
// 현재 낙폭은 마지막 시점 기준, 0 미만은 0으로 처리
func CalculateDrawdown(values []float64) (maxDD, currentDD float64) {
	if len(values) == 0 {
		return 0, 0
	}

	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
		currentDD = dd
	}

	return maxDD, math.Max(0, currentDD)
}

// CalculateBeta beta = cov(portfolio, market) / var(market)
// 시장 수익률은 포트폴리오 수익률과 같은 기간으로 정렬되어 있어야 한다
func CalculateBeta(returns, market []float64) (float64, error) {
	if len(returns) != len(market) {
		return 0, fmt.Errorf("%w: market return series length %d does not match %d",
			ErrInvalidInput, len(market), len(returns))
	}
	if err := validateReturns(market); err != nil {
		return 0, fmt.Errorf("market series: %w", err)
	}

	variance := stat.Variance(market, nil)
	if variance == 0 {
		return 0, fmt.Errorf("%w: market return series has zero variance", ErrInvalidInput)
	}
	return stat.Covariance(returns, market, nil) / variance, nil
}

// CalculateRiskScore 0-100 종합 리스크 점수
// 변동성(30) + VaR(30) + 낙폭(20) + Sharpe 페널티(20)
func CalculateRiskScore(m *RiskMetrics) float64 {
	volScore := math.Min(30, m.AnnualizedVolatility*100)
	varScore := math.Min(30, m.VaRPercent()*10)
	ddScore := math.Min(20, m.MaxDrawdown)
	sharpePenalty := clamp((2.0-m.SharpeRatio)*10, 0, 20)

	return clamp(volScore+varScore+ddScore+sharpePenalty, 0, 100)
}

// compoundValues Returns를 startValue에서부터 복리로 누적한 가치 시계열
func compoundValues(startValue float64, returns []float64) []float64 {
	values := make([]float64, 0, len(returns)+1)
	v := startValue
	values = append(values, v)
	for _, r := range returns {
		v *= 1 + r
		values = append(values, v)
	}
	return values
}

func validateMetricsInput(input MetricsInput) error {
	if !(input.PortfolioValue > 0) || !isFinite(input.PortfolioValue) {
		return fmt.Errorf("%w: portfolio value must be positive, got %v", ErrInvalidInput, input.PortfolioValue)
	}
	if err := validateReturns(input.Returns); err != nil {
		return err
	}
	if err := validateConfidence(input.Confidence); err != nil {
		return err
	}
	if !isFinite(input.RiskFreeRate) || !isFinite(input.BenchmarkReturn) {
		return fmt.Errorf("%w: non-finite risk-free rate or benchmark return", ErrInvalidInput)
	}
	for i, v := range input.Values {
		if !isFinite(v) || v < 0 {
			return fmt.Errorf("%w: invalid historical value at index %d", ErrInvalidInput, i)
		}
	}
	for pair, c := range input.Correlations {
		if !isFinite(c) || c < -1 || c > 1 {
			return fmt.Errorf("%w: correlation %s out of range: %v", ErrInvalidInput, pair, c)
		}
	}
	return nil
}
