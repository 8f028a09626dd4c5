package risk

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// =============================================================================
// VaR (Value at Risk) Calculation
// =============================================================================

// CalculateVaR 과거 수익률 기반 VaR/CVaR 계산 (Historical Simulation)
// returns: 기간 수익률 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
// 반환값: 수익률 단위, 손실을 양수로 표현 (tail이 이익이면 0)
//
// tailIndex = floor(n × (1 − confidence)). VaR = max(0, −sorted[idx]),
// CVaR = max(0, −mean(sorted[0..idx])). tail 평균은 sorted[idx] 이하이므로 CVaR ≥ VaR.
func CalculateVaR(returns []float64, confidence float64) (VaRResult, error) {
	if err := validateReturns(returns); err != nil {
		return VaRResult{}, err
	}
	if err := validateConfidence(confidence); err != nil {
		return VaRResult{}, err
	}

	// 수익률 정렬 (오름차순: 손실이 앞에)
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := tailIndex(len(sorted), confidence)

	return VaRResult{
		Confidence: confidence,
		TailIndex:  idx,
		VaR:        lossOf(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
	}, nil
}

// CalculateCVaR Conditional VaR (Expected Shortfall)
// sorted: 오름차순 정렬된 수익률
// varIdx: VaR 인덱스 (이 인덱스까지 포함한 구간이 tail)
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}
	return lossOf(stat.Mean(sorted[:varIdx+1], nil))
}

// lossOf 수익률을 손실 크기로 변환 (이익은 손실 0)
func lossOf(r float64) float64 {
	return math.Max(0, -r)
}

// tailIndex 신뢰수준에 해당하는 정렬 인덱스
func tailIndex(n int, confidence float64) int {
	// 1e-9: 0.95 같은 값의 부동소수점 오차로 floor가 한 칸 내려가는 것을 방지
	idx := int(math.Floor(float64(n)*(1-confidence) + 1e-9))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// =============================================================================
// Parametric VaR (정규분포 가정)
// =============================================================================

// CalculateParametricVaR 정규분포 가정 VaR 계산 (수익률 단위)
// VaR = z × σ − μ, CVaR = σ × φ(z)/(1−c) − μ
func CalculateParametricVaR(mean, stdDev, confidence float64) (VaRResult, error) {
	if err := validateConfidence(confidence); err != nil {
		return VaRResult{}, err
	}
	if stdDev < 0 || !isFinite(stdDev) || !isFinite(mean) {
		return VaRResult{}, fmt.Errorf("%w: invalid distribution parameters", ErrInvalidInput)
	}

	z := distuv.UnitNormal.Quantile(confidence)
	varValue := math.Max(0, z*stdDev-mean)
	cvar := math.Max(varValue, stdDev*distuv.UnitNormal.Prob(z)/(1-confidence)-mean)

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       cvar,
	}, nil
}

// =============================================================================
// 통계 유틸리티
// =============================================================================

// Mean 평균
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// PopStdDev 모표준편차 (n으로 나눔)
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(values, nil)
	return math.Sqrt(variance)
}

// DownsideDeviation 음수 수익률만의 모표준편차
// 음수 수익률이 없으면 ok=false
func DownsideDeviation(returns []float64) (float64, bool) {
	negatives := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) == 0 {
		return 0, false
	}
	return PopStdDev(negatives), true
}

// PercentileAt 정렬된 값에서 위치 기반 백분위 (보간 없음)
func PercentileAt(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(p) / 100 * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func validateReturns(returns []float64) error {
	if len(returns) < 2 {
		return fmt.Errorf("%w: return series needs at least 2 points, got %d", ErrInvalidInput, len(returns))
	}
	for i, r := range returns {
		if !isFinite(r) {
			return fmt.Errorf("%w: non-finite return at index %d", ErrInvalidInput, i)
		}
	}
	return nil
}

func validateConfidence(confidence float64) error {
	if !(confidence > 0 && confidence < 1) {
		return fmt.Errorf("%w: confidence level must be in (0,1), got %v", ErrInvalidInput, confidence)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
