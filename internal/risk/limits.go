package risk

import (
	"fmt"
	"sort"
	"time"
)

// 한도 메트릭 이름
const (
	MetricDrawdown      = "max_drawdown"
	MetricVaR           = "var"
	MetricVolatility    = "volatility"
	MetricSharpe        = "sharpe_ratio"
	MetricConcentration = "concentration"
	MetricLeverage      = "leverage"
)

// ValidateLimits 한도 값의 정상 범위 검사
func ValidateLimits(limits RiskLimits) error {
	checks := []struct {
		name   string
		value  *float64
		lo, hi float64
		loOpen bool
	}{
		{MetricDrawdown, limits.MaxDrawdown, 0, 100, true},
		{MetricVolatility, limits.MaxVolatility, 0, 5, true},
		{MetricSharpe, limits.MinSharpe, -10, 10, false},
		{MetricConcentration, limits.MaxConcentration, 0, 100, true},
		{MetricLeverage, limits.MaxLeverage, 0, 100, true},
	}

	for _, c := range checks {
		if c.value == nil {
			continue
		}
		v := *c.value
		below := v < c.lo || (c.loOpen && v == c.lo)
		if !isFinite(v) || below || v > c.hi {
			return fmt.Errorf("%w: %s limit %v outside allowed range [%v, %v]",
				ErrInvalidConfiguration, c.name, v, c.lo, c.hi)
		}
	}

	if limits.MaxVaR != nil && (!(*limits.MaxVaR > 0) || !isFinite(*limits.MaxVaR)) {
		return fmt.Errorf("%w: var limit must be positive, got %v", ErrInvalidConfiguration, *limits.MaxVaR)
	}

	return nil
}

// CheckLimits 리스크 스냅샷을 한도와 비교
// drawdown/VaR/volatility/concentration/leverage는 초과 시, Sharpe는 미달 시 위반
func CheckLimits(metrics *RiskMetrics, exposure Exposure, limits RiskLimits) (*LimitCheckResult, error) {
	if metrics == nil {
		return nil, fmt.Errorf("%w: risk metrics are required", ErrInvalidInput)
	}
	if err := ValidateLimits(limits); err != nil {
		return nil, err
	}

	result := &LimitCheckResult{
		PortfolioID: metrics.PortfolioID,
		Breaches:    make([]RiskBreach, 0),
		CheckedAt:   time.Now(),
	}

	upper := func(metric string, current float64, limit *float64) {
		if limit != nil && current > *limit {
			result.Breaches = append(result.Breaches, newBreach(metric, current, *limit))
		}
	}

	upper(MetricDrawdown, metrics.MaxDrawdown, limits.MaxDrawdown)
	upper(MetricVaR, metrics.VaR, limits.MaxVaR)
	upper(MetricVolatility, metrics.AnnualizedVolatility, limits.MaxVolatility)
	upper(MetricConcentration, exposure.MaxAllocationPct, limits.MaxConcentration)
	upper(MetricLeverage, exposure.Leverage, limits.MaxLeverage)

	if limits.MinSharpe != nil && metrics.SharpeRatio < *limits.MinSharpe {
		result.Breaches = append(result.Breaches, newBreach(MetricSharpe, metrics.SharpeRatio, *limits.MinSharpe))
	}

	sort.Slice(result.Breaches, func(i, j int) bool {
		return result.Breaches[i].Metric < result.Breaches[j].Metric
	})
	result.AllWithinLimits = len(result.Breaches) == 0

	return result, nil
}

// newBreach 초과/미달 폭은 항상 양수
func newBreach(metric string, current, limit float64) RiskBreach {
	overage := current - limit
	if overage < 0 {
		overage = -overage
	}

	breach := RiskBreach{
		Metric:  metric,
		Current: current,
		Limit:   limit,
		Overage: overage,
	}
	if limit != 0 {
		breach.OveragePct = overage / abs(limit) * 100
	}
	return breach
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
