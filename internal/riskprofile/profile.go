// Package riskprofile loads the YAML risk profile: custom stress scenarios
// and fallback risk limits applied when a portfolio has none stored.
package riskprofile

import (
	"time"

	"github.com/wonny/aegis-risk/internal/risk"
)

// Profile 리스크 프로파일 (YAML 1:1 매핑)
// ⭐ SSOT: 프로파일 파일 구조는 여기서만 정의
type Profile struct {
	Meta          Meta           `yaml:"meta" json:"meta"`
	Scenarios     []Scenario     `yaml:"scenarios" json:"scenarios"`
	DefaultLimits *DefaultLimits `yaml:"default_limits,omitempty" json:"default_limits,omitempty"`
}

// Meta 프로파일 메타데이터
type Meta struct {
	ProfileID   string `yaml:"profile_id" json:"profile_id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Scenario 스트레스 시나리오
type Scenario struct {
	Name                 string  `yaml:"name" json:"name"`
	MarketChangePct      float64 `yaml:"market_change_pct" json:"market_change_pct"`
	VolatilityMultiplier float64 `yaml:"volatility_multiplier" json:"volatility_multiplier"`
	CorrelationShock     float64 `yaml:"correlation_shock" json:"correlation_shock"`
	Duration             string  `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// DefaultLimits 저장된 한도가 없는 포트폴리오에 적용할 한도
type DefaultLimits struct {
	MaxDrawdownPct      *float64 `yaml:"max_drawdown_pct,omitempty" json:"max_drawdown_pct,omitempty"`
	MaxVaR              *float64 `yaml:"max_var,omitempty" json:"max_var,omitempty"`
	MaxVolatility       *float64 `yaml:"max_volatility,omitempty" json:"max_volatility,omitempty"`
	MinSharpe           *float64 `yaml:"min_sharpe,omitempty" json:"min_sharpe,omitempty"`
	MaxConcentrationPct *float64 `yaml:"max_concentration_pct,omitempty" json:"max_concentration_pct,omitempty"`
	MaxLeverage         *float64 `yaml:"max_leverage,omitempty" json:"max_leverage,omitempty"`
}

// StressScenarios converts profile scenarios (비어 있으면 nil → 엔진 기본 시나리오)
func (p *Profile) StressScenarios() []risk.StressScenario {
	if len(p.Scenarios) == 0 {
		return nil
	}

	out := make([]risk.StressScenario, len(p.Scenarios))
	for i, s := range p.Scenarios {
		out[i] = risk.StressScenario{
			Name:                 s.Name,
			MarketChange:         s.MarketChangePct,
			VolatilityMultiplier: s.VolatilityMultiplier,
			CorrelationShock:     s.CorrelationShock,
			Duration:             s.Duration,
		}
	}
	return out
}

// Limits converts default limits (없으면 nil)
func (p *Profile) Limits() *risk.RiskLimits {
	if p.DefaultLimits == nil {
		return nil
	}

	d := p.DefaultLimits
	return &risk.RiskLimits{
		MaxDrawdown:      d.MaxDrawdownPct,
		MaxVaR:           d.MaxVaR,
		MaxVolatility:    d.MaxVolatility,
		MinSharpe:        d.MinSharpe,
		MaxConcentration: d.MaxConcentrationPct,
		MaxLeverage:      d.MaxLeverage,
	}
}

// Snapshot 로드된 프로파일 기록 (로그/감사용)
type Snapshot struct {
	ProfileID string    `json:"profile_id"`
	Hash      string    `json:"hash"`
	YAML      string    `json:"yaml"`
	LoadedAt  time.Time `json:"loaded_at"`
}
