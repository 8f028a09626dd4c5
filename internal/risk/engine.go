package risk

import (
	"context"
	"math/rand"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// 패키지 내부에서 쓰는 오류 분류 (contracts와 동일한 센티넬)
var (
	ErrInvalidInput         = contracts.ErrInvalidInput
	ErrInvalidConfiguration = contracts.ErrInvalidConfiguration
)

// =============================================================================
// Engine - 순수 계산기
// =============================================================================

// Engine 리스크 엔진 (순수 계산기)
// ⭐ SSOT: 데이터 수집/저장은 상위 레이어(analytics)에서 조립
// internal/risk는 순수 계산만 담당
type Engine struct {
	monteCarlo MonteCarloConfig
	source     func(seed int64) rand.Source
}

// Option Engine 설정
type Option func(*Engine)

// WithMonteCarloDefaults 요청에서 비어 있는 Monte Carlo 설정을 채울 기본값
func WithMonteCarloDefaults(cfg MonteCarloConfig) Option {
	return func(e *Engine) {
		e.monteCarlo = cfg
	}
}

// WithRandSource 시드별 난수원 생성 함수 (테스트용)
func WithRandSource(fn func(seed int64) rand.Source) Option {
	return func(e *Engine) {
		e.source = fn
	}
}

// NewEngine 새 리스크 엔진 생성
func NewEngine(opts ...Option) *Engine {
	e := &Engine{monteCarlo: DefaultMonteCarloConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics RiskMetrics 스냅샷 계산
func (e *Engine) Metrics(input MetricsInput) (*RiskMetrics, error) {
	return CalculateMetrics(input)
}

// Positions 종목별 리스크 기여도
func (e *Engine) Positions(portfolioValue float64, positions []contracts.Position, vols map[string]float64) ([]PositionRisk, error) {
	return AnalyzePositions(portfolioValue, positions, vols)
}

// Stress 스트레스 테스트 (scenarios가 nil이면 기본 시나리오)
func (e *Engine) Stress(input StressInput, scenarios []StressScenario) []StressTestResult {
	if scenarios == nil {
		scenarios = DefaultScenarios()
	}
	return RunStressTests(input, scenarios)
}

// MonteCarlo 포트폴리오 Monte Carlo 시뮬레이션
// cfg의 0 값 필드는 엔진 기본값으로 채운다
func (e *Engine) MonteCarlo(ctx context.Context, startValue float64, returns []float64, cfg MonteCarloConfig) (*MonteCarloResult, error) {
	cfg = e.withDefaults(cfg)

	var src rand.Source
	if e.source != nil && cfg.Seed != 0 {
		src = e.source(cfg.Seed)
	}
	return NewMonteCarloSimulator(cfg, src).Simulate(ctx, startValue, returns)
}

// Liquidity 유동성 리스크
func (e *Engine) Liquidity(positions []contracts.Position, volumes map[string]float64) (*LiquidityRisk, error) {
	return AnalyzeLiquidity(positions, volumes)
}

// CheckLimits 리스크 한도 체크
func (e *Engine) CheckLimits(metrics *RiskMetrics, exposure Exposure, limits RiskLimits) (*LimitCheckResult, error) {
	return CheckLimits(metrics, exposure, limits)
}

// Report 리스크 리포트 조립
func (e *Engine) Report(input ReportInput) (*RiskReport, error) {
	return BuildReport(input)
}

func (e *Engine) withDefaults(cfg MonteCarloConfig) MonteCarloConfig {
	if cfg.NumSimulations == 0 {
		cfg.NumSimulations = e.monteCarlo.NumSimulations
	}
	if cfg.Horizon == "" {
		cfg.Horizon = e.monteCarlo.Horizon
	}
	if cfg.Workers == 0 {
		cfg.Workers = e.monteCarlo.Workers
	}
	if cfg.Seed == 0 {
		cfg.Seed = e.monteCarlo.Seed
	}
	if cfg.SamplePaths == 0 {
		cfg.SamplePaths = e.monteCarlo.SamplePaths
	}
	return cfg
}
