package risk

import (
	"fmt"
	"strings"
	"time"
)

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=200 → 200 통화 단위 손실 가능)
const VaRConvention = "loss_positive"

// TradingDaysPerYear 연환산 기준 거래일 수
const TradingDaysPerYear = 252

// =============================================================================
// Time Horizon
// =============================================================================

// TimeHorizon 리스크 측정/시뮬레이션 기간
type TimeHorizon string

const (
	Horizon1D TimeHorizon = "1D"
	Horizon1W TimeHorizon = "1W"
	Horizon1M TimeHorizon = "1M"
	Horizon3M TimeHorizon = "3M"
	Horizon6M TimeHorizon = "6M"
	Horizon1Y TimeHorizon = "1Y"
)

// ParseTimeHorizon validates a horizon label
func ParseTimeHorizon(s string) (TimeHorizon, error) {
	h := TimeHorizon(strings.ToUpper(strings.TrimSpace(s)))
	switch h {
	case Horizon1D, Horizon1W, Horizon1M, Horizon3M, Horizon6M, Horizon1Y:
		return h, nil
	}
	return "", fmt.Errorf("%w: unknown time horizon %q", ErrInvalidInput, s)
}

// Days 시뮬레이션 스텝 수 (1D=1 … 1Y=365)
func (h TimeHorizon) Days() int {
	switch h {
	case Horizon1W:
		return 7
	case Horizon1M:
		return 30
	case Horizon3M:
		return 90
	case Horizon6M:
		return 180
	case Horizon1Y:
		return 365
	default:
		return 1
	}
}

// LookbackDays 수익률 시계열 조회 기간 (달력일)
func (h TimeHorizon) LookbackDays() int {
	switch h {
	case Horizon1D, Horizon1W:
		return 180
	case Horizon1M, Horizon3M:
		return 365
	default:
		return 730
	}
}

// =============================================================================
// Risk Level
// =============================================================================

// RiskLevel 리스크 등급
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// LevelForScore maps a 0-100 risk score to a level
func LevelForScore(score float64) RiskLevel {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskMedium
	case score < 75:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

// =============================================================================
// VaR / Risk Metrics
// =============================================================================

// VaRResult VaR 계산 결과 (수익률 단위, 손실 양수)
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	TailIndex  int     `json:"tail_index"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// MetricsInput RiskMetricsCalculator 입력 (상위 레이어에서 조립)
type MetricsInput struct {
	PortfolioID     string             `json:"portfolio_id"`
	PortfolioValue  float64            `json:"portfolio_value"`
	Returns         []float64          `json:"returns"`
	Values          []float64          `json:"values,omitempty"`         // 비어 있으면 Returns로 복리 재구성
	MarketReturns   []float64          `json:"market_returns,omitempty"` // beta/alpha용, Returns와 길이 동일
	Confidence      float64            `json:"confidence"`
	RiskFreeRate    float64            `json:"risk_free_rate"`   // 연율
	BenchmarkReturn float64            `json:"benchmark_return"` // 연율
	Horizon         TimeHorizon        `json:"horizon"`
	Correlations    map[string]float64 `json:"correlations,omitempty"`
}

// RiskMetrics 리스크 스냅샷
// ⭐ SSOT: 생성 후 불변. 재계산은 새 스냅샷(새 ID, 새 CalculatedAt)을 만든다
type RiskMetrics struct {
	ID                   string             `json:"id"`
	PortfolioID          string             `json:"portfolio_id"`
	Horizon              TimeHorizon        `json:"horizon"`
	Confidence           float64            `json:"confidence"`
	PortfolioValue       float64            `json:"portfolio_value"`
	SampleCount          int                `json:"sample_count"`
	VaR                  float64            `json:"var"`
	CVaR                 float64            `json:"cvar"`
	ParametricVaR        float64            `json:"parametric_var"`
	MeanReturn           float64            `json:"mean_return"`
	AnnualizedReturn     float64            `json:"annualized_return"`
	Volatility           float64            `json:"volatility"`
	AnnualizedVolatility float64            `json:"annualized_volatility"`
	DownsideVolatility   float64            `json:"downside_volatility"`
	SharpeRatio          float64            `json:"sharpe_ratio"`
	SortinoRatio         float64            `json:"sortino_ratio"`
	CalmarRatio          float64            `json:"calmar_ratio"`
	TreynorRatio         *float64           `json:"treynor_ratio"`
	Beta                 *float64           `json:"beta"`
	Alpha                *float64           `json:"alpha"`
	MaxDrawdown          float64            `json:"max_drawdown"`     // %
	CurrentDrawdown      float64            `json:"current_drawdown"` // %
	Correlations         map[string]float64 `json:"correlations,omitempty"`
	RiskScore            float64            `json:"risk_score"`
	RiskLevel            RiskLevel          `json:"risk_level"`
	CalculatedAt         time.Time          `json:"calculated_at"`
}

// VaRPercent VaR as a percentage of portfolio value
func (m *RiskMetrics) VaRPercent() float64 {
	if m.PortfolioValue == 0 {
		return 0
	}
	return m.VaR / m.PortfolioValue * 100
}

// =============================================================================
// Position Risk
// =============================================================================

// DefaultAssetVolatility 변동성 정보가 없는 종목의 기본 연 변동성
const DefaultAssetVolatility = 0.20

// PositionRisk 종목별 리스크 기여도
type PositionRisk struct {
	Symbol                string  `json:"symbol"`
	Exposure              float64 `json:"exposure"`
	PercentageOfPortfolio float64 `json:"percentage_of_portfolio"`
	Volatility            float64 `json:"volatility"`
	IndividualVaR         float64 `json:"individual_var"`
	MarginalVaR           float64 `json:"marginal_var"`
	ComponentVaR          float64 `json:"component_var"`
	ConcentrationRisk     float64 `json:"concentration_risk"`
	VolatilityDefaulted   bool    `json:"volatility_defaulted,omitempty"`
}

// =============================================================================
// Stress Test
// =============================================================================

// Severity 스트레스 결과 심각도
type Severity string

const (
	SeverityLow     Severity = "LOW"
	SeverityMedium  Severity = "MEDIUM"
	SeverityHigh    Severity = "HIGH"
	SeverityExtreme Severity = "EXTREME"
)

// StressScenario 스트레스 시나리오 (입력, 저장하지 않음)
type StressScenario struct {
	Name                 string  `json:"name"`
	MarketChange         float64 `json:"market_change"`         // % (예: -30)
	VolatilityMultiplier float64 `json:"volatility_multiplier"` // 예: 2.5
	CorrelationShock     float64 `json:"correlation_shock"`     // 상관계수 가산
	Duration             string  `json:"duration"`              // 표시용 라벨
}

// AssetImpact 시나리오 하 종목별 영향
type AssetImpact struct {
	Symbol        string  `json:"symbol"`
	CurrentValue  float64 `json:"current_value"`
	StressedPrice float64 `json:"stressed_price"`
	StressedValue float64 `json:"stressed_value"`
	Loss          float64 `json:"loss"`
	LossPct       float64 `json:"loss_pct"`
}

// StressedMetrics 시나리오 하 추정 지표 (실시간 계산기와 독립)
type StressedMetrics struct {
	Volatility  float64 `json:"volatility"`
	VaR         float64 `json:"var"`
	Correlation float64 `json:"correlation"`
}

// StressTestResult 시나리오별 결과
// Error가 채워진 결과는 해당 시나리오만 실패했음을 뜻한다
type StressTestResult struct {
	ScenarioName    string          `json:"scenario_name"`
	Duration        string          `json:"duration,omitempty"`
	PortfolioValue  float64         `json:"portfolio_value"`
	PortfolioLoss   float64         `json:"portfolio_loss"`
	LossPercentage  float64         `json:"loss_percentage"`
	AssetImpacts    []AssetImpact   `json:"asset_impacts,omitempty"`
	StressedMetrics StressedMetrics `json:"stressed_metrics"`
	Severity        Severity        `json:"severity,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Failed reports whether the scenario could not be evaluated
func (r StressTestResult) Failed() bool {
	return r.Error != ""
}

// =============================================================================
// Monte Carlo Types
// =============================================================================

// DefaultPercentiles 보고 대상 백분위
var DefaultPercentiles = []int{5, 10, 25, 50, 75, 90, 95}

// MonteCarloConfig Monte Carlo 시뮬레이션 설정
// ⭐ SSOT: 재현성을 위해 모든 설정을 결과에 기록
type MonteCarloConfig struct {
	NumSimulations int         `json:"num_simulations"`
	Horizon        TimeHorizon `json:"horizon"`
	Seed           int64       `json:"seed"`         // 0 = 시각 기반 시드
	Workers        int         `json:"workers"`      // 병렬 워커 수 (0 = NumCPU)
	SamplePaths    int         `json:"sample_paths"` // 보관할 경로 수
}

// MaxSimulations 단일 실행 최대 시뮬레이션 수
const MaxSimulations = 100000

// DefaultMonteCarloConfig 기본 Monte Carlo 설정
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		NumSimulations: 5000,
		Horizon:        Horizon1M,
		Seed:           0,
		Workers:        0,
		SamplePaths:    100,
	}
}

// MonteCarloResult Monte Carlo 결과 분포 요약
type MonteCarloResult struct {
	RunID             string           `json:"run_id"`
	PortfolioID       string           `json:"portfolio_id,omitempty"`
	Config            MonteCarloConfig `json:"config"`
	StartValue        float64          `json:"start_value"`
	Days              int              `json:"days"`
	InputSampleCount  int              `json:"input_sample_count"`
	MeanReturn        float64          `json:"mean_return"`
	StdDev            float64          `json:"std_dev"`
	Percentiles       map[int]float64  `json:"percentiles"`
	ProbabilityOfLoss float64          `json:"probability_of_loss"`
	ExpectedValue     float64          `json:"expected_value"`
	BestCase          float64          `json:"best_case"`
	WorstCase         float64          `json:"worst_case"`
	MostLikely        float64          `json:"most_likely"`
	VaR95             float64          `json:"var_95"` // StartValue - P5, 손실 양수
	SamplePaths       [][]float64      `json:"sample_paths"`
	CreatedAt         time.Time        `json:"created_at"`
}

// =============================================================================
// Liquidity Types
// =============================================================================

// AssetLiquidity 종목별 유동성
type AssetLiquidity struct {
	Symbol          string  `json:"symbol"`
	PositionValue   float64 `json:"position_value"`
	AvgDailyVolume  float64 `json:"avg_daily_volume"`
	DaysToLiquidate float64 `json:"days_to_liquidate"`
	MarketImpact    float64 `json:"market_impact"`
	LiquidityScore  float64 `json:"liquidity_score"`
}

// LiquidityBuckets 청산 소요기간별 평가금액 합계
type LiquidityBuckets struct {
	Immediate  float64 `json:"immediate"` // < 0.1일
	Within1Day float64 `json:"within_1_day"`
	Within1Wk  float64 `json:"within_1_week"`
	Illiquid   float64 `json:"illiquid"`
}

// StressedLiquidity 유동성 스트레스 전망
type StressedLiquidity struct {
	VolumeMultiplier float64 `json:"volume_multiplier"`
	SpreadMultiplier float64 `json:"spread_multiplier"`
	DaysToLiquidate  float64 `json:"days_to_liquidate"`
	MarketImpact     float64 `json:"market_impact"`
	LiquidityScore   float64 `json:"liquidity_score"`
}

// LiquidityRisk 포트폴리오 유동성 리스크
type LiquidityRisk struct {
	PortfolioID     string            `json:"portfolio_id,omitempty"`
	TotalValue      float64           `json:"total_value"`
	LiquidityScore  float64           `json:"liquidity_score"`
	DaysToLiquidate float64           `json:"days_to_liquidate"`
	Assets          []AssetLiquidity  `json:"assets"`
	Buckets         LiquidityBuckets  `json:"buckets"`
	Stressed        StressedLiquidity `json:"stressed"`
	CalculatedAt    time.Time         `json:"calculated_at"`
}

// =============================================================================
// Risk Limits
// =============================================================================

// RiskLimits 리스크 한도 설정 (모든 항목 선택적)
type RiskLimits struct {
	MaxDrawdown      *float64 `json:"max_drawdown,omitempty"`      // % (0, 100]
	MaxVaR           *float64 `json:"max_var,omitempty"`           // 통화 단위
	MaxVolatility    *float64 `json:"max_volatility,omitempty"`    // 연 변동성 (0.25 = 25%)
	MinSharpe        *float64 `json:"min_sharpe,omitempty"`
	MaxConcentration *float64 `json:"max_concentration,omitempty"` // 단일 종목 최대 비중 %
	MaxLeverage      *float64 `json:"max_leverage,omitempty"`      // 총 익스포저 / 평가금액
}

// IsEmpty reports whether no limit is configured
func (l RiskLimits) IsEmpty() bool {
	return l.MaxDrawdown == nil && l.MaxVaR == nil && l.MaxVolatility == nil &&
		l.MinSharpe == nil && l.MaxConcentration == nil && l.MaxLeverage == nil
}

// Exposure 한도 체크에 필요한 포지션 기반 지표
type Exposure struct {
	MaxAllocationPct float64 `json:"max_allocation_pct"`
	Leverage         float64 `json:"leverage"`
}

// RiskBreach 한도 위반 기록
type RiskBreach struct {
	Metric     string  `json:"metric"`
	Current    float64 `json:"current"`
	Limit      float64 `json:"limit"`
	Overage    float64 `json:"overage"`
	OveragePct float64 `json:"overage_pct"`
}

// LimitCheckResult 한도 체크 결과
type LimitCheckResult struct {
	PortfolioID     string       `json:"portfolio_id,omitempty"`
	Breaches        []RiskBreach `json:"breaches"`
	AllWithinLimits bool         `json:"all_within_limits"`
	CheckedAt       time.Time    `json:"checked_at"`
}

// =============================================================================
// Report Types
// =============================================================================

// ReportType 리포트 종류
type ReportType string

const (
	ReportSummary    ReportType = "SUMMARY"
	ReportDetailed   ReportType = "DETAILED"
	ReportRegulatory ReportType = "REGULATORY"
)

// ParseReportType validates a report type label
func ParseReportType(s string) (ReportType, error) {
	t := ReportType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case ReportSummary, ReportDetailed, ReportRegulatory:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown report type %q", ErrInvalidInput, s)
}

// ExtremeMove 단일 기간 최대 상승/하락
type ExtremeMove struct {
	Date      time.Time `json:"date"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
}

// HistoricalPerformance 기간 내 성과 요약
type HistoricalPerformance struct {
	StartValue  float64      `json:"start_value"`
	EndValue    float64      `json:"end_value"`
	BestPeriod  *ExtremeMove `json:"best_period,omitempty"`
	WorstPeriod *ExtremeMove `json:"worst_period,omitempty"`
}

// VaRBacktest 규제용 VaR 백테스트 (Kupiec)
type VaRBacktest struct {
	Observations       int     `json:"observations"`
	Violations         int     `json:"violations"`
	ExpectedViolations float64 `json:"expected_violations"`
	ViolationRate      float64 `json:"violation_rate"`
	WithinTolerance    bool    `json:"within_tolerance"`
	KupiecLR           float64 `json:"kupiec_lr"`
	KupiecPValue       float64 `json:"kupiec_p_value"`
}

// RiskReport 리스크 리포트
type RiskReport struct {
	ReportID      string                `json:"report_id"`
	PortfolioID   string                `json:"portfolio_id"`
	ReportType    ReportType            `json:"report_type"`
	PeriodStart   time.Time             `json:"period_start"`
	PeriodEnd     time.Time             `json:"period_end"`
	Metrics       *RiskMetrics          `json:"metrics"`
	PositionRisks []PositionRisk        `json:"position_risks"`
	Performance   HistoricalPerformance `json:"performance"`
	StressTests   []StressTestResult    `json:"stress_tests,omitempty"`
	Backtest      *VaRBacktest          `json:"backtest,omitempty"`
	GeneratedAt   time.Time             `json:"generated_at"`
}
