package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/metrics"
)

// 연산 이름 (메트릭 라벨, 로그 필드)
const (
	OpMetrics     = "metrics"
	OpPositions   = "positions"
	OpStress      = "stress"
	OpSetLimits   = "set_limits"
	OpCheckLimits = "check_limits"
	OpMonteCarlo  = "montecarlo"
	OpLiquidity   = "liquidity"
	OpReport      = "report"
)

// DefaultReportPeriod 기간 미지정 리포트의 기본 길이
const DefaultReportPeriod = 365 * 24 * time.Hour

// Settings defaults applied when a request omits a value
type Settings struct {
	DefaultConfidence float64
	DefaultHorizon    risk.TimeHorizon
	Scenarios         []risk.StressScenario // nil이면 엔진 기본 시나리오
	DefaultLimits     *risk.RiskLimits      // 저장된 한도가 없을 때 적용
}

// Deps collaborators of the service
type Deps struct {
	Portfolios PortfolioSource
	Returns    ReturnSeriesSource
	Market     MarketStatsSource
	Store      MetricsStore
	Engine     *risk.Engine
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// Service assembles collaborator data and runs the risk engine
// ⭐ SSOT: 외부 호출(조회/저장)은 여기서만, 계산은 internal/risk
type Service struct {
	portfolios PortfolioSource
	returns    ReturnSeriesSource
	market     MarketStatsSource
	store      MetricsStore
	engine     *risk.Engine
	settings   Settings
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService creates a risk analytics service
func NewService(deps Deps, settings Settings) *Service {
	if settings.DefaultConfidence == 0 {
		settings.DefaultConfidence = 0.95
	}
	if settings.DefaultHorizon == "" {
		settings.DefaultHorizon = risk.Horizon1D
	}
	if deps.Engine == nil {
		deps.Engine = risk.NewEngine()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	return &Service{
		portfolios: deps.Portfolios,
		returns:    deps.Returns,
		market:     deps.Market,
		store:      deps.Store,
		engine:     deps.Engine,
		settings:   settings,
		logger:     deps.Logger.Component("analytics"),
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// =============================================================================
// Operations
// =============================================================================

// CalculateRiskMetrics computes and persists a fresh risk snapshot
// horizon "" / confidence 0 이면 기본값
func (s *Service) CalculateRiskMetrics(ctx context.Context, portfolioID, horizon string, confidence float64, includeCorrelations bool) (m *risk.RiskMetrics, err error) {
	start := time.Now()
	defer func() { s.track(OpMetrics, portfolioID, start, err) }()

	h, err := s.horizon(horizon)
	if err != nil {
		return nil, err
	}

	portfolio, positions, err := s.loadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	m, err = s.computeMetrics(ctx, portfolio, positions, h, s.confidence(confidence), includeCorrelations)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveMetrics(ctx, m); err != nil {
		return nil, dependency("save metrics", err)
	}

	s.logger.Portfolio(portfolioID).WithFields(map[string]interface{}{
		"horizon":    m.Horizon,
		"var":        m.VaR,
		"cvar":       m.CVaR,
		"risk_score": m.RiskScore,
		"risk_level": m.RiskLevel,
		"samples":    m.SampleCount,
	}).Info("Risk metrics calculated")

	return m, nil
}

// CalculatePositionRisks decomposes portfolio risk per holding
func (s *Service) CalculatePositionRisks(ctx context.Context, portfolioID string) (risks []risk.PositionRisk, err error) {
	start := time.Now()
	defer func() { s.track(OpPositions, portfolioID, start, err) }()

	portfolio, positions, err := s.loadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	vols, err := s.market.GetVolatility(ctx, contracts.Symbols(positions))
	if err != nil {
		return nil, dependency("volatility", err)
	}

	return s.engine.Positions(portfolio.TotalValue, positions, vols)
}

// RunStressTests evaluates scenarios against current holdings (nil → 기본 시나리오)
// 최근 스냅샷이 있으면 그 연 변동성을 기준 변동성으로 사용
func (s *Service) RunStressTests(ctx context.Context, portfolioID string, scenarios []risk.StressScenario) (results []risk.StressTestResult, err error) {
	start := time.Now()
	defer func() { s.track(OpStress, portfolioID, start, err) }()

	portfolio, positions, err := s.loadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	input := risk.StressInput{
		Positions:      positions,
		PortfolioValue: portfolio.TotalValue,
	}

	latest, err := s.store.LatestMetrics(ctx, portfolioID)
	switch {
	case err == nil && latest.AnnualizedVolatility > 0:
		input.BaselineVolatility = latest.AnnualizedVolatility
	case err != nil && !errors.Is(err, contracts.ErrNotFound):
		// 기준 변동성은 선택 입력이므로 조회 실패 시 기본값으로 진행
		s.logger.Portfolio(portfolioID).WithError(err).Warn("Latest metrics unavailable, using default baseline volatility")
	}

	if scenarios == nil {
		scenarios = s.settings.Scenarios
	}
	results = s.engine.Stress(input, scenarios)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	s.logger.Portfolio(portfolioID).WithFields(map[string]interface{}{
		"scenarios": len(results),
		"failed":    failed,
	}).Info("Stress tests completed")

	return results, nil
}

// SetRiskLimits validates and stores limits for a portfolio
func (s *Service) SetRiskLimits(ctx context.Context, portfolioID string, limits risk.RiskLimits) (_ *risk.RiskLimits, err error) {
	start := time.Now()
	defer func() { s.track(OpSetLimits, portfolioID, start, err) }()

	if err := risk.ValidateLimits(limits); err != nil {
		return nil, err
	}
	if _, err := s.portfolio(ctx, portfolioID); err != nil {
		return nil, err
	}

	if err := s.store.SaveRiskLimits(ctx, portfolioID, limits); err != nil {
		return nil, dependency("save limits", err)
	}

	s.logger.Portfolio(portfolioID).Info("Risk limits updated")
	return &limits, nil
}

// CheckRiskLimits compares a fresh snapshot with limits
// limits가 nil이면 저장된 한도 사용 (없으면 ErrNotFound)
func (s *Service) CheckRiskLimits(ctx context.Context, portfolioID string, limits *risk.RiskLimits) (result *risk.LimitCheckResult, err error) {
	start := time.Now()
	defer func() { s.track(OpCheckLimits, portfolioID, start, err) }()

	if limits == nil {
		limits, err = s.storedLimits(ctx, portfolioID)
		if err != nil {
			return nil, err
		}
	}
	if err := risk.ValidateLimits(*limits); err != nil {
		return nil, err
	}

	portfolio, positions, err := s.loadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	m, err := s.computeMetrics(ctx, portfolio, positions, s.settings.DefaultHorizon, s.settings.DefaultConfidence, false)
	if err != nil {
		return nil, err
	}

	return s.checkAgainst(portfolio, positions, m, *limits)
}

// CheckSnapshotLimits checks an already computed snapshot against stored limits
// 메트릭 재계산 없이 보유 종목만 다시 읽어 노출도 계산
func (s *Service) CheckSnapshotLimits(ctx context.Context, m *risk.RiskMetrics) (result *risk.LimitCheckResult, err error) {
	if m == nil {
		return nil, fmt.Errorf("%w: metrics snapshot is required", contracts.ErrInvalidInput)
	}
	start := time.Now()
	defer func() { s.track(OpCheckLimits, m.PortfolioID, start, err) }()

	limits, err := s.storedLimits(ctx, m.PortfolioID)
	if err != nil {
		return nil, err
	}
	if err := risk.ValidateLimits(*limits); err != nil {
		return nil, err
	}

	portfolio, positions, err := s.loadHoldings(ctx, m.PortfolioID)
	if err != nil {
		return nil, err
	}

	return s.checkAgainst(portfolio, positions, m, *limits)
}

// checkAgainst runs the limit monitor and records breaches
func (s *Service) checkAgainst(portfolio *contracts.Portfolio, positions []contracts.Position, m *risk.RiskMetrics, limits risk.RiskLimits) (*risk.LimitCheckResult, error) {
	portfolioID := portfolio.ID
	exposure := risk.MeasureExposure(portfolio.TotalValue, positions)
	result, err := s.engine.CheckLimits(m, exposure, limits)
	if err != nil {
		return nil, err
	}
	result.PortfolioID = portfolioID

	for _, b := range result.Breaches {
		s.metrics.RecordBreach(b.Metric)
		s.logger.Portfolio(portfolioID).WithFields(map[string]interface{}{
			"metric":      b.Metric,
			"current":     b.Current,
			"limit":       b.Limit,
			"overage_pct": b.OveragePct,
		}).Warn("Risk limit breached")
	}

	return result, nil
}

// RunMonteCarloSimulation projects portfolio value over horizon
// numSimulations 0 / horizon "" 이면 엔진 기본값
func (s *Service) RunMonteCarloSimulation(ctx context.Context, portfolioID string, numSimulations int, horizon string) (result *risk.MonteCarloResult, err error) {
	start := time.Now()
	defer func() { s.track(OpMonteCarlo, portfolioID, start, err) }()

	if numSimulations < 0 || numSimulations > risk.MaxSimulations {
		return nil, fmt.Errorf("%w: num simulations must be in [1, %d], got %d",
			contracts.ErrInvalidInput, risk.MaxSimulations, numSimulations)
	}

	cfg := risk.MonteCarloConfig{NumSimulations: numSimulations}
	lookback := risk.Horizon1M.LookbackDays()
	if strings.TrimSpace(horizon) != "" {
		h, err := risk.ParseTimeHorizon(horizon)
		if err != nil {
			return nil, err
		}
		cfg.Horizon = h
		lookback = h.LookbackDays()
	}

	portfolio, err := s.portfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	returns, err := s.returns.GetReturnSeries(ctx, portfolioID, lookback)
	if err != nil {
		return nil, dependency("return series", err)
	}

	result, err = s.engine.MonteCarlo(ctx, portfolio.TotalValue, returns, cfg)
	if err != nil {
		return nil, err
	}
	result.PortfolioID = portfolioID

	s.logger.Portfolio(portfolioID).WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"simulations": result.Config.NumSimulations,
		"days":        result.Days,
		"p_loss":      result.ProbabilityOfLoss,
		"var_95":      result.VaR95,
	}).Info("Monte Carlo simulation completed")

	return result, nil
}

// CalculateLiquidityRisk estimates time to liquidate current holdings
func (s *Service) CalculateLiquidityRisk(ctx context.Context, portfolioID string) (result *risk.LiquidityRisk, err error) {
	start := time.Now()
	defer func() { s.track(OpLiquidity, portfolioID, start, err) }()

	_, positions, err := s.loadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	volumes, err := s.market.GetVolume(ctx, contracts.Symbols(positions))
	if err != nil {
		return nil, dependency("volume", err)
	}

	result, err = s.engine.Liquidity(positions, volumes)
	if err != nil {
		return nil, err
	}
	result.PortfolioID = portfolioID
	return result, nil
}

// GenerateRiskReport builds a SUMMARY / DETAILED / REGULATORY report
// start/end가 비어 있으면 최근 1년, 최근 스냅샷이 있으면 재사용 (없을 때만 계산)
func (s *Service) GenerateRiskReport(ctx context.Context, portfolioID, reportType string, periodStart, periodEnd time.Time) (report *risk.RiskReport, err error) {
	start := time.Now()
	defer func() { s.track(OpReport, portfolioID, start, err) }()

	rt, err := risk.ParseReportType(reportType)
	if err != nil {
		return nil, err
	}
	if periodEnd.IsZero() {
		periodEnd = s.now()
	}
	if periodStart.IsZero() {
		periodStart = periodEnd.Add(-DefaultReportPeriod)
	}
	if periodEnd.Before(periodStart) {
		return nil, fmt.Errorf("%w: report period end %s is before start %s",
			contracts.ErrInvalidInput, periodEnd.Format("2006-01-02"), periodStart.Format("2006-01-02"))
	}

	portfolio, positions, err := s.loadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.latestSnapshot(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	in, err := s.gather(ctx, portfolioID, positions, gatherOptions{
		horizon:      s.settings.DefaultHorizon,
		volatilities: true,
		historyStart: periodStart,
		historyEnd:   periodEnd,
	})
	if err != nil {
		return nil, err
	}

	report, err = s.engine.Report(risk.ReportInput{
		PortfolioID:  portfolioID,
		ReportType:   rt,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		Metrics:      snapshot,
		MetricsInput: s.metricsInput(portfolio, in, s.settings.DefaultHorizon, s.settings.DefaultConfidence),
		Positions:    positions,
		Volatilities: in.volatilities,
		History:      in.history,
	})
	if err != nil {
		return nil, err
	}

	// 스냅샷이 없어 새로 계산했으면 저장 (저장 실패는 리포트를 막지 않음)
	if snapshot == nil {
		if err := s.store.SaveMetrics(ctx, report.Metrics); err != nil {
			s.logger.Portfolio(portfolioID).WithError(err).Warn("Failed to persist report metrics snapshot")
		}
	}

	s.logger.Portfolio(portfolioID).WithFields(map[string]interface{}{
		"report_id":   report.ReportID,
		"report_type": report.ReportType,
		"metrics_id":  report.Metrics.ID,
		"reused":      snapshot != nil,
	}).Info("Risk report generated")

	return report, nil
}

// =============================================================================
// Data assembly
// =============================================================================

// gatherOptions 동시 조회 대상
type gatherOptions struct {
	horizon      risk.TimeHorizon
	correlations bool
	volatilities bool
	historyStart time.Time
	historyEnd   time.Time
}

// marketInputs 동시 조회 결과
type marketInputs struct {
	returns      []float64
	history      []contracts.ValuePoint
	market       []float64
	riskFree     float64
	benchmark    float64
	correlations map[string]float64
	volatilities map[string]float64
}

// gather fetches independent collaborator data concurrently
// 필수 입력 하나라도 실패하면 나머지는 취소되고 첫 오류를 반환
func (s *Service) gather(ctx context.Context, portfolioID string, positions []contracts.Position, opts gatherOptions) (*marketInputs, error) {
	var in marketInputs
	lookback := opts.horizon.LookbackDays()
	symbols := contracts.Symbols(positions)

	if opts.historyEnd.IsZero() {
		opts.historyEnd = s.now()
	}
	if opts.historyStart.IsZero() {
		opts.historyStart = opts.historyEnd.AddDate(0, 0, -lookback)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		returns, err := s.returns.GetReturnSeries(gctx, portfolioID, lookback)
		in.returns = returns
		return dependency("return series", err)
	})
	g.Go(func() error {
		history, err := s.returns.GetHistoricalValues(gctx, portfolioID, opts.historyStart, opts.historyEnd)
		in.history = history
		return dependency("value history", err)
	})
	g.Go(func() error {
		rf, err := s.market.GetRiskFreeRate(gctx)
		in.riskFree = rf
		return dependency("risk-free rate", err)
	})
	g.Go(func() error {
		b, err := s.market.GetBenchmarkReturn(gctx)
		in.benchmark = b
		return dependency("benchmark return", err)
	})
	// 시장 수익률은 선택 입력: 실패하면 beta/alpha/Treynor 없이 계산
	g.Go(func() error {
		market, err := s.market.GetMarketReturns(gctx, lookback)
		if err != nil {
			if gctx.Err() != nil {
				return dependency("market returns", err)
			}
			s.logger.Portfolio(portfolioID).WithError(err).Warn("Market return series unavailable, beta skipped")
			return nil
		}
		in.market = market
		return nil
	})
	if opts.correlations && len(symbols) > 1 {
		g.Go(func() error {
			corr, err := s.market.GetCorrelations(gctx, symbols)
			in.correlations = corr
			return dependency("correlations", err)
		})
	}
	if opts.volatilities && len(symbols) > 0 {
		g.Go(func() error {
			vols, err := s.market.GetVolatility(gctx, symbols)
			in.volatilities = vols
			return dependency("volatility", err)
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Portfolio(portfolioID).WithError(err).Warn("Collaborator fetch failed")
		return nil, err
	}
	return &in, nil
}

// computeMetrics gathers inputs and runs the calculator without persisting
func (s *Service) computeMetrics(
	ctx context.Context,
	portfolio *contracts.Portfolio,
	positions []contracts.Position,
	horizon risk.TimeHorizon,
	confidence float64,
	includeCorrelations bool,
) (*risk.RiskMetrics, error) {
	in, err := s.gather(ctx, portfolio.ID, positions, gatherOptions{
		horizon:      horizon,
		correlations: includeCorrelations,
	})
	if err != nil {
		return nil, err
	}

	return s.engine.Metrics(s.metricsInput(portfolio, in, horizon, confidence))
}

func (s *Service) metricsInput(portfolio *contracts.Portfolio, in *marketInputs, horizon risk.TimeHorizon, confidence float64) risk.MetricsInput {
	input := risk.MetricsInput{
		PortfolioID:     portfolio.ID,
		PortfolioValue:  portfolio.TotalValue,
		Returns:         in.returns,
		Confidence:      confidence,
		RiskFreeRate:    in.riskFree,
		BenchmarkReturn: in.benchmark,
		Horizon:         horizon,
		Correlations:    in.correlations,
	}
	if len(in.history) >= 2 {
		input.Values = contracts.ValuesOf(in.history)
	}

	input.MarketReturns = alignMarket(in.returns, in.market)
	if input.MarketReturns == nil && len(in.market) > 0 {
		s.logger.Portfolio(portfolio.ID).WithFields(map[string]interface{}{
			"returns": len(in.returns),
			"market":  len(in.market),
		}).Debug("Market series shorter than return series, beta skipped")
	}

	return input
}

// alignMarket trims the market series to the tail matching the return series
func alignMarket(returns, market []float64) []float64 {
	if len(returns) == 0 || len(market) < len(returns) {
		return nil
	}
	return market[len(market)-len(returns):]
}

// loadHoldings reads the portfolio and positions, logging value drift
func (s *Service) loadHoldings(ctx context.Context, portfolioID string) (*contracts.Portfolio, []contracts.Position, error) {
	portfolio, err := s.portfolio(ctx, portfolioID)
	if err != nil {
		return nil, nil, err
	}

	positions, err := s.portfolios.GetPositions(ctx, portfolioID)
	if err != nil {
		return nil, nil, dependency("positions", err)
	}

	// 가격 갱신 시점 차이로 인한 불일치는 경고만
	if drift, ok := contracts.CheckValueDrift(portfolio, positions, contracts.DefaultValueDriftTolerance); !ok {
		s.logger.Portfolio(portfolioID).WithFields(map[string]interface{}{
			"portfolio_value": portfolio.TotalValue,
			"positions_value": contracts.PositionsValue(positions),
			"drift":           drift,
		}).Warn("Position values drift from portfolio total")
	}

	return portfolio, positions, nil
}

func (s *Service) portfolio(ctx context.Context, portfolioID string) (*contracts.Portfolio, error) {
	if strings.TrimSpace(portfolioID) == "" {
		return nil, fmt.Errorf("%w: portfolio id is required", contracts.ErrInvalidInput)
	}

	portfolio, err := s.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, dependency("portfolio", err)
	}
	return portfolio, nil
}

// latestSnapshot 최근 저장된 메트릭 스냅샷, 없으면 nil
func (s *Service) latestSnapshot(ctx context.Context, portfolioID string) (*risk.RiskMetrics, error) {
	latest, err := s.store.LatestMetrics(ctx, portfolioID)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dependency("latest metrics", err)
	}
	return latest, nil
}

// storedLimits 저장된 한도, 없으면 프로파일 기본 한도
func (s *Service) storedLimits(ctx context.Context, portfolioID string) (*risk.RiskLimits, error) {
	limits, err := s.store.GetRiskLimits(ctx, portfolioID)
	if errors.Is(err, contracts.ErrNotFound) && s.settings.DefaultLimits != nil {
		fallback := *s.settings.DefaultLimits
		return &fallback, nil
	}
	if err != nil {
		return nil, dependency("risk limits", err)
	}
	return limits, nil
}

func (s *Service) horizon(label string) (risk.TimeHorizon, error) {
	if strings.TrimSpace(label) == "" {
		return s.settings.DefaultHorizon, nil
	}
	return risk.ParseTimeHorizon(label)
}

func (s *Service) confidence(c float64) float64 {
	if c == 0 {
		return s.settings.DefaultConfidence
	}
	return c
}

// track records duration and error kind for an operation
func (s *Service) track(op, portfolioID string, start time.Time, err error) {
	s.metrics.ObserveDuration(op, start)
	if err == nil {
		return
	}

	kind := ErrorKind(err)
	s.metrics.RecordError(op, kind)
	s.logger.Portfolio(portfolioID).WithError(err).WithFields(map[string]interface{}{
		"operation": op,
		"kind":      kind,
	}).Debug("Risk computation failed")
}
