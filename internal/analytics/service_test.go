package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/analytics/analyticstest"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/pkg/metrics"
)

const pid = analyticstest.PortfolioID

func newTestService(t *testing.T, opts ...risk.Option) (*Service, *analyticstest.Fixture, *metrics.Metrics) {
	t.Helper()

	fx := analyticstest.NewFixture()
	m := metrics.New()
	svc := NewService(Deps{
		Portfolios: fx.Portfolios,
		Returns:    fx.Returns,
		Market:     fx.Market,
		Store:      fx.Store,
		Engine:     risk.NewEngine(opts...),
		Metrics:    m,
	}, Settings{})
	svc.now = func() time.Time { return analyticstest.Today }
	return svc, fx, m
}

func ptr(v float64) *float64 { return &v }

// =============================================================================
// CalculateRiskMetrics
// =============================================================================

func TestCalculateRiskMetrics(t *testing.T) {
	svc, fx, _ := newTestService(t)

	m, err := svc.CalculateRiskMetrics(context.Background(), pid, "", 0, true)
	require.NoError(t, err)

	expected, err := risk.CalculateVaR(analyticstest.SampleReturns(), 0.95)
	require.NoError(t, err)

	assert.Equal(t, pid, m.PortfolioID)
	assert.Equal(t, risk.Horizon1D, m.Horizon)
	assert.Equal(t, 0.95, m.Confidence)
	assert.Equal(t, 60, m.SampleCount)
	assert.InDelta(t, expected.VaR*100000, m.VaR, 1e-6)
	assert.GreaterOrEqual(t, m.CVaR, m.VaR)
	require.NotNil(t, m.Beta)
	assert.InDelta(t, 2.0, *m.Beta, 1e-9)
	assert.Equal(t, map[string]float64{"AAA|BBB": 0.35}, m.Correlations)

	assert.Equal(t, 1, fx.Store.SavedCount())
	assert.Equal(t, []int{risk.Horizon1D.LookbackDays()}, fx.Returns.Lookbacks)
}

func TestCalculateRiskMetrics_HorizonAndConfidence(t *testing.T) {
	svc, fx, _ := newTestService(t)

	m, err := svc.CalculateRiskMetrics(context.Background(), pid, "1y", 0.99, false)
	require.NoError(t, err)
	assert.Equal(t, risk.Horizon1Y, m.Horizon)
	assert.Equal(t, 0.99, m.Confidence)
	assert.Nil(t, m.Correlations)
	assert.Equal(t, []int{730}, fx.Returns.Lookbacks)
}

func TestCalculateRiskMetrics_NoMarketOverlap(t *testing.T) {
	svc, fx, _ := newTestService(t)
	fx.Market.Returns = fx.Market.Returns[:10]

	m, err := svc.CalculateRiskMetrics(context.Background(), pid, "1D", 0.95, false)
	require.NoError(t, err)
	assert.Nil(t, m.Beta)
	assert.Nil(t, m.Alpha)
	assert.Nil(t, m.TreynorRatio)
}

func TestMarketReturnsFailure_SkipsBeta(t *testing.T) {
	svc, fx, _ := newTestService(t)
	fx.Market.ReturnsErr = errors.New("index feed down")
	ctx := context.Background()

	m, err := svc.CalculateRiskMetrics(ctx, pid, "1D", 0.95, true)
	require.NoError(t, err)
	assert.Nil(t, m.Beta)
	assert.Nil(t, m.Alpha)
	assert.Nil(t, m.TreynorRatio)
	assert.Greater(t, m.VaR, 0.0)
	assert.Equal(t, 1, fx.Store.SavedCount())

	_, err = svc.CheckRiskLimits(ctx, pid, &risk.RiskLimits{MaxDrawdown: ptr(50)})
	require.NoError(t, err)

	report, err := svc.GenerateRiskReport(ctx, pid, "SUMMARY", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, report.Metrics)
}

func TestCalculateRiskMetrics_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(fx *analyticstest.Fixture)
		id      string
		horizon string
		conf    float64
		wantErr error
	}{
		{"unknown portfolio", nil, "missing", "", 0, contracts.ErrNotFound},
		{"empty id", nil, " ", "", 0, contracts.ErrInvalidInput},
		{"bad horizon", nil, pid, "2D", 0, contracts.ErrInvalidInput},
		{"bad confidence", nil, pid, "", 1.5, contracts.ErrInvalidInput},
		{"short series", func(fx *analyticstest.Fixture) {
			fx.Returns.Series[pid] = []float64{0.01}
		}, pid, "", 0, contracts.ErrInvalidInput},
		{"market down", func(fx *analyticstest.Fixture) {
			fx.Market.Err = errors.New("connection refused")
		}, pid, "", 0, contracts.ErrDependencyFailure},
		{"returns down", func(fx *analyticstest.Fixture) {
			fx.Returns.Err = errors.New("timeout")
		}, pid, "", 0, contracts.ErrDependencyFailure},
		{"store down", func(fx *analyticstest.Fixture) {
			fx.Store.SaveErr = errors.New("disk full")
		}, pid, "", 0, contracts.ErrDependencyFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fx, _ := newTestService(t)
			if tt.mutate != nil {
				tt.mutate(fx)
			}

			_, err := svc.CalculateRiskMetrics(context.Background(), tt.id, tt.horizon, tt.conf, false)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, fx.Store.SavedCount())
		})
	}
}

func TestCalculateRiskMetrics_RecordsErrors(t *testing.T) {
	svc, _, m := newTestService(t)

	_, err := svc.CalculateRiskMetrics(context.Background(), "missing", "", 0, false)
	require.Error(t, err)

	expected := `
# HELP risk_computation_errors_total Failed risk computations by operation and error kind.
# TYPE risk_computation_errors_total counter
risk_computation_errors_total{kind="not_found",operation="metrics"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "risk_computation_errors_total"))
}

// =============================================================================
// Positions / Stress / Liquidity
// =============================================================================

func TestCalculatePositionRisks(t *testing.T) {
	svc, fx, _ := newTestService(t)
	delete(fx.Market.Volatility, "BBB")

	risks, err := svc.CalculatePositionRisks(context.Background(), pid)
	require.NoError(t, err)
	require.Len(t, risks, 2)

	assert.Equal(t, "AAA", risks[0].Symbol)
	assert.Equal(t, 0.25, risks[0].Volatility)
	assert.InDelta(t, 60.0, risks[0].PercentageOfPortfolio, 1e-9)
	assert.True(t, risks[1].VolatilityDefaulted)
	assert.Equal(t, risk.DefaultAssetVolatility, risks[1].Volatility)
}

func TestRunStressTests(t *testing.T) {
	svc, _, _ := newTestService(t)

	results, err := svc.RunStressTests(context.Background(), pid, nil)
	require.NoError(t, err)
	require.Len(t, results, len(risk.DefaultScenarios()))
	for _, r := range results {
		assert.False(t, r.Failed(), r.ScenarioName)
	}

	custom, err := svc.RunStressTests(context.Background(), pid, []risk.StressScenario{
		{Name: "Crash", MarketChange: -30, VolatilityMultiplier: 2},
		{Name: "Broken", MarketChange: -150, VolatilityMultiplier: 1},
	})
	require.NoError(t, err)
	require.Len(t, custom, 2)
	assert.InDelta(t, 30000, custom[0].PortfolioLoss, 1e-6)
	assert.Equal(t, risk.SeverityHigh, custom[0].Severity)
	assert.True(t, custom[1].Failed())
}

func TestRunStressTests_UsesLatestVolatility(t *testing.T) {
	svc, fx, _ := newTestService(t)
	fx.Store.Saved = []*risk.RiskMetrics{{PortfolioID: pid, AnnualizedVolatility: 0.10}}

	results, err := svc.RunStressTests(context.Background(), pid, []risk.StressScenario{
		{Name: "Vol", MarketChange: -10, VolatilityMultiplier: 2},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.20, results[0].StressedMetrics.Volatility, 1e-9)
}

func TestProfileSettings(t *testing.T) {
	fx := analyticstest.NewFixture()
	svc := NewService(Deps{
		Portfolios: fx.Portfolios,
		Returns:    fx.Returns,
		Market:     fx.Market,
		Store:      fx.Store,
	}, Settings{
		Scenarios:     []risk.StressScenario{{Name: "Profile Crash", MarketChange: -20, VolatilityMultiplier: 2}},
		DefaultLimits: &risk.RiskLimits{MaxConcentration: ptr(50)},
	})
	ctx := context.Background()

	results, err := svc.RunStressTests(ctx, pid, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Profile Crash", results[0].ScenarioName)

	// 저장된 한도가 없으면 프로파일 한도
	result, err := svc.CheckRiskLimits(ctx, pid, nil)
	require.NoError(t, err)
	assert.False(t, result.AllWithinLimits)

	// 저장된 한도가 우선
	fx.Store.Limits = map[string]risk.RiskLimits{pid: {MaxConcentration: ptr(70)}}
	result, err = svc.CheckRiskLimits(ctx, pid, nil)
	require.NoError(t, err)
	assert.True(t, result.AllWithinLimits)
}

func TestCalculateLiquidityRisk(t *testing.T) {
	svc, fx, _ := newTestService(t)

	lr, err := svc.CalculateLiquidityRisk(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, pid, lr.PortfolioID)
	assert.InDelta(t, 60000, lr.Buckets.Immediate, 1e-9)
	assert.InDelta(t, 40000, lr.Buckets.Within1Wk, 1e-9)

	delete(fx.Market.Volume, "BBB")
	_, err = svc.CalculateLiquidityRisk(context.Background(), pid)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

// =============================================================================
// Limits
// =============================================================================

func TestSetRiskLimits(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetRiskLimits(ctx, pid, risk.RiskLimits{MaxDrawdown: ptr(150)})
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)

	_, err = svc.SetRiskLimits(ctx, "missing", risk.RiskLimits{MaxDrawdown: ptr(20)})
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	limits, err := svc.SetRiskLimits(ctx, pid, risk.RiskLimits{MaxDrawdown: ptr(20)})
	require.NoError(t, err)
	assert.Equal(t, 20.0, *limits.MaxDrawdown)
	assert.Contains(t, fx.Store.Limits, pid)
}

func TestCheckRiskLimits(t *testing.T) {
	svc, fx, m := newTestService(t)
	ctx := context.Background()

	_, err := svc.CheckRiskLimits(ctx, pid, nil)
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	result, err := svc.CheckRiskLimits(ctx, pid, &risk.RiskLimits{MaxConcentration: ptr(50)})
	require.NoError(t, err)
	assert.False(t, result.AllWithinLimits)
	require.Len(t, result.Breaches, 1)
	assert.Equal(t, risk.MetricConcentration, result.Breaches[0].Metric)
	assert.Equal(t, pid, result.PortfolioID)
	assert.Zero(t, fx.Store.SavedCount())

	fx.Store.Limits = map[string]risk.RiskLimits{pid: {MaxConcentration: ptr(70)}}
	stored, err := svc.CheckRiskLimits(ctx, pid, nil)
	require.NoError(t, err)
	assert.True(t, stored.AllWithinLimits)
	assert.Empty(t, stored.Breaches)

	expected := `
# HELP risk_limit_breaches_total Risk limit breaches detected by metric.
# TYPE risk_limit_breaches_total counter
risk_limit_breaches_total{metric="concentration"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "risk_limit_breaches_total"))
}

func TestCheckSnapshotLimits(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CheckSnapshotLimits(ctx, nil)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	m, err := svc.CalculateRiskMetrics(ctx, pid, "", 0, false)
	require.NoError(t, err)

	_, err = svc.CheckSnapshotLimits(ctx, m)
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	fx.Store.Limits = map[string]risk.RiskLimits{pid: {MaxConcentration: ptr(50), MaxVaR: ptr(m.VaR + 1)}}
	result, err := svc.CheckSnapshotLimits(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, pid, result.PortfolioID)
	require.Len(t, result.Breaches, 1)
	assert.Equal(t, risk.MetricConcentration, result.Breaches[0].Metric)

	// 수집/재계산 없음
	assert.Len(t, fx.Returns.Lookbacks, 1)
	assert.Equal(t, 1, fx.Store.SavedCount())
}

func TestCheckRiskLimits_InvalidLimits(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CheckRiskLimits(context.Background(), pid, &risk.RiskLimits{MaxLeverage: ptr(-1)})
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
}

// =============================================================================
// Monte Carlo / Report
// =============================================================================

func TestRunMonteCarloSimulation(t *testing.T) {
	defaults := risk.DefaultMonteCarloConfig()
	defaults.Seed = 42
	defaults.Workers = 2

	svc, fx, _ := newTestService(t, risk.WithMonteCarloDefaults(defaults))
	ctx := context.Background()

	a, err := svc.RunMonteCarloSimulation(ctx, pid, 1000, "1W")
	require.NoError(t, err)
	b, err := svc.RunMonteCarloSimulation(ctx, pid, 1000, "1W")
	require.NoError(t, err)

	assert.Equal(t, pid, a.PortfolioID)
	assert.Equal(t, 7, a.Days)
	assert.Equal(t, 1000, a.Config.NumSimulations)
	assert.Equal(t, a.Percentiles, b.Percentiles)
	assert.Equal(t, []int{180, 180}, fx.Returns.Lookbacks)

	def, err := svc.RunMonteCarloSimulation(ctx, pid, 0, "")
	require.NoError(t, err)
	assert.Equal(t, defaults.NumSimulations, def.Config.NumSimulations)
	assert.Equal(t, risk.Horizon1M, def.Config.Horizon)
}

func TestRunMonteCarloSimulation_Invalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunMonteCarloSimulation(ctx, pid, -1, "")
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = svc.RunMonteCarloSimulation(ctx, pid, risk.MaxSimulations+1, "")
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = svc.RunMonteCarloSimulation(ctx, pid, 100, "10Y")
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

func TestGenerateRiskReport(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	start := analyticstest.Today.AddDate(0, 0, -30)

	summary, err := svc.GenerateRiskReport(ctx, pid, "summary", start, analyticstest.Today)
	require.NoError(t, err)
	assert.Equal(t, risk.ReportSummary, summary.ReportType)
	assert.Len(t, summary.PositionRisks, 2)
	assert.Nil(t, summary.Backtest)
	assert.Empty(t, summary.StressTests)
	assert.NotNil(t, summary.Performance.BestPeriod)

	reg, err := svc.GenerateRiskReport(ctx, pid, "REGULATORY", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, reg.Backtest)
	assert.Equal(t, 60, reg.Backtest.Observations)
	assert.Len(t, reg.StressTests, len(risk.DefaultScenarios()))
	assert.Equal(t, analyticstest.Today, reg.PeriodEnd)
}

func TestGenerateRiskReport_ReusesStoredSnapshot(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()

	stored, err := svc.CalculateRiskMetrics(ctx, pid, "1W", 0.99, false)
	require.NoError(t, err)
	require.Equal(t, 1, fx.Store.SavedCount())

	report, err := svc.GenerateRiskReport(ctx, pid, "DETAILED", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, stored.ID, report.Metrics.ID)
	assert.Equal(t, risk.Horizon1W, report.Metrics.Horizon)
	assert.Equal(t, 1, fx.Store.SavedCount())
}

func TestGenerateRiskReport_ComputesAndPersistsWithoutSnapshot(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()

	report, err := svc.GenerateRiskReport(ctx, pid, "SUMMARY", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, report.Metrics)
	require.Equal(t, 1, fx.Store.SavedCount())

	latest, err := fx.Store.LatestMetrics(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, report.Metrics.ID, latest.ID)
}

func TestGenerateRiskReport_Invalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateRiskReport(ctx, pid, "WEEKLY", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = svc.GenerateRiskReport(ctx, pid, "SUMMARY", analyticstest.Today, analyticstest.Today.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = svc.GenerateRiskReport(ctx, "missing", "SUMMARY", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

// =============================================================================
// Helpers
// =============================================================================

func TestAlignMarket(t *testing.T) {
	assert.Equal(t, []float64{3, 4}, alignMarket([]float64{0.1, 0.2}, []float64{1, 2, 3, 4}))
	assert.Nil(t, alignMarket([]float64{0.1, 0.2, 0.3}, []float64{1, 2}))
	assert.Nil(t, alignMarket(nil, []float64{1}))
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{contracts.ErrNotFound, KindNotFound},
		{dependency("x", errors.New("boom")), KindDependency},
		{dependency("x", contracts.ErrNotFound), KindNotFound},
		{dependency("x", context.DeadlineExceeded), KindCanceled},
		{risk.ValidateLimits(risk.RiskLimits{MaxVaR: ptr(-1)}), KindInvalidConfig},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), tt.err.Error())
	}
}
