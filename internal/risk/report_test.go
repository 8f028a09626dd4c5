package risk

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/contracts"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestScanExtremeMoves(t *testing.T) {
	// 입력 순서와 무관하게 시점 순으로 비교
	points := []contracts.ValuePoint{
		{Date: day(3), Value: 9000},
		{Date: day(1), Value: 10000},
		{Date: day(4), Value: 9500},
		{Date: day(2), Value: 11000},
	}

	perf := ScanExtremeMoves(points)
	assert.Equal(t, 10000.0, perf.StartValue)
	assert.Equal(t, 9500.0, perf.EndValue)

	require.NotNil(t, perf.BestPeriod)
	assert.Equal(t, day(2), perf.BestPeriod.Date)
	assert.InDelta(t, 1000.0, perf.BestPeriod.Change, 1e-9)
	assert.InDelta(t, 10.0, perf.BestPeriod.ChangePct, 1e-9)

	require.NotNil(t, perf.WorstPeriod)
	assert.Equal(t, day(3), perf.WorstPeriod.Date)
	assert.InDelta(t, -2000.0, perf.WorstPeriod.Change, 1e-9)
	assert.InDelta(t, -18.1818, perf.WorstPeriod.ChangePct, 1e-3)

	single := ScanExtremeMoves(points[:1])
	assert.Nil(t, single.BestPeriod)
	assert.Nil(t, single.WorstPeriod)
}

func backtestReturns(losses int) []float64 {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = 0.001
	}
	for i := 0; i < losses; i++ {
		returns[i*10] = -0.03
	}
	return returns
}

func TestBacktestVaR(t *testing.T) {
	bt, err := BacktestVaR(backtestReturns(5), 200, 10000, 0.95)
	require.NoError(t, err)

	assert.Equal(t, 100, bt.Observations)
	assert.Equal(t, 5, bt.Violations)
	assert.InDelta(t, 5.0, bt.ExpectedViolations, 1e-9)
	assert.InDelta(t, 0.05, bt.ViolationRate, 1e-12)
	assert.True(t, bt.WithinTolerance)
	assert.InDelta(t, 0, bt.KupiecLR, 1e-9)
	assert.InDelta(t, 1, bt.KupiecPValue, 1e-4)
}

func TestBacktestVaR_NoViolations(t *testing.T) {
	bt, err := BacktestVaR(backtestReturns(0), 200, 10000, 0.95)
	require.NoError(t, err)

	assert.Zero(t, bt.Violations)
	assert.False(t, bt.WithinTolerance)
	// LR = −2 × 100 × ln(0.95)
	assert.InDelta(t, 10.259, bt.KupiecLR, 1e-3)
	assert.Less(t, bt.KupiecPValue, 0.01)
}

func TestBacktestVaR_Invalid(t *testing.T) {
	_, err := BacktestVaR([]float64{0.01}, 200, 10000, 0.95)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = BacktestVaR(backtestReturns(1), 200, 0, 0.95)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func reportInput(reportType ReportType) ReportInput {
	return ReportInput{
		PortfolioID: "pf-1",
		ReportType:  reportType,
		PeriodStart: day(1),
		PeriodEnd:   day(31),
		MetricsInput: MetricsInput{
			PortfolioID:    "pf-1",
			PortfolioValue: 100000,
			Returns:        backtestReturns(5),
			Confidence:     0.95,
		},
		Positions: samplePositions(),
		History: []contracts.ValuePoint{
			{Date: day(1), Value: 98000},
			{Date: day(2), Value: 101000},
			{Date: day(3), Value: 100000},
		},
	}
}

func TestBuildReport_Summary(t *testing.T) {
	report, err := BuildReport(reportInput(ReportSummary))
	require.NoError(t, err)

	assert.NotEmpty(t, report.ReportID)
	assert.Equal(t, ReportSummary, report.ReportType)
	require.NotNil(t, report.Metrics)
	assert.Len(t, report.PositionRisks, 2)
	require.NotNil(t, report.Performance.BestPeriod)
	assert.Empty(t, report.StressTests)
	assert.Nil(t, report.Backtest)
}

func TestBuildReport_Regulatory(t *testing.T) {
	input := reportInput(ReportRegulatory)
	input.History = nil // 백테스트는 MetricsInput 수익률로

	report, err := BuildReport(input)
	require.NoError(t, err)

	assert.Len(t, report.StressTests, len(DefaultScenarios()))
	require.NotNil(t, report.Backtest)
	assert.Equal(t, 100, report.Backtest.Observations)

	summary := report.ToSummary()
	assert.Contains(t, summary, "REGULATORY")
	assert.Contains(t, summary, "VaR Backtest")
	assert.Contains(t, summary, "2008 Financial Crisis")

	data, err := report.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "REGULATORY", decoded["report_type"])
	assert.Contains(t, decoded, "backtest")
}

func TestBuildReport_UsesSuppliedMetrics(t *testing.T) {
	input := reportInput(ReportDetailed)
	metrics, err := CalculateMetrics(input.MetricsInput)
	require.NoError(t, err)

	input.Metrics = metrics
	input.MetricsInput = MetricsInput{}

	report, err := BuildReport(input)
	require.NoError(t, err)
	assert.Equal(t, metrics.ID, report.Metrics.ID)
	assert.NotEmpty(t, report.StressTests)
	assert.Nil(t, report.Backtest)
}

func TestBuildReport_Invalid(t *testing.T) {
	_, err := BuildReport(reportInput("WEEKLY"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	input := reportInput(ReportSummary)
	input.PeriodStart, input.PeriodEnd = input.PeriodEnd, input.PeriodStart
	_, err = BuildReport(input)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
