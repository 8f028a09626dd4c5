package risk

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// =============================================================================
// Risk Report Generator
// =============================================================================

// ReportInput 리포트 생성 입력
// ⭐ 데이터 조립은 호출자(analytics)에서, 계산은 여기서
type ReportInput struct {
	PortfolioID  string
	ReportType   ReportType
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Metrics      *RiskMetrics // nil이면 MetricsInput으로 계산
	MetricsInput MetricsInput
	Positions    []contracts.Position
	Volatilities map[string]float64
	History      []contracts.ValuePoint
	Scenarios    []StressScenario // nil이면 DefaultScenarios
}

// BuildReport 리스크 리포트 조립
// SUMMARY: 메트릭 + 포지션 + 성과
// DETAILED: + 스트레스 테스트
// REGULATORY: + VaR 백테스트
func BuildReport(input ReportInput) (*RiskReport, error) {
	reportType, err := ParseReportType(string(input.ReportType))
	if err != nil {
		return nil, err
	}
	if !input.PeriodStart.IsZero() && !input.PeriodEnd.IsZero() && input.PeriodEnd.Before(input.PeriodStart) {
		return nil, fmt.Errorf("%w: report period end %s is before start %s",
			ErrInvalidInput, input.PeriodEnd.Format("2006-01-02"), input.PeriodStart.Format("2006-01-02"))
	}

	metrics := input.Metrics
	if metrics == nil {
		metrics, err = CalculateMetrics(input.MetricsInput)
		if err != nil {
			return nil, fmt.Errorf("report metrics: %w", err)
		}
	}

	positionRisks, err := AnalyzePositions(metrics.PortfolioValue, input.Positions, input.Volatilities)
	if err != nil {
		return nil, fmt.Errorf("report position risk: %w", err)
	}

	history := filterPeriod(input.History, input.PeriodStart, input.PeriodEnd)

	report := &RiskReport{
		ReportID:      uuid.New().String(),
		PortfolioID:   input.PortfolioID,
		ReportType:    reportType,
		PeriodStart:   input.PeriodStart,
		PeriodEnd:     input.PeriodEnd,
		Metrics:       metrics,
		PositionRisks: positionRisks,
		Performance:   ScanExtremeMoves(history),
		GeneratedAt:   time.Now(),
	}
	if report.PortfolioID == "" {
		report.PortfolioID = metrics.PortfolioID
	}

	if reportType == ReportDetailed || reportType == ReportRegulatory {
		scenarios := input.Scenarios
		if scenarios == nil {
			scenarios = DefaultScenarios()
		}
		report.StressTests = RunStressTests(StressInput{
			Positions:      input.Positions,
			PortfolioValue: metrics.PortfolioValue,
		}, scenarios)
	}

	if reportType == ReportRegulatory {
		returns := contracts.ReturnsOf(history)
		if len(returns) < 2 {
			returns = input.MetricsInput.Returns
		}
		backtest, err := BacktestVaR(returns, metrics.VaR, metrics.PortfolioValue, metrics.Confidence)
		if err != nil {
			return nil, fmt.Errorf("report backtest: %w", err)
		}
		report.Backtest = backtest
	}

	return report, nil
}

// ScanExtremeMoves 가치 시계열에서 단일 기간 최대 상승/하락 탐색
// 시점 순으로 정렬 후 비교, 2개 미만이면 Best/Worst 없음
func ScanExtremeMoves(points []contracts.ValuePoint) HistoricalPerformance {
	var perf HistoricalPerformance
	if len(points) == 0 {
		return perf
	}

	sorted := make([]contracts.ValuePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	perf.StartValue = sorted[0].Value
	perf.EndValue = sorted[len(sorted)-1].Value

	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Value
		move := ExtremeMove{
			Date:   sorted[i].Date,
			Change: sorted[i].Value - prev,
		}
		if prev > 0 {
			move.ChangePct = move.Change / prev * 100
		}

		if perf.BestPeriod == nil || move.Change > perf.BestPeriod.Change {
			best := move
			perf.BestPeriod = &best
		}
		if perf.WorstPeriod == nil || move.Change < perf.WorstPeriod.Change {
			worst := move
			perf.WorstPeriod = &worst
		}
	}

	return perf
}

// BacktestVaR VaR 위반 횟수 검증
// violation: −r × portfolioValue > VaR (통화 단위)
// expected = n × (1 − confidence), 허용 범위 |violations − expected| < 0.5 × expected
func BacktestVaR(returns []float64, varAmount, portfolioValue, confidence float64) (*VaRBacktest, error) {
	if err := validateReturns(returns); err != nil {
		return nil, err
	}
	if err := validateConfidence(confidence); err != nil {
		return nil, err
	}
	if !(portfolioValue > 0) || !isFinite(portfolioValue) || varAmount < 0 || !isFinite(varAmount) {
		return nil, fmt.Errorf("%w: backtest needs positive portfolio value and non-negative VaR", ErrInvalidInput)
	}

	n := len(returns)
	violations := 0
	for _, r := range returns {
		if -r*portfolioValue > varAmount {
			violations++
		}
	}

	expected := float64(n) * (1 - confidence)
	lr := kupiecLR(n, violations, 1-confidence)

	return &VaRBacktest{
		Observations:       n,
		Violations:         violations,
		ExpectedViolations: expected,
		ViolationRate:      float64(violations) / float64(n),
		WithinTolerance:    math.Abs(float64(violations)-expected) < 0.5*expected,
		KupiecLR:           lr,
		KupiecPValue:       1 - distuv.ChiSquared{K: 1}.CDF(lr),
	}, nil
}

// kupiecLR proportion-of-failures 우도비 통계량
// LR = −2 ln[(1−p)^(n−x) p^x] + 2 ln[(1−x/n)^(n−x) (x/n)^x]
func kupiecLR(n, x int, p float64) float64 {
	rate := float64(x) / float64(n)
	null := xlogy(float64(n-x), 1-p) + xlogy(float64(x), p)
	alt := xlogy(float64(n-x), 1-rate) + xlogy(float64(x), rate)
	return math.Max(0, -2*(null-alt))
}

// xlogy x × ln(y), 0 × ln(0) = 0
func xlogy(x, y float64) float64 {
	if x == 0 {
		return 0
	}
	return x * math.Log(y)
}

func filterPeriod(points []contracts.ValuePoint, start, end time.Time) []contracts.ValuePoint {
	if start.IsZero() && end.IsZero() {
		return points
	}
	out := make([]contracts.ValuePoint, 0, len(points))
	for _, p := range points {
		if !start.IsZero() && p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// =============================================================================
// Output Formatting
// =============================================================================

// ToJSON JSON 형식으로 출력
func (r *RiskReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToSummary 요약 문자열 출력
func (r *RiskReport) ToSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Risk Report %s (%s) ===\n", r.ReportType, r.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Portfolio: %s\n", r.PortfolioID)
	if !r.PeriodStart.IsZero() || !r.PeriodEnd.IsZero() {
		fmt.Fprintf(&b, "Period: %s ~ %s\n", r.PeriodStart.Format("2006-01-02"), r.PeriodEnd.Format("2006-01-02"))
	}
	b.WriteString("\n")

	if m := r.Metrics; m != nil {
		b.WriteString("📊 Portfolio Risk\n")
		fmt.Fprintf(&b, "  Value: %s\n", money(m.PortfolioValue))
		fmt.Fprintf(&b, "  VaR %.0f%%: %s (%.2f%%)\n", m.Confidence*100, money(m.VaR), m.VaRPercent())
		fmt.Fprintf(&b, "  CVaR %.0f%%: %s\n", m.Confidence*100, money(m.CVaR))
		fmt.Fprintf(&b, "  Volatility (ann.): %.2f%%\n", m.AnnualizedVolatility*100)
		fmt.Fprintf(&b, "  Sharpe: %.2f  Sortino: %.2f  Calmar: %.2f\n", m.SharpeRatio, m.SortinoRatio, m.CalmarRatio)
		fmt.Fprintf(&b, "  Max Drawdown: %.2f%%\n", m.MaxDrawdown)
		fmt.Fprintf(&b, "  Risk Score: %.1f (%s)\n\n", m.RiskScore, m.RiskLevel)
	}

	if len(r.PositionRisks) > 0 {
		b.WriteString("📌 Positions\n")
		for _, p := range r.PositionRisks {
			fmt.Fprintf(&b, "  %-8s %6.2f%%  VaR %s\n", p.Symbol, p.PercentageOfPortfolio, money(p.IndividualVaR))
		}
		b.WriteString("\n")
	}

	if best, worst := r.Performance.BestPeriod, r.Performance.WorstPeriod; best != nil && worst != nil {
		b.WriteString("📈 Performance\n")
		fmt.Fprintf(&b, "  Start: %s  End: %s\n", money(r.Performance.StartValue), money(r.Performance.EndValue))
		fmt.Fprintf(&b, "  Best: %s %s (%.2f%%)\n", best.Date.Format("2006-01-02"), money(best.Change), best.ChangePct)
		fmt.Fprintf(&b, "  Worst: %s %s (%.2f%%)\n\n", worst.Date.Format("2006-01-02"), money(worst.Change), worst.ChangePct)
	}

	if len(r.StressTests) > 0 {
		b.WriteString("⚠️ Stress Test Results\n")
		for _, s := range r.StressTests {
			if s.Failed() {
				fmt.Fprintf(&b, "  %s: error: %s\n", s.ScenarioName, s.Error)
				continue
			}
			fmt.Fprintf(&b, "  %s: %s (%.2f%%, %s)\n", s.ScenarioName, money(s.PortfolioLoss), s.LossPercentage, s.Severity)
		}
		b.WriteString("\n")
	}

	if bt := r.Backtest; bt != nil {
		b.WriteString("🧪 VaR Backtest\n")
		fmt.Fprintf(&b, "  Violations: %d / %d (expected %.1f)\n", bt.Violations, bt.Observations, bt.ExpectedViolations)
		fmt.Fprintf(&b, "  Kupiec LR: %.3f (p=%.3f)\n", bt.KupiecLR, bt.KupiecPValue)
		fmt.Fprintf(&b, "  Within tolerance: %t\n", bt.WithinTolerance)
	}

	return b.String()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
