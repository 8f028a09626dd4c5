package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-risk/internal/risk"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// out 커맨드 출력 대상 (테스트에서 교체)
var out io.Writer = os.Stdout

// printJSON prints v as indented JSON
func printJSON(v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintHeader prints a titled double-line header
func PrintHeader(title string) {
	fmt.Fprintln(out)
	PrintDoubleSeparator()
	fmt.Fprintf(out, "  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Fprintln(out, "───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(out, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(out, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(out, "❌ %s\n", message)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(out, "   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(out, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(out, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(out, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(out, "  ")
		}
	}
	fmt.Fprintln(out)
}

// money 통화 금액 (소수 둘째 자리)
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

// ═══════════════════════════════════════════════════════════
// Result printers
// ═══════════════════════════════════════════════════════════

func printMetrics(m *risk.RiskMetrics) {
	PrintHeader(fmt.Sprintf("Risk Metrics: %s (%s, %.0f%%)", m.PortfolioID, m.Horizon, m.Confidence*100))

	const w = 18
	PrintKeyValue("Value", money(m.PortfolioValue), w)
	PrintKeyValue("VaR", fmt.Sprintf("%s (%s)", money(m.VaR), pct(m.VaRPercent())), w)
	PrintKeyValue("CVaR", money(m.CVaR), w)
	PrintKeyValue("Parametric VaR", money(m.ParametricVaR), w)
	PrintKeyValue("Volatility (ann.)", pct(m.AnnualizedVolatility*100), w)
	PrintKeyValue("Sharpe", fmt.Sprintf("%.3f", m.SharpeRatio), w)
	PrintKeyValue("Sortino", fmt.Sprintf("%.3f", m.SortinoRatio), w)
	PrintKeyValue("Calmar", fmt.Sprintf("%.3f", m.CalmarRatio), w)
	PrintKeyValue("Beta", optional(m.Beta), w)
	PrintKeyValue("Alpha", optional(m.Alpha), w)
	PrintKeyValue("Max Drawdown", pct(m.MaxDrawdown), w)
	PrintKeyValue("Current Drawdown", pct(m.CurrentDrawdown), w)
	PrintKeyValue("Risk Score", fmt.Sprintf("%.1f (%s)", m.RiskScore, m.RiskLevel), w)

	if len(m.Correlations) > 0 {
		pairs := make([]string, 0, len(m.Correlations))
		for pair := range m.Correlations {
			pairs = append(pairs, pair)
		}
		sort.Strings(pairs)

		PrintSeparator()
		for _, pair := range pairs {
			PrintKeyValue(pair, fmt.Sprintf("%.3f", m.Correlations[pair]), w)
		}
	}
}

func printPositions(risks []risk.PositionRisk) {
	PrintHeader("Position Risk")

	widths := []int{10, 14, 8, 8, 12, 12}
	PrintTableHeader([]string{"Symbol", "Exposure", "Weight", "Vol", "VaR", "Component"}, widths)
	for _, p := range risks {
		PrintTableRow([]string{
			p.Symbol,
			money(p.Exposure),
			pct(p.PercentageOfPortfolio),
			pct(p.Volatility * 100),
			money(p.IndividualVaR),
			money(p.ComponentVaR),
		}, widths)
	}
}

func printStress(results []risk.StressTestResult) {
	PrintHeader("Stress Tests")

	widths := []int{24, 14, 9, 9}
	PrintTableHeader([]string{"Scenario", "Loss", "Loss %", "Severity"}, widths)
	for _, r := range results {
		if r.Failed() {
			PrintTableRow([]string{r.ScenarioName, "error", "", r.Error}, widths)
			continue
		}
		PrintTableRow([]string{r.ScenarioName, money(r.PortfolioLoss), pct(r.LossPercentage), string(r.Severity)}, widths)
	}
}

func printMonteCarlo(r *risk.MonteCarloResult) {
	PrintHeader(fmt.Sprintf("Monte Carlo: %d simulations, %d days", r.Config.NumSimulations, r.Days))

	const w = 18
	PrintKeyValue("Start Value", money(r.StartValue), w)
	PrintKeyValue("Expected Value", money(r.ExpectedValue), w)
	PrintKeyValue("Most Likely", money(r.MostLikely), w)
	PrintKeyValue("Best / Worst", fmt.Sprintf("%s / %s", money(r.BestCase), money(r.WorstCase)), w)
	PrintKeyValue("P(loss)", pct(r.ProbabilityOfLoss*100), w)
	PrintKeyValue("VaR 95%", money(r.VaR95), w)

	PrintSeparator()
	for _, p := range risk.DefaultPercentiles {
		PrintKeyValue(fmt.Sprintf("P%d", p), money(r.Percentiles[p]), w)
	}
}

func printLiquidity(l *risk.LiquidityRisk) {
	PrintHeader("Liquidity Risk")

	const w = 18
	PrintKeyValue("Total Value", money(l.TotalValue), w)
	PrintKeyValue("Liquidity Score", fmt.Sprintf("%.1f", l.LiquidityScore), w)
	PrintKeyValue("Days to Liquidate", fmt.Sprintf("%.2f", l.DaysToLiquidate), w)
	PrintKeyValue("Immediate", money(l.Buckets.Immediate), w)
	PrintKeyValue("Within 1 Day", money(l.Buckets.Within1Day), w)
	PrintKeyValue("Within 1 Week", money(l.Buckets.Within1Wk), w)
	PrintKeyValue("Illiquid", money(l.Buckets.Illiquid), w)
	PrintKeyValue("Stressed Days", fmt.Sprintf("%.2f", l.Stressed.DaysToLiquidate), w)
}

func printLimitCheck(r *risk.LimitCheckResult) {
	PrintHeader("Risk Limits: " + r.PortfolioID)

	if r.AllWithinLimits {
		PrintSuccess("All metrics within limits")
		return
	}
	for _, b := range r.Breaches {
		PrintWarning(fmt.Sprintf("%s: current %.4f, limit %.4f (%.1f%% over)", b.Metric, b.Current, b.Limit, b.OveragePct))
	}
}
