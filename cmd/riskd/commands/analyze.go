package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/risk"
)

// 단발성 분석 커맨드: 서비스 연산을 한 번 실행하고 결과를 출력

var (
	// metrics 플래그
	metricsHorizon      string
	metricsConfidence   float64
	metricsCorrelations bool

	// montecarlo 플래그
	mcSimulations int
	mcHorizon     string

	// report 플래그
	reportType  string
	reportStart string
	reportEnd   string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics [portfolio_id]",
	Short: "리스크 지표 계산 및 저장",
	Long: `VaR/CVaR, 변동성, Sharpe/Sortino/Calmar, 낙폭, beta를 계산하고 스냅샷을 저장합니다.

Example:
  go run ./cmd/riskd metrics pf-1
  go run ./cmd/riskd metrics pf-1 --horizon 1M --confidence 0.99 --correlations`,
	Args: cobra.ExactArgs(1),
	RunE: runMetrics,
}

var positionsCmd = &cobra.Command{
	Use:   "positions [portfolio_id]",
	Short: "종목별 리스크 기여도",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositions,
}

var stressCmd = &cobra.Command{
	Use:   "stress [portfolio_id]",
	Short: "기본 시나리오 스트레스 테스트",
	Long: `기본 시나리오(시장 폭락, 금리 충격, 유동성 위기 등)로 스트레스 테스트를 실행합니다.

Example:
  go run ./cmd/riskd stress pf-1 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runStress,
}

var monteCarloCmd = &cobra.Command{
	Use:   "montecarlo [portfolio_id]",
	Short: "Monte Carlo 시뮬레이션",
	Long: `과거 일별 수익률의 평균/표준편차로 포트폴리오 가치 경로를 시뮬레이션합니다.

Example:
  go run ./cmd/riskd montecarlo pf-1
  go run ./cmd/riskd montecarlo pf-1 --simulations 20000 --horizon 3M`,
	Args: cobra.ExactArgs(1),
	RunE: runMonteCarlo,
}

var liquidityCmd = &cobra.Command{
	Use:   "liquidity [portfolio_id]",
	Short: "유동성 리스크",
	Args:  cobra.ExactArgs(1),
	RunE:  runLiquidity,
}

var limitsCmd = &cobra.Command{
	Use:   "limits [portfolio_id]",
	Short: "저장된 한도 체크",
	Args:  cobra.ExactArgs(1),
	RunE:  runLimits,
}

var reportCmd = &cobra.Command{
	Use:   "report [portfolio_id]",
	Short: "리스크 리포트 생성",
	Long: `리스크 리포트를 생성합니다.

리포트 종류:
- SUMMARY: 지표 + 권고
- DETAILED: + 종목 리스크, 스트레스, 유동성, Monte Carlo
- REGULATORY: + VaR 백테스트, 집중도/유동성/레버리지 점검

Example:
  go run ./cmd/riskd report pf-1
  go run ./cmd/riskd report pf-1 --type REGULATORY --start 2025-01-01 --end 2025-12-31 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(metricsCmd, positionsCmd, stressCmd, monteCarloCmd, liquidityCmd, limitsCmd, reportCmd)

	metricsCmd.Flags().StringVar(&metricsHorizon, "horizon", "", "기간 (1D, 1W, 1M, 3M, 1Y; 기본: RISK_DEFAULT_HORIZON)")
	metricsCmd.Flags().Float64Var(&metricsConfidence, "confidence", 0, "신뢰수준 (0~1; 기본: RISK_DEFAULT_CONFIDENCE)")
	metricsCmd.Flags().BoolVar(&metricsCorrelations, "correlations", false, "종목쌍 상관계수 포함")

	monteCarloCmd.Flags().IntVar(&mcSimulations, "simulations", 0, "시뮬레이션 횟수 (기본: RISK_MC_SIMULATIONS)")
	monteCarloCmd.Flags().StringVar(&mcHorizon, "horizon", "", "시뮬레이션 기간 (기본: 1M)")

	reportCmd.Flags().StringVar(&reportType, "type", string(risk.ReportSummary), "리포트 종류 (SUMMARY, DETAILED, REGULATORY)")
	reportCmd.Flags().StringVar(&reportStart, "start", "", "시작일 (YYYY-MM-DD, 기본: 1년 전)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "종료일 (YYYY-MM-DD, 기본: 오늘)")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.service.CalculateRiskMetrics(cmd.Context(), args[0], metricsHorizon, metricsConfidence, metricsCorrelations)
	if err != nil {
		return err
	}
	if outputFormat == outputJSON {
		return printJSON(m)
	}
	printMetrics(m)
	return nil
}

func runPositions(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	risks, err := a.service.CalculatePositionRisks(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outputFormat == outputJSON {
		return printJSON(risks)
	}
	printPositions(risks)
	return nil
}

func runStress(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.service.RunStressTests(cmd.Context(), args[0], nil)
	if err != nil {
		return err
	}
	if outputFormat == outputJSON {
		return printJSON(results)
	}
	printStress(results)
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.RunMonteCarloSimulation(cmd.Context(), args[0], mcSimulations, mcHorizon)
	if err != nil {
		return err
	}
	if outputFormat == outputJSON {
		// 샘플 경로는 CLI 출력에서 제외
		result.SamplePaths = nil
		return printJSON(result)
	}
	printMonteCarlo(result)
	return nil
}

func runLiquidity(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.CalculateLiquidityRisk(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outputFormat == outputJSON {
		return printJSON(result)
	}
	printLiquidity(result)
	return nil
}

func runLimits(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.CheckRiskLimits(cmd.Context(), args[0], nil)
	if err != nil {
		return err
	}
	if outputFormat == outputJSON {
		return printJSON(result)
	}
	printLimitCheck(result)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	start, err := parseDateFlag("start", reportStart)
	if err != nil {
		return err
	}
	end, err := parseDateFlag("end", reportEnd)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service.GenerateRiskReport(cmd.Context(), args[0], reportType, start, end)
	if err != nil {
		return err
	}
	if outputFormat == outputJSON {
		data, err := report.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Print(report.ToSummary())
	return nil
}

// parseDateFlag 빈 값이면 zero time (서비스 기본 기간)
func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}
