package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/api"
	"github.com/wonny/aegis-risk/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST/WebSocket API 서버를 시작합니다.

Endpoints:
  GET  /health
  GET  /metrics                              - Prometheus (METRICS_ENABLED)
  GET  /api/portfolios/{id}/risk             - 리스크 지표
  GET  /api/portfolios/{id}/positions/risk   - 종목별 리스크
  POST /api/portfolios/{id}/stress           - 스트레스 테스트
  PUT  /api/portfolios/{id}/limits           - 한도 설정
  POST /api/portfolios/{id}/limits/check     - 한도 체크
  POST /api/portfolios/{id}/montecarlo       - Monte Carlo
  GET  /api/portfolios/{id}/liquidity        - 유동성 리스크
  GET  /api/portfolios/{id}/report           - 리스크 리포트
  GET  /ws/portfolios/{id}/risk              - 실시간 리스크 스트림

Example:
  go run ./cmd/riskd api
  go run ./cmd/riskd api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Risk API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	h := api.Handlers{
		Risk:   handlers.NewRiskHandler(a.service, a.log),
		Stream: handlers.NewStreamHandler(a.service, a.log, a.cfg.Risk.StreamInterval),
	}
	if a.metrics != nil {
		h.Metrics = a.metrics.Handler()
	}

	server := api.New(a.cfg, a.log, api.NewRouter(h, a.log))

	// Ctrl+C / SIGTERM → graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	PrintSuccess(fmt.Sprintf("Server running on http://localhost%s", server.Addr()))
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := server.Run(ctx, 30*time.Second); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
