package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	verbose      bool
)

// 출력 형식
const (
	outputText = "text"
	outputJSON = "json"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riskd",
	Short: "Aegis Risk - 포트폴리오 리스크 분석 엔진",
	Long: `Aegis Risk Unified CLI

포트폴리오 리스크 분석 서비스.
VaR/CVaR, 스트레스 테스트, Monte Carlo, 유동성, 한도 체크, 리포트.

Usage:
  go run ./cmd/riskd [command]

Examples:
  go run ./cmd/riskd api
  go run ./cmd/riskd scheduler start
  go run ./cmd/riskd metrics pf-1 --confidence 0.99
  go run ./cmd/riskd report pf-1 --type REGULATORY --output json`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputText, "출력 형식 (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
