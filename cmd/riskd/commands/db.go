package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/pkg/database"
)

var migratePrint bool

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "portfolio/risk 스키마 적용",
	Long: `portfolio.* / risk.* 테이블을 생성합니다. 반복 실행해도 안전합니다.

Example:
  go run ./cmd/riskd migrate
  go run ./cmd/riskd migrate --print`,
	RunE: runMigrate,
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "PostgreSQL / Redis 연결 점검",
	Long: `데이터베이스와 Redis 연결을 점검하고 풀 통계를 표시합니다.

Example:
  go run ./cmd/riskd check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(migrateCmd, checkCmd)

	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "DDL만 출력 (적용하지 않음)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migratePrint {
		fmt.Fprint(out, database.Schema())
		return nil
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}
	PrintSuccess("Schema applied")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("Connection Check")
	PrintKeyValue("Database", redactURL(a.cfg.Database.URL), 10)
	PrintKeyValue("Redis", fmt.Sprintf("%s:%s (enabled=%v)", a.cfg.Redis.Host, a.cfg.Redis.Port, a.redis.Enabled()), 10)
	PrintKeyValue("Market", a.cfg.MarketData.Mode, 10)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	if err := a.healthCheck(ctx); err != nil {
		PrintError(err.Error())
		return err
	}

	stats := a.db.Stats()
	PrintSeparator()
	PrintKeyValue("Max Connections", fmt.Sprintf("%d", stats.MaxConns), 20)
	PrintKeyValue("Total Connections", fmt.Sprintf("%d", stats.TotalConns), 20)
	PrintKeyValue("Idle Connections", fmt.Sprintf("%d", stats.IdleConns), 20)
	PrintKeyValue("Acquire Count", fmt.Sprintf("%d", stats.AcquireCount), 20)

	PrintSuccess("All checks passed")
	return nil
}

// redactURL masks the password in the database URL for display
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
