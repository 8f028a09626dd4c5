package analytics

import (
	"context"
	"time"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
)

// PortfolioSource reads portfolio snapshots and holdings
type PortfolioSource interface {
	GetPortfolio(ctx context.Context, portfolioID string) (*contracts.Portfolio, error)
	GetPositions(ctx context.Context, portfolioID string) ([]contracts.Position, error)
}

// ReturnSeriesSource supplies return series and value history
type ReturnSeriesSource interface {
	// GetReturnSeries 최근 lookbackDays(달력일) 기간의 기간 수익률, 오래된 순
	GetReturnSeries(ctx context.Context, portfolioID string, lookbackDays int) ([]float64, error)
	GetHistoricalValues(ctx context.Context, portfolioID string, start, end time.Time) ([]contracts.ValuePoint, error)
}

// MarketStatsSource supplies per-symbol and market-wide statistics
type MarketStatsSource interface {
	GetVolatility(ctx context.Context, symbols []string) (map[string]float64, error)
	GetCorrelations(ctx context.Context, symbols []string) (map[string]float64, error)
	GetVolume(ctx context.Context, symbols []string) (map[string]float64, error)
	GetRiskFreeRate(ctx context.Context) (float64, error)
	GetBenchmarkReturn(ctx context.Context) (float64, error)
	GetMarketReturns(ctx context.Context, days int) ([]float64, error)
}

// MetricsStore persists risk snapshots and limits
type MetricsStore interface {
	SaveMetrics(ctx context.Context, m *risk.RiskMetrics) error
	LatestMetrics(ctx context.Context, portfolioID string) (*risk.RiskMetrics, error)
	SaveRiskLimits(ctx context.Context, portfolioID string, limits risk.RiskLimits) error
	GetRiskLimits(ctx context.Context, portfolioID string) (*risk.RiskLimits, error)
}
