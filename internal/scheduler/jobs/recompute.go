package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// PortfolioLister lists portfolios to recompute
type PortfolioLister interface {
	ListPortfolioIDs(ctx context.Context) ([]string, error)
}

// RiskCalculator is the subset of the analytics service used by the job
type RiskCalculator interface {
	CalculateRiskMetrics(ctx context.Context, portfolioID, horizon string, confidence float64, includeCorrelations bool) (*risk.RiskMetrics, error)
	CheckRiskLimits(ctx context.Context, portfolioID string, limits *risk.RiskLimits) (*risk.LimitCheckResult, error)
}

// RecomputeJob recomputes and persists metrics for every portfolio, then checks stored limits
type RecomputeJob struct {
	portfolios PortfolioLister
	calculator RiskCalculator
	schedule   string
	logger     *logger.Logger
}

// NewRecomputeJob creates a new recompute job
func NewRecomputeJob(portfolios PortfolioLister, calculator RiskCalculator, schedule string, log *logger.Logger) *RecomputeJob {
	return &RecomputeJob{
		portfolios: portfolios,
		calculator: calculator,
		schedule:   schedule,
		logger:     log,
	}
}

// Name returns the job name
func (j *RecomputeJob) Name() string {
	return "risk_recompute"
}

// Schedule returns the cron schedule
func (j *RecomputeJob) Schedule() string {
	return j.schedule
}

// Run executes the job
// 한 포트폴리오 실패가 나머지 재계산을 막지 않는다
func (j *RecomputeJob) Run(ctx context.Context) error {
	ids, err := j.portfolios.ListPortfolioIDs(ctx)
	if err != nil {
		return fmt.Errorf("list portfolios: %w", err)
	}

	j.logger.WithField("portfolios", len(ids)).Info("Starting risk recompute")

	var errs []error
	breached := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := j.recompute(ctx, id)
		if err != nil {
			j.logger.Portfolio(id).WithError(err).Warn("Risk recompute failed")
			errs = append(errs, fmt.Errorf("portfolio %s: %w", id, err))
			continue
		}
		breached += n
	}

	j.logger.WithFields(map[string]interface{}{
		"portfolios": len(ids),
		"failed":     len(errs),
		"breaches":   breached,
	}).Info("Risk recompute completed")

	return errors.Join(errs...)
}

// recompute returns the number of limit breaches for one portfolio
func (j *RecomputeJob) recompute(ctx context.Context, id string) (int, error) {
	// 빈 horizon/0 신뢰수준: 서비스 기본값 사용
	if _, err := j.calculator.CalculateRiskMetrics(ctx, id, "", 0, false); err != nil {
		return 0, err
	}

	result, err := j.calculator.CheckRiskLimits(ctx, id, nil)
	if errors.Is(err, contracts.ErrNotFound) {
		// 한도 미설정
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if !result.AllWithinLimits {
		metrics := make([]string, 0, len(result.Breaches))
		for _, b := range result.Breaches {
			metrics = append(metrics, b.Metric)
		}
		j.logger.Portfolio(id).WithField("metrics", metrics).Warn("Portfolio outside risk limits")
	}
	return len(result.Breaches), nil
}
