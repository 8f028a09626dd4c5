package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
)

// Repository handles portfolio reads and risk snapshot persistence
// ⭐ SSOT: portfolio.* (읽기 전용) / risk.* (쓰기) 테이블 접근은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// =============================================================================
// Portfolio (읽기 전용)
// =============================================================================

// GetPortfolio retrieves a portfolio snapshot
// 존재하지 않으면 contracts.ErrNotFound
func (r *Repository) GetPortfolio(ctx context.Context, portfolioID string) (*contracts.Portfolio, error) {
	query := `
		SELECT id, owner_id, name, total_value, updated_at
		FROM portfolio.portfolios
		WHERE id = $1
	`

	var (
		p     contracts.Portfolio
		total decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&p.ID, &p.OwnerID, &p.Name, &total, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %s", contracts.ErrNotFound, portfolioID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	p.TotalValue = total.InexactFloat64()
	return &p, nil
}

// GetPositions retrieves current holdings ordered by value
func (r *Repository) GetPositions(ctx context.Context, portfolioID string) ([]contracts.Position, error) {
	query := `
		SELECT symbol, quantity, current_price, total_value, allocation_pct
		FROM portfolio.positions
		WHERE portfolio_id = $1
		ORDER BY total_value DESC, symbol
	`

	rows, err := r.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]contracts.Position, 0)
	for rows.Next() {
		var (
			pos                       contracts.Position
			qty, price, value, allocp decimal.Decimal
		)
		if err := rows.Scan(&pos.Symbol, &qty, &price, &value, &allocp); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		pos.Quantity = qty.InexactFloat64()
		pos.CurrentPrice = price.InexactFloat64()
		pos.TotalValue = value.InexactFloat64()
		pos.AllocationPct = allocp.InexactFloat64()
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return positions, nil
}

// ListPortfolioIDs returns all portfolio IDs (스케줄러 재계산 대상)
func (r *Repository) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT id FROM portfolio.portfolios ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect portfolio ids: %w", err)
	}
	return ids, nil
}

// =============================================================================
// Value History / Returns
// =============================================================================

// GetHistoricalValues retrieves value snapshots in [start, end], oldest first
func (r *Repository) GetHistoricalValues(ctx context.Context, portfolioID string, start, end time.Time) ([]contracts.ValuePoint, error) {
	query := `
		SELECT value_date, value
		FROM portfolio.value_history
		WHERE portfolio_id = $1 AND value_date BETWEEN $2 AND $3
		ORDER BY value_date
	`

	rows, err := r.pool.Query(ctx, query, portfolioID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query value history: %w", err)
	}
	defer rows.Close()

	return scanValuePoints(rows)
}

// GetReturnSeries derives daily returns from the last lookbackDays of value history
func (r *Repository) GetReturnSeries(ctx context.Context, portfolioID string, lookbackDays int) ([]float64, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	points, err := r.GetHistoricalValues(ctx, portfolioID, start, end)
	if err != nil {
		return nil, err
	}
	return contracts.ReturnsOf(points), nil
}

// SaveValuePoints upserts value history (시드/백필용)
func (r *Repository) SaveValuePoints(ctx context.Context, portfolioID string, points []contracts.ValuePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO portfolio.value_history (portfolio_id, value_date, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (portfolio_id, value_date) DO UPDATE SET value = EXCLUDED.value
		`, portfolioID, p.Date, decimal.NewFromFloat(p.Value))
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save value history: %w", err)
	}
	return nil
}

func scanValuePoints(rows pgx.Rows) ([]contracts.ValuePoint, error) {
	points := make([]contracts.ValuePoint, 0)
	for rows.Next() {
		var (
			p     contracts.ValuePoint
			value decimal.Decimal
		)
		if err := rows.Scan(&p.Date, &value); err != nil {
			return nil, fmt.Errorf("failed to scan value point: %w", err)
		}
		p.Value = value.InexactFloat64()
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return points, nil
}

// =============================================================================
// Risk Snapshots / Limits
// =============================================================================

// SaveMetrics stores an immutable risk snapshot
func (r *Repository) SaveMetrics(ctx context.Context, m *risk.RiskMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO risk.metrics_snapshots (
			id, portfolio_id, horizon, confidence, var, cvar, risk_score, risk_level, payload, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		m.ID, m.PortfolioID, string(m.Horizon), m.Confidence,
		decimal.NewFromFloat(m.VaR).Round(4), decimal.NewFromFloat(m.CVaR).Round(4),
		m.RiskScore, string(m.RiskLevel), payload, m.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	return nil
}

// LatestMetrics returns the most recent snapshot, or ErrNotFound
func (r *Repository) LatestMetrics(ctx context.Context, portfolioID string) (*risk.RiskMetrics, error) {
	query := `
		SELECT payload
		FROM risk.metrics_snapshots
		WHERE portfolio_id = $1
		ORDER BY calculated_at DESC
		LIMIT 1
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, portfolioID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no metrics for portfolio %s", contracts.ErrNotFound, portfolioID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest metrics: %w", err)
	}

	var m risk.RiskMetrics
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &m, nil
}

// PruneMetrics before 이전에 계산된 스냅샷 삭제, 삭제된 행 수 반환
func (r *Repository) PruneMetrics(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM risk.metrics_snapshots WHERE calculated_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune metrics: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveRiskLimits upserts limits for a portfolio
func (r *Repository) SaveRiskLimits(ctx context.Context, portfolioID string, limits risk.RiskLimits) error {
	payload, err := json.Marshal(limits)
	if err != nil {
		return fmt.Errorf("failed to marshal limits: %w", err)
	}

	query := `
		INSERT INTO risk.limits (portfolio_id, limits, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (portfolio_id) DO UPDATE SET
			limits = EXCLUDED.limits,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, portfolioID, payload); err != nil {
		return fmt.Errorf("failed to save limits: %w", err)
	}
	return nil
}

// GetRiskLimits returns stored limits, or ErrNotFound
func (r *Repository) GetRiskLimits(ctx context.Context, portfolioID string) (*risk.RiskLimits, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		"SELECT limits FROM risk.limits WHERE portfolio_id = $1",
		portfolioID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no limits for portfolio %s", contracts.ErrNotFound, portfolioID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}

	var limits risk.RiskLimits
	if err := json.Unmarshal(payload, &limits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal limits: %w", err)
	}
	return &limits, nil
}
