// Package analyticstest provides in-memory collaborators for tests of the
// analytics service and its callers.
package analyticstest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
)

// PortfolioID 기본 fixture 포트폴리오
const PortfolioID = "pf-1"

// Today fixture 가치 시계열의 마지막 날짜
var Today = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

// Portfolios in-memory PortfolioSource
type Portfolios struct {
	mu         sync.Mutex
	Portfolios map[string]*contracts.Portfolio
	Positions  map[string][]contracts.Position
	Err        error
}

// GetPortfolio returns ErrNotFound for unknown IDs
func (f *Portfolios) GetPortfolio(ctx context.Context, id string) (*contracts.Portfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	p, ok := f.Portfolios[id]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio %s", contracts.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

// GetPositions returns stored positions
func (f *Portfolios) GetPositions(ctx context.Context, id string) ([]contracts.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return append([]contracts.Position(nil), f.Positions[id]...), nil
}

// ListPortfolioIDs returns every known portfolio
func (f *Portfolios) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	ids := make([]string, 0, len(f.Portfolios))
	for id := range f.Portfolios {
		ids = append(ids, id)
	}
	return ids, nil
}

// Returns in-memory ReturnSeriesSource
type Returns struct {
	mu        sync.Mutex
	Series    map[string][]float64
	History   map[string][]contracts.ValuePoint
	Err       error
	Lookbacks []int
}

// GetReturnSeries records the requested lookback
func (f *Returns) GetReturnSeries(ctx context.Context, id string, lookbackDays int) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Lookbacks = append(f.Lookbacks, lookbackDays)
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]float64(nil), f.Series[id]...), nil
}

// GetHistoricalValues filters history to [start, end]
func (f *Returns) GetHistoricalValues(ctx context.Context, id string, start, end time.Time) ([]contracts.ValuePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	var out []contracts.ValuePoint
	for _, p := range f.History[id] {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Market in-memory MarketStatsSource
type Market struct {
	Volatility   map[string]float64
	Correlations map[string]float64
	Volume       map[string]float64
	RiskFree     float64
	Benchmark    float64
	Returns      []float64
	Err          error
	ReturnsErr   error // GetMarketReturns만 실패
}

func (f *Market) GetVolatility(ctx context.Context, symbols []string) (map[string]float64, error) {
	return pick(f.Volatility, symbols), f.Err
}

func (f *Market) GetCorrelations(ctx context.Context, symbols []string) (map[string]float64, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make(map[string]float64, len(f.Correlations))
	for k, v := range f.Correlations {
		out[k] = v
	}
	return out, nil
}

func (f *Market) GetVolume(ctx context.Context, symbols []string) (map[string]float64, error) {
	return pick(f.Volume, symbols), f.Err
}

func (f *Market) GetRiskFreeRate(ctx context.Context) (float64, error) {
	return f.RiskFree, f.Err
}

func (f *Market) GetBenchmarkReturn(ctx context.Context) (float64, error) {
	return f.Benchmark, f.Err
}

func (f *Market) GetMarketReturns(ctx context.Context, days int) ([]float64, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.ReturnsErr != nil {
		return nil, f.ReturnsErr
	}
	return append([]float64(nil), f.Returns...), nil
}

func pick(src map[string]float64, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if v, ok := src[s]; ok {
			out[s] = v
		}
	}
	return out
}

// Store in-memory MetricsStore
type Store struct {
	mu      sync.Mutex
	Saved   []*risk.RiskMetrics
	Limits  map[string]risk.RiskLimits
	SaveErr error
}

func (f *Store) SaveMetrics(ctx context.Context, m *risk.RiskMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.Saved = append(f.Saved, m)
	return nil
}

func (f *Store) LatestMetrics(ctx context.Context, id string) (*risk.RiskMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.Saved) - 1; i >= 0; i-- {
		if f.Saved[i].PortfolioID == id {
			return f.Saved[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no metrics for %s", contracts.ErrNotFound, id)
}

func (f *Store) SaveRiskLimits(ctx context.Context, id string, limits risk.RiskLimits) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SaveErr != nil {
		return f.SaveErr
	}
	if f.Limits == nil {
		f.Limits = make(map[string]risk.RiskLimits)
	}
	f.Limits[id] = limits
	return nil
}

func (f *Store) GetRiskLimits(ctx context.Context, id string) (*risk.RiskLimits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	limits, ok := f.Limits[id]
	if !ok {
		return nil, fmt.Errorf("%w: no limits for %s", contracts.ErrNotFound, id)
	}
	return &limits, nil
}

// SavedCount 저장된 스냅샷 수
func (f *Store) SavedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Saved)
}

// Fixture wires a two-position portfolio with 60 daily returns
type Fixture struct {
	Portfolios *Portfolios
	Returns    *Returns
	Market     *Market
	Store      *Store
}

// SampleReturns 60개 결정적 일별 수익률
func SampleReturns() []float64 {
	returns := make([]float64, 60)
	for i := range returns {
		returns[i] = 0.0005 + 0.012*math.Sin(float64(i)*0.7)
	}
	return returns
}

// NewFixture builds collaborators for PortfolioID
// 시장 수익률은 포트폴리오 수익률의 절반 (beta = 2)
func NewFixture() *Fixture {
	returns := SampleReturns()

	history := make([]contracts.ValuePoint, len(returns)+1)
	value := 90000.0
	history[0] = contracts.ValuePoint{Date: Today.AddDate(0, 0, -len(returns)), Value: value}
	for i, r := range returns {
		value *= 1 + r
		history[i+1] = contracts.ValuePoint{Date: Today.AddDate(0, 0, i+1-len(returns)), Value: value}
	}

	market := make([]float64, 20, 20+len(returns))
	for _, r := range returns {
		market = append(market, r/2)
	}

	return &Fixture{
		Portfolios: &Portfolios{
			Portfolios: map[string]*contracts.Portfolio{
				PortfolioID: {ID: PortfolioID, OwnerID: "owner-1", Name: "Core", TotalValue: 100000, UpdatedAt: Today},
			},
			Positions: map[string][]contracts.Position{
				PortfolioID: {
					{Symbol: "AAA", Quantity: 600, CurrentPrice: 100, TotalValue: 60000, AllocationPct: 60},
					{Symbol: "BBB", Quantity: 800, CurrentPrice: 50, TotalValue: 40000, AllocationPct: 40},
				},
			},
		},
		Returns: &Returns{
			Series:  map[string][]float64{PortfolioID: returns},
			History: map[string][]contracts.ValuePoint{PortfolioID: history},
		},
		Market: &Market{
			Volatility:   map[string]float64{"AAA": 0.25, "BBB": 0.40},
			Correlations: map[string]float64{"AAA|BBB": 0.35},
			Volume:       map[string]float64{"AAA": 10_000_000, "BBB": 200_000},
			RiskFree:     0.03,
			Benchmark:    0.08,
			Returns:      market,
		},
		Store: &Store{},
	}
}
