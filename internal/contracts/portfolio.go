package contracts

import (
	"math"
	"time"
)

// Portfolio is the engine's read-only view of a portfolio
// ⭐ SSOT: 포트폴리오 원본은 외부 저장소, 엔진은 스냅샷만 읽음
type Portfolio struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	TotalValue float64   `json:"total_value"` // 통화 단위 총 평가금액
	UpdatedAt  time.Time `json:"updated_at"`
}

// Position represents a single holding in a portfolio
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	CurrentPrice  float64 `json:"current_price"`
	TotalValue    float64 `json:"total_value"`    // Quantity * CurrentPrice (평가 시점 기준)
	AllocationPct float64 `json:"allocation_pct"` // 포트폴리오 내 비중 (0 ~ 100)
}

// ValuePoint is one observation of a portfolio's historical value
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DefaultValueDriftTolerance 포지션 합계와 포트폴리오 총액 간 허용 오차 (1%)
const DefaultValueDriftTolerance = 0.01

// PositionsValue returns the sum of all position values
func PositionsValue(positions []Position) float64 {
	total := 0.0
	for _, pos := range positions {
		total += pos.TotalValue
	}
	return total
}

// Symbols returns the position symbols in input order
func Symbols(positions []Position) []string {
	symbols := make([]string, 0, len(positions))
	for _, pos := range positions {
		symbols = append(symbols, pos.Symbol)
	}
	return symbols
}

// CheckValueDrift reports the relative drift between the positions' sum and the
// portfolio total, and whether it is within tolerance.
// Timing drift between price updates is expected, so callers log rather than fail.
func CheckValueDrift(portfolio *Portfolio, positions []Position, tolerance float64) (float64, bool) {
	if portfolio == nil || portfolio.TotalValue == 0 {
		return 0, len(positions) == 0
	}
	drift := math.Abs(PositionsValue(positions)-portfolio.TotalValue) / portfolio.TotalValue
	return drift, drift <= tolerance
}

// ValuesOf extracts the value column of a value history
func ValuesOf(points []ValuePoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// ReturnsOf converts a chronological value history to simple periodic returns.
// Points with a non-positive previous value are skipped.
func ReturnsOf(points []ValuePoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, (points[i].Value-prev)/prev)
	}
	return returns
}
