package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// RiskService is the analytics facade consumed by the handlers
type RiskService interface {
	CalculateRiskMetrics(ctx context.Context, portfolioID, horizon string, confidence float64, includeCorrelations bool) (*risk.RiskMetrics, error)
	CalculatePositionRisks(ctx context.Context, portfolioID string) ([]risk.PositionRisk, error)
	RunStressTests(ctx context.Context, portfolioID string, scenarios []risk.StressScenario) ([]risk.StressTestResult, error)
	SetRiskLimits(ctx context.Context, portfolioID string, limits risk.RiskLimits) (*risk.RiskLimits, error)
	CheckRiskLimits(ctx context.Context, portfolioID string, limits *risk.RiskLimits) (*risk.LimitCheckResult, error)
	CheckSnapshotLimits(ctx context.Context, m *risk.RiskMetrics) (*risk.LimitCheckResult, error)
	RunMonteCarloSimulation(ctx context.Context, portfolioID string, numSimulations int, horizon string) (*risk.MonteCarloResult, error)
	CalculateLiquidityRisk(ctx context.Context, portfolioID string) (*risk.LiquidityRisk, error)
	GenerateRiskReport(ctx context.Context, portfolioID, reportType string, start, end time.Time) (*risk.RiskReport, error)
}

// dateLayout 쿼리 파라미터 날짜 형식
const dateLayout = "2006-01-02"

// RiskHandler handles portfolio risk API endpoints
// ⭐ SSOT: 리스크 API 핸들러는 이 구조체에서만
type RiskHandler struct {
	service RiskService
	logger  *logger.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(service RiskService, log *logger.Logger) *RiskHandler {
	return &RiskHandler{
		service: service,
		logger:  log,
	}
}

// StressRequest body of POST /stress
type StressRequest struct {
	Scenarios []risk.StressScenario `json:"scenarios"`
}

// MonteCarloRequest body of POST /montecarlo
type MonteCarloRequest struct {
	NumSimulations int    `json:"num_simulations"`
	Horizon        string `json:"horizon"`
}

// GetRiskMetrics calculates a fresh risk snapshot
// GET /api/portfolios/{id}/risk?horizon=1D&confidence=0.95&correlations=true
func (h *RiskHandler) GetRiskMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	confidence := 0.0
	if s := q.Get("confidence"); s != "" {
		c, err := strconv.ParseFloat(s, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "confidence must be a number")
			return
		}
		confidence = c
	}

	correlations := false
	if s := q.Get("correlations"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "correlations must be true or false")
			return
		}
		correlations = b
	}

	m, err := h.service.CalculateRiskMetrics(r.Context(), id, q.Get("horizon"), confidence, correlations)
	if err != nil {
		h.fail(w, r, "Failed to calculate risk metrics", err)
		return
	}

	respondJSON(w, http.StatusOK, m)
}

// GetPositionRisks returns per-holding risk contributions
// GET /api/portfolios/{id}/positions/risk
func (h *RiskHandler) GetPositionRisks(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	risks, err := h.service.CalculatePositionRisks(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to calculate position risks", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": id,
		"positions":    risks,
	})
}

// RunStressTests evaluates scenarios (빈 목록이면 기본 시나리오)
// POST /api/portfolios/{id}/stress
func (h *RiskHandler) RunStressTests(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req StressRequest
	if _, err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	scenarios := req.Scenarios
	if len(scenarios) == 0 {
		scenarios = nil
	}

	results, err := h.service.RunStressTests(r.Context(), id, scenarios)
	if err != nil {
		h.fail(w, r, "Failed to run stress tests", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": id,
		"results":      results,
	})
}

// SetRiskLimits stores limits for a portfolio
// PUT /api/portfolios/{id}/limits
func (h *RiskHandler) SetRiskLimits(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var limits risk.RiskLimits
	found, err := decodeJSON(r, &limits)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusBadRequest, "limits body is required")
		return
	}

	saved, err := h.service.SetRiskLimits(r.Context(), id, limits)
	if err != nil {
		h.fail(w, r, "Failed to set risk limits", err)
		return
	}

	respondJSON(w, http.StatusOK, saved)
}

// CheckRiskLimits compares a fresh snapshot with limits
// 본문이 없으면 저장된 한도 사용
// POST /api/portfolios/{id}/limits/check
func (h *RiskHandler) CheckRiskLimits(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var limits risk.RiskLimits
	found, err := decodeJSON(r, &limits)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var override *risk.RiskLimits
	if found {
		override = &limits
	}

	result, err := h.service.CheckRiskLimits(r.Context(), id, override)
	if err != nil {
		h.fail(w, r, "Failed to check risk limits", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RunMonteCarlo runs a Monte Carlo projection
// POST /api/portfolios/{id}/montecarlo
func (h *RiskHandler) RunMonteCarlo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req MonteCarloRequest
	if _, err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := h.service.RunMonteCarloSimulation(r.Context(), id, req.NumSimulations, req.Horizon)
	if err != nil {
		h.fail(w, r, "Failed to run Monte Carlo simulation", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetLiquidityRisk estimates time to liquidate
// GET /api/portfolios/{id}/liquidity
func (h *RiskHandler) GetLiquidityRisk(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.service.CalculateLiquidityRisk(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to calculate liquidity risk", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetReport builds a risk report
// GET /api/portfolios/{id}/report?type=REGULATORY&start=2025-01-01&end=2025-12-31&format=text
func (h *RiskHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	reportType := q.Get("type")
	if reportType == "" {
		reportType = string(risk.ReportSummary)
	}

	start, err := parseDate(q.Get("start"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	report, err := h.service.GenerateRiskReport(r.Context(), id, reportType, start, end)
	if err != nil {
		h.fail(w, r, "Failed to generate risk report", err)
		return
	}

	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, report.ToSummary())
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// fail logs and writes a service error
func (h *RiskHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusFor(err)
	log := h.logger.WithError(err).WithFields(map[string]interface{}{
		"portfolio_id": mux.Vars(r)["id"],
		"path":         r.URL.Path,
		"status":       status,
	})
	if status >= http.StatusInternalServerError {
		log.Error(msg)
	} else {
		log.Debug(msg)
	}
	respondServiceError(w, err)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", contracts.ErrInvalidInput, s)
	}
	return t, nil
}
