package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-risk/internal/api/handlers"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Risk    *handlers.RiskHandler
	Stream  *handlers.StreamHandler
	Metrics http.Handler // nil이면 /metrics 미노출
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}

	// Portfolio risk API
	api := r.PathPrefix("/api/portfolios/{id}").Subrouter()
	api.HandleFunc("/risk", h.Risk.GetRiskMetrics).Methods("GET")
	api.HandleFunc("/positions/risk", h.Risk.GetPositionRisks).Methods("GET")
	api.HandleFunc("/stress", h.Risk.RunStressTests).Methods("POST")
	api.HandleFunc("/limits", h.Risk.SetRiskLimits).Methods("PUT")
	api.HandleFunc("/limits/check", h.Risk.CheckRiskLimits).Methods("POST")
	api.HandleFunc("/montecarlo", h.Risk.RunMonteCarlo).Methods("POST")
	api.HandleFunc("/liquidity", h.Risk.GetLiquidityRisk).Methods("GET")
	api.HandleFunc("/report", h.Risk.GetReport).Methods("GET")

	// WebSocket stream
	if h.Stream != nil {
		r.HandleFunc("/ws/portfolios/{id}/risk", h.Stream.StreamRisk).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "aegis-risk-api",
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// WebSocket은 Hijacker가 필요하므로 감싸지 않음
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
