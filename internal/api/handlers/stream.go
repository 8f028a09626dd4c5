package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// 스트림 설정
const (
	MinStreamInterval = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongWait          = 60 * time.Second
	writeWait         = 10 * time.Second
)

// StreamMessage one risk update pushed to the client
type StreamMessage struct {
	Type      string                 `json:"type"` // risk_update, error
	Metrics   *risk.RiskMetrics      `json:"metrics,omitempty"`
	Limits    *risk.LimitCheckResult `json:"limits,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Status    int                    `json:"status,omitempty"` // error일 때 REST와 같은 상태 코드
	Timestamp time.Time              `json:"timestamp"`
}

// StreamHandler pushes periodic risk snapshots over WebSocket
type StreamHandler struct {
	service  RiskService
	logger   *logger.Logger
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a stream handler (interval: 기본 전송 주기)
func NewStreamHandler(service RiskService, log *logger.Logger, interval time.Duration) *StreamHandler {
	if interval < MinStreamInterval {
		interval = MinStreamInterval
	}
	return &StreamHandler{
		service:  service,
		logger:   log,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// StreamRisk upgrades and streams metrics + limit checks
// GET /ws/portfolios/{id}/risk?interval=30s
func (h *StreamHandler) StreamRisk(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	interval := h.interval
	if s := r.URL.Query().Get("interval"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "interval must be a duration (e.g. 30s)")
			return
		}
		if d < MinStreamInterval {
			d = MinStreamInterval
		}
		interval = d
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade가 이미 에러 응답을 씀
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.logger.Portfolio(id)
	log.WithField("interval", interval.String()).Info("Risk stream opened")
	defer log.Info("Risk stream closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(conn, cancel)

	if err := h.push(ctx, conn, id); err != nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.push(ctx, conn, id); err != nil {
				return
			}
		}
	}
}

// push computes one update and writes it; write 실패만 스트림을 종료
func (h *StreamHandler) push(ctx context.Context, conn *websocket.Conn, id string) error {
	msg := h.snapshot(ctx, id)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Portfolio(id).WithError(err).Debug("Risk stream write failed")
		return err
	}
	return nil
}

func (h *StreamHandler) snapshot(ctx context.Context, id string) StreamMessage {
	msg := StreamMessage{Type: "risk_update", Timestamp: time.Now()}

	m, err := h.service.CalculateRiskMetrics(ctx, id, "", 0, false)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Portfolio(id).WithError(err).Warn("Risk stream update failed")
		}
		return StreamMessage{Type: "error", Error: clientMessage(status, err), Status: status, Timestamp: msg.Timestamp}
	}
	msg.Metrics = m

	// 방금 계산한 스냅샷으로 체크, 저장된 한도가 없으면 생략
	check, err := h.service.CheckSnapshotLimits(ctx, m)
	switch {
	case err == nil:
		msg.Limits = check
	case !errors.Is(err, contracts.ErrNotFound):
		h.logger.Portfolio(id).WithError(err).Warn("Stream limit check failed")
	}

	return msg
}

// readLoop drains client frames and cancels the stream on close
func (h *StreamHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
