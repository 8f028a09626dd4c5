package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/analytics"
	"github.com/wonny/aegis-risk/internal/analytics/analyticstest"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/pkg/logger"
)

func newStreamServer(t *testing.T) (*httptest.Server, *analyticstest.Fixture) {
	t.Helper()

	fx := analyticstest.NewFixture()
	svc := analytics.NewService(analytics.Deps{
		Portfolios: fx.Portfolios,
		Returns:    fx.Returns,
		Market:     fx.Market,
		Store:      fx.Store,
	}, analytics.Settings{})

	r := mux.NewRouter()
	r.HandleFunc("/ws/portfolios/{id}/risk", NewStreamHandler(svc, logger.Nop(), time.Minute).StreamRisk)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, fx
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStreamRisk_FirstUpdate(t *testing.T) {
	srv, fx := newStreamServer(t)
	fx.Store.Limits = map[string]risk.RiskLimits{pid: {MaxConcentration: ptrf(50)}}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/portfolios/"+pid+"/risk"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "risk_update", msg.Type)
	require.NotNil(t, msg.Metrics)
	assert.Equal(t, pid, msg.Metrics.PortfolioID)
	require.NotNil(t, msg.Limits)
	assert.False(t, msg.Limits.AllWithinLimits)

	// 한도 체크는 같은 스냅샷을 사용 (수익률 시계열 조회 1회)
	assert.Len(t, fx.Returns.Lookbacks, 1)
	assert.Equal(t, 1, fx.Store.SavedCount())
}

func TestStreamRisk_NoStoredLimits(t *testing.T) {
	srv, _ := newStreamServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/portfolios/"+pid+"/risk?interval=5s"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "risk_update", msg.Type)
	assert.NotNil(t, msg.Metrics)
	assert.Nil(t, msg.Limits)
}

func TestStreamRisk_UnknownPortfolio(t *testing.T) {
	srv, _ := newStreamServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/portfolios/missing/risk"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, http.StatusNotFound, msg.Status)
	assert.Contains(t, msg.Error, "not found")
}

func TestStreamRisk_HidesDependencyDetails(t *testing.T) {
	srv, fx := newStreamServer(t)
	fx.Market.Err = errors.New("dial tcp 10.0.0.7:6379: connection refused")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/portfolios/"+pid+"/risk"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, http.StatusBadGateway, msg.Status)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), msg.Error)
	assert.NotContains(t, msg.Error, "10.0.0.7")
}

func TestStreamRisk_BadInterval(t *testing.T) {
	srv, _ := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/ws/portfolios/" + pid + "/risk?interval=soon")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewStreamHandler_ClampsInterval(t *testing.T) {
	h := NewStreamHandler(nil, logger.Nop(), time.Second)
	assert.Equal(t, MinStreamInterval, h.interval)
}

func ptrf(v float64) *float64 { return &v }
