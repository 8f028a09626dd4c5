package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/aegis-risk/pkg/httputil"
)

// APIKeyHeader 시장 데이터 API 인증 헤더
const APIKeyHeader = "X-API-Key"

// symbolStatsResponse 종목별 통계 응답
type symbolStatsResponse struct {
	Data map[string]float64 `json:"data"`
}

// scalarResponse 단일 값 응답
type scalarResponse struct {
	Value float64 `json:"value"`
}

// returnsResponse 시장 수익률 응답
type returnsResponse struct {
	Returns []float64 `json:"returns"`
}

// RemoteProvider reads market statistics from a JSON HTTP API
//
// Endpoints (BaseURL 기준):
//
//	GET /v1/volatility?symbols=A,B      {"data":{"A":0.21}}
//	GET /v1/correlations?symbols=A,B    {"data":{"A|B":0.4}}
//	GET /v1/volume?symbols=A,B          {"data":{"A":1.2e9}}
//	GET /v1/rates/risk-free             {"value":0.035}
//	GET /v1/benchmark/return            {"value":0.08}
//	GET /v1/market/returns?days=N       {"returns":[...]}
type RemoteProvider struct {
	baseURL string
	client  *httputil.Client
}

// NewRemoteProvider creates a provider over an httputil client
// rate limit/API key는 client에 이미 설정되어 있어야 함
func NewRemoteProvider(baseURL string, client *httputil.Client) *RemoteProvider {
	return &RemoteProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// GetVolatility fetches annual volatility per symbol
func (p *RemoteProvider) GetVolatility(ctx context.Context, symbols []string) (map[string]float64, error) {
	return p.symbolStats(ctx, "/v1/volatility", symbols)
}

// GetCorrelations fetches pairwise correlations
func (p *RemoteProvider) GetCorrelations(ctx context.Context, symbols []string) (map[string]float64, error) {
	return p.symbolStats(ctx, "/v1/correlations", symbols)
}

// GetVolume fetches average daily traded value per symbol
func (p *RemoteProvider) GetVolume(ctx context.Context, symbols []string) (map[string]float64, error) {
	return p.symbolStats(ctx, "/v1/volume", symbols)
}

// GetRiskFreeRate fetches the annual risk-free rate
func (p *RemoteProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	return p.scalar(ctx, "/v1/rates/risk-free")
}

// GetBenchmarkReturn fetches the annual benchmark return
func (p *RemoteProvider) GetBenchmarkReturn(ctx context.Context) (float64, error) {
	return p.scalar(ctx, "/v1/benchmark/return")
}

// GetMarketReturns fetches the latest days market returns
func (p *RemoteProvider) GetMarketReturns(ctx context.Context, days int) ([]float64, error) {
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))

	var resp returnsResponse
	if err := p.client.GetJSON(ctx, p.endpoint("/v1/market/returns", q), &resp); err != nil {
		return nil, fmt.Errorf("market returns: %w", err)
	}
	return resp.Returns, nil
}

func (p *RemoteProvider) symbolStats(ctx context.Context, path string, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))

	var resp symbolStatsResponse
	if err := p.client.GetJSON(ctx, p.endpoint(path, q), &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if resp.Data == nil {
		resp.Data = map[string]float64{}
	}
	return resp.Data, nil
}

func (p *RemoteProvider) scalar(ctx context.Context, path string) (float64, error) {
	var resp scalarResponse
	if err := p.client.GetJSON(ctx, p.endpoint(path, nil), &resp); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return resp.Value, nil
}

func (p *RemoteProvider) endpoint(path string, q url.Values) string {
	if len(q) == 0 {
		return p.baseURL + path
	}
	return p.baseURL + path + "?" + q.Encode()
}
