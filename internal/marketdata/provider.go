package marketdata

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/httputil"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/metrics"
	"github.com/wonny/aegis-risk/pkg/redis"
)

// Provider supplies market statistics used by the risk service
// ⭐ SSOT: 실데이터/합성데이터 선택은 New()에서만
type Provider interface {
	// GetVolatility 종목별 연 변동성 (0.25 = 25%)
	GetVolatility(ctx context.Context, symbols []string) (map[string]float64, error)
	// GetCorrelations 종목쌍 상관계수, 키는 PairKey(a, b)
	GetCorrelations(ctx context.Context, symbols []string) (map[string]float64, error)
	// GetVolume 종목별 평균 일 거래대금 (통화 단위)
	GetVolume(ctx context.Context, symbols []string) (map[string]float64, error)
	// GetRiskFreeRate 연 무위험 수익률
	GetRiskFreeRate(ctx context.Context) (float64, error)
	// GetBenchmarkReturn 벤치마크 연 수익률
	GetBenchmarkReturn(ctx context.Context) (float64, error)
	// GetMarketReturns 최근 days개 시장 일별 수익률 (오래된 순)
	GetMarketReturns(ctx context.Context, days int) ([]float64, error)
}

// Deps optional collaborators for New
type Deps struct {
	Cache   *redis.Cache
	Limiter *redis.RateLimiter // 분산 rate limit (nil이면 프로세스 내 limiter만)
	Metrics *metrics.Metrics
}

// New builds the provider selected by MARKETDATA_MODE
// Cache가 주어지면 CachedProvider로 감싼다
func New(cfg *config.Config, log *logger.Logger, deps Deps) (Provider, error) {
	var p Provider

	switch cfg.MarketData.Mode {
	case config.MarketDataSynthetic, "":
		p = NewSyntheticProvider(cfg.MarketData.Seed)

	case config.MarketDataRemote:
		client := httputil.New(cfg, log).
			WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.MarketData.RateLimit), cfg.MarketData.RateLimit))
		if deps.Limiter != nil {
			client = client.WithRateLimiter(deps.Limiter.For(redis.MarketDataRateLimit(cfg.MarketData.RateLimit)))
		}
		if cfg.MarketData.APIKey != "" {
			client = client.WithHeader(APIKeyHeader, cfg.MarketData.APIKey)
		}
		p = NewRemoteProvider(cfg.MarketData.BaseURL, client)

	default:
		return nil, fmt.Errorf("unknown market data mode: %s", cfg.MarketData.Mode)
	}

	if deps.Cache != nil {
		p = NewCachedProvider(p, deps.Cache, cfg.MarketData.CacheTTL, deps.Metrics)
	}

	log.Component("marketdata").WithFields(map[string]interface{}{
		"mode":   cfg.MarketData.Mode,
		"cached": deps.Cache != nil,
	}).Info("Market data provider ready")

	return p, nil
}

// PairSeparator 상관계수 키 구분자 (티커에 쓰이지 않는 문자, "BRK-B" 등 허용)
const PairSeparator = "|"

// PairKey 상관계수 맵 키 ("A|B", 입력 순서 유지)
func PairKey(a, b string) string {
	return a + PairSeparator + b
}
