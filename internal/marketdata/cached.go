package marketdata

import (
	"context"
	"time"

	"github.com/wonny/aegis-risk/pkg/metrics"
	"github.com/wonny/aegis-risk/pkg/redis"
)

// CachedProvider wraps a Provider with a Redis cache
// 종목별 통계는 심볼 단위로 캐시, 캐시 오류는 원본 조회로 대체
type CachedProvider struct {
	inner   Provider
	cache   *redis.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewCachedProvider creates a caching decorator (ttl 0 = redis.TTLMedium)
func NewCachedProvider(inner Provider, cache *redis.Cache, ttl time.Duration, m *metrics.Metrics) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLMedium
	}
	return &CachedProvider{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
	}
}

// GetVolatility 캐시 미스 종목만 원본 조회
func (p *CachedProvider) GetVolatility(ctx context.Context, symbols []string) (map[string]float64, error) {
	return p.perSymbol(ctx, symbols, redis.VolatilityKey, p.inner.GetVolatility)
}

// GetVolume 캐시 미스 종목만 원본 조회
func (p *CachedProvider) GetVolume(ctx context.Context, symbols []string) (map[string]float64, error) {
	return p.perSymbol(ctx, symbols, redis.VolumeKey, p.inner.GetVolume)
}

// GetCorrelations 종목 집합 단위 캐시
func (p *CachedProvider) GetCorrelations(ctx context.Context, symbols []string) (map[string]float64, error) {
	key := redis.CorrelationKey(symbols)

	var cached map[string]float64
	if p.lookup(ctx, key, &cached) {
		// 키는 순서 무관이지만 PairKey는 입력 순서를 따르므로 재매핑
		return orientPairs(cached, symbols), nil
	}

	corr, err := p.inner.GetCorrelations(ctx, symbols)
	if err != nil {
		return nil, err
	}
	_ = p.cache.Set(ctx, key, corr, p.ttl)
	return corr, nil
}

// GetRiskFreeRate 1시간 캐시
func (p *CachedProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	return p.scalar(ctx, redis.RiskFreeRateKey(), p.inner.GetRiskFreeRate)
}

// GetBenchmarkReturn 1시간 캐시
func (p *CachedProvider) GetBenchmarkReturn(ctx context.Context) (float64, error) {
	return p.scalar(ctx, redis.BenchmarkKey(), p.inner.GetBenchmarkReturn)
}

// GetMarketReturns 일 단위 캐시
func (p *CachedProvider) GetMarketReturns(ctx context.Context, days int) ([]float64, error) {
	key := redis.MarketReturnsKey(days)

	var cached []float64
	if p.lookup(ctx, key, &cached) {
		return cached, nil
	}

	returns, err := p.inner.GetMarketReturns(ctx, days)
	if err != nil {
		return nil, err
	}
	_ = p.cache.Set(ctx, key, returns, redis.TTLDaily)
	return returns, nil
}

func (p *CachedProvider) perSymbol(
	ctx context.Context,
	symbols []string,
	keyFn func(string) string,
	fetch func(context.Context, []string) (map[string]float64, error),
) (map[string]float64, error) {
	result := make(map[string]float64, len(symbols))
	var missing []string

	for _, s := range symbols {
		var v float64
		if p.lookup(ctx, keyFn(s), &v) {
			result[s] = v
			continue
		}
		missing = append(missing, s)
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for s, v := range fetched {
		result[s] = v
		_ = p.cache.Set(ctx, keyFn(s), v, p.ttl)
	}
	return result, nil
}

func (p *CachedProvider) scalar(ctx context.Context, key string, fetch func(context.Context) (float64, error)) (float64, error) {
	var cached float64
	if p.lookup(ctx, key, &cached) {
		return cached, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return 0, err
	}
	_ = p.cache.Set(ctx, key, v, redis.TTLLong)
	return v, nil
}

// lookup reads key into dest and records hit/miss/error
func (p *CachedProvider) lookup(ctx context.Context, key string, dest interface{}) bool {
	found, err := p.cache.Get(ctx, key, dest)
	switch {
	case err != nil:
		p.metrics.RecordCache(metrics.CacheError)
		return false
	case found:
		p.metrics.RecordCache(metrics.CacheHit)
		return true
	default:
		p.metrics.RecordCache(metrics.CacheMiss)
		return false
	}
}

// orientPairs rewrites cached pair keys to follow the requested symbol order
func orientPairs(cached map[string]float64, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(cached))
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := symbols[i], symbols[j]
			if v, ok := cached[PairKey(a, b)]; ok {
				out[PairKey(a, b)] = v
			} else if v, ok := cached[PairKey(b, a)]; ok {
				out[PairKey(a, b)] = v
			}
		}
	}
	return out
}
