package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value
// 키가 없으면 (false, nil), Redis 오류는 그대로 반환
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// GetOrSet retrieves from cache or calls fn to populate it
// 캐시 쓰기 실패는 무시 (원본 값은 이미 확보)
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	// Try cache first
	found, err := c.Get(ctx, key, dest)
	if err == nil && found {
		return nil
	}

	// Cache miss - call function
	value, err := fn()
	if err != nil {
		return err
	}

	_ = c.Set(ctx, key, value, ttl)

	// Unmarshal into dest
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// Predefined TTLs
const (
	TTLShort  = 1 * time.Minute // 최신 리스크 스냅샷
	TTLMedium = 5 * time.Minute // 변동성/거래대금 통계
	TTLLong   = 1 * time.Hour   // 무위험 수익률, 벤치마크
	TTLDaily  = 24 * time.Hour  // 일별 시장 수익률
)

// Common cache key generators

// VolatilityKey 종목 변동성
func VolatilityKey(symbol string) string {
	return fmt.Sprintf("marketdata:vol:%s", symbol)
}

// VolumeKey 종목 평균 거래대금
func VolumeKey(symbol string) string {
	return fmt.Sprintf("marketdata:adv:%s", symbol)
}

// CorrelationKey 종목 집합의 상관계수 (순서 무관)
func CorrelationKey(symbols []string) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	return fmt.Sprintf("marketdata:corr:%s", strings.Join(sorted, ","))
}

// RiskFreeRateKey 무위험 수익률
func RiskFreeRateKey() string {
	return "marketdata:rf"
}

// BenchmarkKey 벤치마크 연 수익률
func BenchmarkKey() string {
	return "marketdata:benchmark"
}

// MarketReturnsKey 시장 일별 수익률
func MarketReturnsKey(days int) string {
	return fmt.Sprintf("marketdata:market_returns:%d", days)
}
