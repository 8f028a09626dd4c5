package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")
	cfg := MarketDataRateLimit(5)

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 5, remaining)

	assert.NoError(t, limiter.For(cfg).Wait(context.Background()))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	var result float64
	found, err := cache.Get(ctx, VolatilityKey("AAPL"), &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, VolatilityKey("AAPL"), 0.25, TTLMedium))
	assert.NoError(t, cache.Delete(ctx, VolatilityKey("AAPL")))

	// GetOrSet은 항상 원본 함수 결과를 돌려줌
	calls := 0
	err = cache.GetOrSet(ctx, VolatilityKey("AAPL"), &result, TTLMedium, func() (interface{}, error) {
		calls++
		return 0.31, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.31, result)
	assert.Equal(t, 1, calls)
}

func TestCache_RoundTrip(t *testing.T) {
	if testing.Short() || os.Getenv("REDIS_HOST") == "" {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}

	client, err := New(&config.Config{Redis: config.RedisConfig{
		Host:    os.Getenv("REDIS_HOST"),
		Port:    "6379",
		Enabled: true,
	}})
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, "aegis-risk-test")
	ctx := context.Background()
	key := MarketReturnsKey(30)
	defer cache.Delete(ctx, key)

	require.NoError(t, cache.Set(ctx, key, []float64{0.01, -0.02}, time.Minute))

	var got []float64
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []float64{0.01, -0.02}, got)
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"VolatilityKey", VolatilityKey("AAPL"), "marketdata:vol:AAPL"},
		{"VolumeKey", VolumeKey("AAPL"), "marketdata:adv:AAPL"},
		{"CorrelationKey sorted", CorrelationKey([]string{"MSFT", "AAPL"}), "marketdata:corr:AAPL,MSFT"},
		{"RiskFreeRateKey", RiskFreeRateKey(), "marketdata:rf"},
		{"MarketReturnsKey", MarketReturnsKey(365), "marketdata:market_returns:365"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
