package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data
	MarketData MarketDataConfig

	// Risk engine
	Risk RiskConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// 시장 데이터 제공 방식
const (
	MarketDataSynthetic = "synthetic"
	MarketDataRemote    = "remote"
)

// MarketDataConfig holds market statistics provider configuration
type MarketDataConfig struct {
	Mode      string // synthetic, remote
	BaseURL   string
	APIKey    string
	RateLimit int // 초당 요청 수
	CacheTTL  time.Duration
	Seed      int64 // synthetic 모드 시드 (0 = 시각 기반)
	Timeout   time.Duration
}

// RiskConfig holds risk engine defaults
type RiskConfig struct {
	DefaultConfidence     float64
	DefaultHorizon        string
	MonteCarloSimulations int
	MonteCarloWorkers     int
	MonteCarloSeed        int64
	SamplePaths           int
	RecomputeSchedule     string // cron (초 단위 포함)
	PruneSchedule         string
	SnapshotRetention     time.Duration
	StreamInterval        time.Duration
	ProfileFile           string // YAML 리스크 프로파일 (빈 값 = 미사용)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "aegis_risk"),
			User:            getEnv("DB_USER", "aegis_risk"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Market data
		MarketData: MarketDataConfig{
			Mode:      getEnv("MARKETDATA_MODE", MarketDataSynthetic),
			BaseURL:   getEnv("MARKETDATA_BASE_URL", ""),
			APIKey:    getEnv("MARKETDATA_API_KEY", ""),
			RateLimit: getEnvAsInt("MARKETDATA_RATE_LIMIT", 10),
			CacheTTL:  getEnvAsDuration("MARKETDATA_CACHE_TTL", "5m"),
			Seed:      getEnvAsInt64("MARKETDATA_SEED", 0),
			Timeout:   getEnvAsDuration("MARKETDATA_TIMEOUT", "10s"),
		},

		// Risk engine
		Risk: RiskConfig{
			DefaultConfidence:     getEnvAsFloat("RISK_DEFAULT_CONFIDENCE", 0.95),
			DefaultHorizon:        getEnv("RISK_DEFAULT_HORIZON", "1D"),
			MonteCarloSimulations: getEnvAsInt("RISK_MC_SIMULATIONS", 5000),
			MonteCarloWorkers:     getEnvAsInt("RISK_MC_WORKERS", runtime.NumCPU()),
			MonteCarloSeed:        getEnvAsInt64("RISK_MC_SEED", 0),
			SamplePaths:           getEnvAsInt("RISK_MC_SAMPLE_PATHS", 100),
			RecomputeSchedule:     getEnv("RISK_RECOMPUTE_SCHEDULE", "0 */15 * * * *"),
			PruneSchedule:         getEnv("RISK_PRUNE_SCHEDULE", "0 30 3 * * *"),
			SnapshotRetention:     getEnvAsDuration("RISK_SNAPSHOT_RETENTION", "2160h"),
			StreamInterval:        getEnvAsDuration("RISK_STREAM_INTERVAL", "30s"),
			ProfileFile:           getEnv("RISK_PROFILE_FILE", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	// Market data
	switch c.MarketData.Mode {
	case MarketDataSynthetic:
	case MarketDataRemote:
		if c.MarketData.BaseURL == "" {
			return fmt.Errorf("MARKETDATA_BASE_URL is required when MARKETDATA_MODE=remote")
		}
	default:
		return fmt.Errorf("MARKETDATA_MODE must be one of: synthetic, remote")
	}
	if c.MarketData.RateLimit <= 0 {
		return fmt.Errorf("MARKETDATA_RATE_LIMIT must be positive")
	}

	// Risk defaults
	if !(c.Risk.DefaultConfidence > 0 && c.Risk.DefaultConfidence < 1) {
		return fmt.Errorf("RISK_DEFAULT_CONFIDENCE must be in (0, 1)")
	}
	if c.Risk.MonteCarloSimulations < 1 || c.Risk.MonteCarloSimulations > 100000 {
		return fmt.Errorf("RISK_MC_SIMULATIONS must be in [1, 100000]")
	}
	if c.Risk.MonteCarloWorkers < 1 {
		return fmt.Errorf("RISK_MC_WORKERS must be positive")
	}
	if c.Risk.SnapshotRetention <= 0 {
		return fmt.Errorf("RISK_SNAPSHOT_RETENTION must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",           // Current directory
		"backend/.env",   // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
