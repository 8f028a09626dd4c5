package commands

import (
	"context"
	"fmt"

	"github.com/wonny/aegis-risk/internal/analytics"
	"github.com/wonny/aegis-risk/internal/marketdata"
	"github.com/wonny/aegis-risk/internal/portfolio"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/internal/riskprofile"
	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/database"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/metrics"
	"github.com/wonny/aegis-risk/pkg/redis"
)

// redisPrefix Redis 키 네임스페이스
const redisPrefix = "aegis-risk"

// app 커맨드 공통 의존성
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	redis     *redis.Client
	metrics   *metrics.Metrics
	portfolio *portfolio.Repository
	service   *analytics.Service
}

// newApp loads config and wires database, cache, market data and the analytics service
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	horizon, err := risk.ParseTimeHorizon(cfg.Risk.DefaultHorizon)
	if err != nil {
		return nil, fmt.Errorf("RISK_DEFAULT_HORIZON: %w", err)
	}

	settings := analytics.Settings{
		DefaultConfidence: cfg.Risk.DefaultConfidence,
		DefaultHorizon:    horizon,
	}
	if cfg.Risk.ProfileFile != "" {
		if err := applyProfile(cfg.Risk.ProfileFile, &settings, log); err != nil {
			return nil, err
		}
	}

	// 3. Connect to database
	db, err := database.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (실패 시 캐시 없이 계속)
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, market data cache disabled")
		rdb = redis.Disabled()
	}

	// 5. Metrics
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// 6. Market data provider
	deps := marketdata.Deps{Metrics: m}
	if rdb.Enabled() {
		deps.Cache = redis.NewCache(rdb, redisPrefix)
		deps.Limiter = redis.NewRateLimiter(rdb, redisPrefix)
	}
	market, err := marketdata.New(cfg, log, deps)
	if err != nil {
		_ = rdb.Close()
		db.Close()
		return nil, fmt.Errorf("market data: %w", err)
	}

	// 7. Repository + service
	repo := portfolio.NewRepository(db.Pool)
	engine := risk.NewEngine(risk.WithMonteCarloDefaults(risk.MonteCarloConfig{
		NumSimulations: cfg.Risk.MonteCarloSimulations,
		Horizon:        risk.Horizon1M,
		Seed:           cfg.Risk.MonteCarloSeed,
		Workers:        cfg.Risk.MonteCarloWorkers,
		SamplePaths:    cfg.Risk.SamplePaths,
	}))

	service := analytics.NewService(analytics.Deps{
		Portfolios: repo,
		Returns:    repo,
		Market:     market,
		Store:      repo,
		Engine:     engine,
		Logger:     log,
		Metrics:    m,
	}, settings)

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     rdb,
		metrics:   m,
		portfolio: repo,
		service:   service,
	}, nil
}

// applyProfile loads the YAML risk profile into service settings
func applyProfile(path string, settings *analytics.Settings, log *logger.Logger) error {
	profile, data, err := riskprofile.Load(path)
	if err != nil {
		return fmt.Errorf("RISK_PROFILE_FILE: %w", err)
	}
	snap, err := riskprofile.NewSnapshot(profile, data)
	if err != nil {
		return fmt.Errorf("RISK_PROFILE_FILE: %w", err)
	}

	settings.Scenarios = profile.StressScenarios()
	settings.DefaultLimits = profile.Limits()

	log.WithFields(map[string]interface{}{
		"profile":   snap.ProfileID,
		"hash":      snap.Hash,
		"scenarios": len(settings.Scenarios),
		"limits":    settings.DefaultLimits != nil,
	}).Info("Risk profile loaded")
	return nil
}

// Close releases connections
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}

// healthCheck pings database and Redis
func (a *app) healthCheck(ctx context.Context) error {
	if _, err := a.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
