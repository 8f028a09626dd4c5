package database

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/logger"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	// Skip if DATABASE_URL is not set
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err, "failed to load config")

	db, err := New(cfg, logger.Nop())
	require.NoError(t, err, "failed to create database")
	t.Cleanup(db.Close)
	return db
}

func TestNew(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.Ping(ctx))
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)

	assert.True(t, status.Healthy)
	assert.Greater(t, status.Stats.MaxConns, int32(0))
	t.Logf("Pool Stats: %+v", status.Stats)
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 두 번 실행해도 실패하지 않아야 함
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))

	var exists bool
	err := db.Pool.QueryRow(ctx, `SELECT to_regclass('risk.metrics_snapshots') IS NOT NULL`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSchema(t *testing.T) {
	schema := Schema()
	for _, table := range []string{
		"portfolio.portfolios",
		"portfolio.positions",
		"portfolio.value_history",
		"risk.metrics_snapshots",
		"risk.limits",
	} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestNewWithInvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             "invalid://url",
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	}

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	db := openTestDB(t)

	// Double close should not panic
	assert.NotPanics(t, func() {
		db.Close()
		db.Close()
	})
}

func TestQueryLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&config.Config{Env: "test", LogLevel: "debug", LogFormat: "json"}, &buf)

	NewQueryLogger(log).Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{
		"sql":  "SELECT 1",
		"args": []any{"secret"},
	})

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"component":"database"`)
	assert.Contains(t, out, "SELECT 1")
	assert.NotContains(t, out, "secret")
}

func TestTraceLevel(t *testing.T) {
	assert.Equal(t, tracelog.LogLevelDebug, traceLevel("DEBUG"))
	assert.Equal(t, tracelog.LogLevelError, traceLevel("info"))
}
