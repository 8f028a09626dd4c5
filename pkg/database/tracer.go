package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"github.com/wonny/aegis-risk/pkg/logger"
)

// QueryLogger adapts the zerolog wrapper to pgx tracelog
type QueryLogger struct {
	zlog zerolog.Logger
}

// NewQueryLogger creates a pgx query logger tagged component=database
func NewQueryLogger(log *logger.Logger) *QueryLogger {
	return &QueryLogger{zlog: log.Component("database").Zerolog()}
}

// Log implements tracelog.Logger
func (q *QueryLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var ev *zerolog.Event
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		ev = q.zlog.Debug()
	case tracelog.LogLevelInfo:
		ev = q.zlog.Info()
	case tracelog.LogLevelWarn:
		ev = q.zlog.Warn()
	default:
		ev = q.zlog.Error()
	}

	// 쿼리 인자는 기록하지 않음
	for k, v := range data {
		if k == "args" {
			continue
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg("pgx: " + msg)
}

// traceLevel pgx 추적 레벨 (debug가 아니면 실패한 쿼리만)
func traceLevel(logLevel string) tracelog.LogLevel {
	if strings.EqualFold(logLevel, "debug") {
		return tracelog.LogLevelDebug
	}
	return tracelog.LogLevelError
}
