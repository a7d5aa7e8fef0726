package config

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// 记录到日志中的SQL最大长度
const maxLoggedSQL = 512

// PgxZapLogger pgx和zap的适配器
// 将pgx的查询跟踪日志重定向到zap日志系统
type PgxZapLogger struct {
	logger *zap.Logger
	level  tracelog.LogLevel
}

// NewPgxZapLogger 创建新的PGX Zap日志适配器
func NewPgxZapLogger(logger *zap.Logger, level string) *PgxZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PgxZapLogger{
		logger: logger,
		level:  parsePgxLogLevel(level),
	}
}

// Log 实现tracelog.Logger接口
func (l *PgxZapLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	// tracelog中数值越大越详细
	if l.level == tracelog.LogLevelNone || level > l.level {
		return
	}

	fields := make([]zap.Field, 0, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if key == "sql" && len(v) > maxLoggedSQL {
				v = v[:maxLoggedSQL] + "..."
			}
			fields = append(fields, zap.String(key, v))
		case time.Duration:
			fields = append(fields, zap.Duration(key, v))
		case int:
			fields = append(fields, zap.Int(key, v))
		case int64:
			fields = append(fields, zap.Int64(key, v))
		case uint32:
			fields = append(fields, zap.Uint32(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		case error:
			fields = append(fields, zap.Error(v))
		default:
			if key == "args" {
				continue
			}
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		l.logger.Debug(msg, fields...)
	case tracelog.LogLevelInfo:
		l.logger.Info(msg, fields...)
	case tracelog.LogLevelWarn:
		l.logger.Warn(msg, fields...)
	case tracelog.LogLevelError:
		l.logger.Error(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}
}

func parsePgxLogLevel(level string) tracelog.LogLevel {
	parsed, err := tracelog.LogLevelFromString(level)
	if err != nil {
		return tracelog.LogLevelWarn
	}
	return parsed
}

// GetLogLevel 获取当前日志级别
func (l *PgxZapLogger) GetLogLevel() tracelog.LogLevel {
	return l.level
}
