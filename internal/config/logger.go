package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() *LogConfig {
	return &LogConfig{Level: "info"}
}

// LoadLogConfigFromEnv 从环境变量加载日志配置
func LoadLogConfigFromEnv() (*LogConfig, error) {
	c := DefaultLogConfig()
	var err error
	c.Level = envString("LOG_LEVEL", c.Level)
	if c.Development, err = envBool("LOG_DEVELOPMENT", c.Development); err != nil {
		return nil, err
	}
	return c, nil
}

// NewLogger 根据日志配置创建zap日志器
// 生产模式输出JSON，开发模式输出可读文本
func NewLogger(c *LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	var zc zap.Config
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
