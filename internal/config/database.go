package config

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// DatabaseConfig PostgreSQL数据库连接配置
// 支持环境变量配置，适用于容器化部署
type DatabaseConfig struct {
	// 数据库连接基础配置
	Host     string `env:"DB_HOST" json:"host"`
	Port     int    `env:"DB_PORT" json:"port"`
	User     string `env:"DB_USER" json:"user"`
	Password string `env:"DB_PASSWORD" json:"-"` // 不输出到JSON
	Database string `env:"DB_NAME" json:"database"`

	// SSL连接配置
	SSLMode     string `env:"DB_SSL_MODE" json:"ssl_mode"` // disable, require, verify-ca, verify-full
	SSLRootCert string `env:"DB_SSL_ROOT_CERT" json:"ssl_root_cert,omitempty"`

	// 连接池配置
	// 每个会话独占一个连接，MaxConns即并发会话上限
	MaxConns          int32         `env:"DB_MAX_CONNS" json:"max_conns"`
	MinConns          int32         `env:"DB_MIN_CONNS" json:"min_conns"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" json:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE" json:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" json:"health_check_period"`

	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" json:"connect_timeout"`
	// 服务端statement_timeout，0表示不设置
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" json:"statement_timeout"`
	// 单次查询返回的最大行数
	MaxRows int `env:"DB_MAX_ROWS" json:"max_rows"`

	LogLevel string `env:"DB_LOG_LEVEL" json:"log_level"` // trace, debug, info, warn, error, none

	ApplicationName string `env:"DB_APPLICATION_NAME" json:"application_name"`
	SearchPath      string `env:"DB_SEARCH_PATH" json:"search_path"`
}

// GetConnectionString 构建PostgreSQL连接字符串
func (c *DatabaseConfig) GetConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s search_path=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.ApplicationName, c.SearchPath,
	)

	if c.SSLRootCert != "" {
		connStr += fmt.Sprintf(" sslrootcert=%s", c.SSLRootCert)
	}

	connStr += fmt.Sprintf(" connect_timeout=%d", int(c.ConnectTimeout.Seconds()))

	return connStr
}

// Validate 验证数据库配置的有效性
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("数据库主机地址不能为空")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("数据库端口必须在1-65535范围内")
	}
	if c.User == "" {
		return fmt.Errorf("数据库用户名不能为空")
	}
	if c.Database == "" {
		return fmt.Errorf("数据库名称不能为空")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("最大连接数必须大于0")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("最小连接数不能小于0")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("最小连接数不能大于最大连接数")
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("最大返回行数必须大于0")
	}
	if c.StatementTimeout < 0 {
		return fmt.Errorf("语句超时不能为负数")
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.SSLMode) {
		return fmt.Errorf("无效的SSL模式: %s", c.SSLMode)
	}

	return nil
}

// GetPoolConfig 获取pgxpool连接池配置
// logger非空时通过tracelog把查询日志输出到zap
func (c *DatabaseConfig) GetPoolConfig(logger *zap.Logger) (*pgxpool.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("数据库配置验证失败: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("解析数据库连接字符串失败: %w", err)
	}

	config.MaxConns = c.MaxConns
	config.MinConns = c.MinConns
	config.MaxConnLifetime = c.MaxConnLifetime
	config.MaxConnIdleTime = c.MaxConnIdleTime
	config.HealthCheckPeriod = c.HealthCheckPeriod

	if c.StatementTimeout > 0 {
		config.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10)
	}

	if logger != nil {
		pgxLogger := NewPgxZapLogger(logger.Named("pgx"), c.LogLevel)
		config.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   pgxLogger,
			LogLevel: pgxLogger.GetLogLevel(),
		}
	}

	return config, nil
}

// DefaultDatabaseConfig 返回默认的数据库配置
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Database: "cibmtr",
		SSLMode:  "prefer",

		MaxConns:          50,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: 5 * time.Minute,

		ConnectTimeout:   30 * time.Second,
		StatementTimeout: 0,
		MaxRows:          10000,

		LogLevel: "warn",

		ApplicationName: "cohort2sql",
		SearchPath:      "omop_cdm,public",
	}
}

// LoadDatabaseConfigFromEnv 从环境变量加载数据库配置
func LoadDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	c := DefaultDatabaseConfig()
	var err error

	c.Host = envString("DB_HOST", c.Host)
	c.User = envString("DB_USER", c.User)
	c.Password = envString("DB_PASSWORD", c.Password)
	c.Database = envString("DB_NAME", c.Database)
	c.SSLMode = envString("DB_SSL_MODE", c.SSLMode)
	c.SSLRootCert = envString("DB_SSL_ROOT_CERT", c.SSLRootCert)
	c.LogLevel = envString("DB_LOG_LEVEL", c.LogLevel)
	c.ApplicationName = envString("DB_APPLICATION_NAME", c.ApplicationName)
	c.SearchPath = envString("DB_SEARCH_PATH", c.SearchPath)

	if c.Port, err = envInt("DB_PORT", c.Port); err != nil {
		return nil, err
	}
	if c.MaxRows, err = envInt("DB_MAX_ROWS", c.MaxRows); err != nil {
		return nil, err
	}
	maxConns, err := envInt("DB_MAX_CONNS", int(c.MaxConns))
	if err != nil {
		return nil, err
	}
	c.MaxConns = int32(maxConns)
	minConns, err := envInt("DB_MIN_CONNS", int(c.MinConns))
	if err != nil {
		return nil, err
	}
	c.MinConns = int32(minConns)

	if c.MaxConnLifetime, err = envDuration("DB_MAX_CONN_LIFETIME", c.MaxConnLifetime); err != nil {
		return nil, err
	}
	if c.MaxConnIdleTime, err = envDuration("DB_MAX_CONN_IDLE", c.MaxConnIdleTime); err != nil {
		return nil, err
	}
	if c.HealthCheckPeriod, err = envDuration("DB_HEALTH_CHECK_PERIOD", c.HealthCheckPeriod); err != nil {
		return nil, err
	}
	if c.ConnectTimeout, err = envDuration("DB_CONNECT_TIMEOUT", c.ConnectTimeout); err != nil {
		return nil, err
	}
	if c.StatementTimeout, err = envDuration("DB_STATEMENT_TIMEOUT", c.StatementTimeout); err != nil {
		return nil, err
	}

	return c, nil
}
