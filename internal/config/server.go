package config

import (
	"fmt"
	"time"
)

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr            string        `json:"addr"`
	Mode            string        `json:"mode"` // gin模式：debug, release, test
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"` // 生成与执行都是阻塞调用，写超时需要覆盖两者
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	RateLimit       float64       `json:"rate_limit"` // 每个客户端每秒请求数
	RateBurst       int           `json:"rate_burst"`
}

// DefaultServerConfig 返回默认的HTTP服务配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:            ":8080",
		Mode:            "release",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       5,
		RateBurst:       20,
	}
}

// LoadServerConfigFromEnv 从环境变量加载HTTP服务配置
func LoadServerConfigFromEnv() (*ServerConfig, error) {
	c := DefaultServerConfig()
	var err error

	c.Addr = envString("SERVER_ADDR", c.Addr)
	c.Mode = envString("GIN_MODE", c.Mode)
	if c.ReadTimeout, err = envDuration("SERVER_READ_TIMEOUT", c.ReadTimeout); err != nil {
		return nil, err
	}
	if c.WriteTimeout, err = envDuration("SERVER_WRITE_TIMEOUT", c.WriteTimeout); err != nil {
		return nil, err
	}
	if c.IdleTimeout, err = envDuration("SERVER_IDLE_TIMEOUT", c.IdleTimeout); err != nil {
		return nil, err
	}
	if c.ShutdownTimeout, err = envDuration("SERVER_SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return nil, err
	}
	if c.RateLimit, err = envFloat("RATE_LIMIT_RPS", c.RateLimit); err != nil {
		return nil, err
	}
	if c.RateBurst, err = envInt("RATE_LIMIT_BURST", c.RateBurst); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 验证HTTP服务配置
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode: %s", c.Mode)
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit and burst must be positive")
	}
	return nil
}
