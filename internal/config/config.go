package config

import (
	"fmt"
)

// Config 应用整体配置
type Config struct {
	Server   *ServerConfig
	Database *DatabaseConfig
	AI       *AIConfig
	Cache    *CacheConfig
	Session  *SessionConfig
	Log      *LogConfig
}

// Load 加载.env文件后从环境变量构建完整配置
func Load(envFiles ...string) (*Config, error) {
	if err := LoadEnv(envFiles...); err != nil {
		return nil, err
	}

	var (
		c   Config
		err error
	)
	if c.Server, err = LoadServerConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	if c.Database, err = LoadDatabaseConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}
	if c.AI, err = LoadAIConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("ai config: %w", err)
	}
	if c.Cache, err = LoadCacheConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("cache config: %w", err)
	}
	if c.Session, err = LoadSessionConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	if c.Log, err = LoadLogConfigFromEnv(); err != nil {
		return nil, fmt.Errorf("log config: %w", err)
	}
	return &c, nil
}

// Validate 验证所有配置段
func (c *Config) Validate() error {
	validators := []struct {
		name     string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"database", c.Database.Validate},
		{"ai", c.AI.Validate},
		{"cache", c.Cache.Validate},
		{"session", c.Session.Validate},
	}
	for _, v := range validators {
		if err := v.validate(); err != nil {
			return fmt.Errorf("%s config invalid: %w", v.name, err)
		}
	}
	return nil
}
