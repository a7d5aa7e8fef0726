package config

import (
	"fmt"
	"time"
)

// 角色切换策略
const (
	// RoleSwitchOptimistic 无论数据库是否接受SET ROLE都更新会话访问级别
	RoleSwitchOptimistic = "optimistic"
	// RoleSwitchConfirmed 仅在数据库确认后才更新会话访问级别
	RoleSwitchConfirmed = "confirmed"
)

// CacheConfig 看板只读查询缓存配置
type CacheConfig struct {
	TTL      time.Duration `json:"ttl"`
	Capacity uint64        `json:"capacity"` // 0表示不限制
}

// SessionConfig 会话配置
type SessionConfig struct {
	IdleTTL          time.Duration `json:"idle_ttl"`
	MaxSessions      uint64        `json:"max_sessions"`
	RoleSwitchPolicy string        `json:"role_switch_policy"`
	DefaultPersona   string        `json:"default_persona"`
	// 为空时使用看板中的患者样本查询
	MaskingProbeQuery string `json:"masking_probe_query,omitempty"`
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		TTL:      600 * time.Second,
		Capacity: 256,
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		IdleTTL:          30 * time.Minute,
		MaxSessions:      40,
		RoleSwitchPolicy: RoleSwitchOptimistic,
		DefaultPersona:   "CLINICAL_RESEARCHER",
	}
}

// LoadCacheConfigFromEnv 从环境变量加载缓存配置
func LoadCacheConfigFromEnv() (*CacheConfig, error) {
	c := DefaultCacheConfig()
	var err error
	if c.TTL, err = envDuration("CACHE_TTL", c.TTL); err != nil {
		return nil, err
	}
	capacity, err := envInt("CACHE_CAPACITY", int(c.Capacity))
	if err != nil {
		return nil, err
	}
	if capacity < 0 {
		return nil, fmt.Errorf("CACHE_CAPACITY cannot be negative")
	}
	c.Capacity = uint64(capacity)
	return c, nil
}

// LoadSessionConfigFromEnv 从环境变量加载会话配置
func LoadSessionConfigFromEnv() (*SessionConfig, error) {
	c := DefaultSessionConfig()
	var err error
	if c.IdleTTL, err = envDuration("SESSION_IDLE_TTL", c.IdleTTL); err != nil {
		return nil, err
	}
	maxSessions, err := envInt("SESSION_MAX", int(c.MaxSessions))
	if err != nil {
		return nil, err
	}
	if maxSessions < 0 {
		return nil, fmt.Errorf("SESSION_MAX cannot be negative")
	}
	c.MaxSessions = uint64(maxSessions)
	c.RoleSwitchPolicy = envString("ROLE_SWITCH_POLICY", c.RoleSwitchPolicy)
	c.DefaultPersona = envString("PERSONA_DEFAULT", c.DefaultPersona)
	c.MaskingProbeQuery = envString("MASKING_PROBE_QUERY", c.MaskingProbeQuery)
	return c, nil
}

// Validate 验证缓存配置
func (c *CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got: %v", c.TTL)
	}
	return nil
}

// Validate 验证会话配置
func (c *SessionConfig) Validate() error {
	if c.IdleTTL <= 0 {
		return fmt.Errorf("session idle ttl must be positive, got: %v", c.IdleTTL)
	}
	if c.RoleSwitchPolicy != RoleSwitchOptimistic && c.RoleSwitchPolicy != RoleSwitchConfirmed {
		return fmt.Errorf("invalid role switch policy: %s", c.RoleSwitchPolicy)
	}
	if c.DefaultPersona == "" {
		return fmt.Errorf("default persona cannot be empty")
	}
	return nil
}
