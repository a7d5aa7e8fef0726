package config

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// 支持的补全服务提供方
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// AIConfig 补全服务配置
// 每次生成只调用一次模型，没有备用模型和重试
type AIConfig struct {
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	APIKey      string        `json:"-"`
	BaseURL     string        `json:"base_url,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	// 提示词中携带的最近对话条数
	HistoryWindow int `json:"history_window"`
}

// DefaultAIConfig 创建默认AI配置
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		Provider:      ProviderOpenAI,
		Model:         "gpt-4o-mini",
		Temperature:   0,
		MaxTokens:     1024,
		Timeout:       60 * time.Second,
		HistoryWindow: 6,
	}
}

// LoadAIConfigFromEnv 从环境变量加载AI配置
func LoadAIConfigFromEnv() (*AIConfig, error) {
	c := DefaultAIConfig()
	var err error

	c.Provider = envString("LLM_PROVIDER", c.Provider)
	c.BaseURL = envString("LLM_BASE_URL", c.BaseURL)

	switch c.Provider {
	case ProviderAnthropic:
		c.Model = "claude-3-5-haiku-latest"
		c.APIKey = envString("ANTHROPIC_API_KEY", "")
	case ProviderOllama:
		c.Model = "llama3.1"
	default:
		c.APIKey = envString("OPENAI_API_KEY", "")
	}
	c.Model = envString("LLM_MODEL", c.Model)

	if c.Temperature, err = envFloat("LLM_TEMPERATURE", c.Temperature); err != nil {
		return nil, err
	}
	if c.MaxTokens, err = envInt("LLM_MAX_TOKENS", c.MaxTokens); err != nil {
		return nil, err
	}
	if c.Timeout, err = envDuration("LLM_TIMEOUT", c.Timeout); err != nil {
		return nil, err
	}
	if c.HistoryWindow, err = envInt("SESSION_HISTORY_WINDOW", c.HistoryWindow); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate 验证AI配置的有效性
func (c *AIConfig) Validate() error {
	if !slices.Contains([]string{ProviderOpenAI, ProviderAnthropic, ProviderOllama}, c.Provider) {
		return fmt.Errorf("unsupported llm provider: %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Provider != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("api key is required for provider %s", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got: %.2f", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got: %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", c.Timeout)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history_window cannot be negative, got: %d", c.HistoryWindow)
	}
	return nil
}

// LogConfig 记录AI配置信息（不包含敏感信息）
func (c *AIConfig) LogConfig(logger *zap.Logger) {
	logger.Info("AI服务配置",
		zap.String("provider", c.Provider),
		zap.String("model", c.Model),
		zap.String("base_url", c.BaseURL),
		zap.Float64("temperature", c.Temperature),
		zap.Int("max_tokens", c.MaxTokens),
		zap.Duration("timeout", c.Timeout),
		zap.Int("history_window", c.HistoryWindow),
	)
}
