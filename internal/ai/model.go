package ai

import (
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"cohort2sql-go/internal/config"
)

// NewModel 按配置创建补全服务客户端
func NewModel(cfg *config.AIConfig) (llms.Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ai config cannot be nil")
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return createOpenAIClient(cfg, httpClient)
	case config.ProviderAnthropic:
		return createAnthropicClient(cfg, httpClient)
	case config.ProviderOllama:
		return createOllamaClient(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// createOpenAIClient 创建OpenAI客户端，BaseURL可指向兼容OpenAI协议的服务
func createOpenAIClient(cfg *config.AIConfig, httpClient *http.Client) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

// createAnthropicClient 创建Anthropic客户端
func createAnthropicClient(cfg *config.AIConfig, httpClient *http.Client) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
		anthropic.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.New(opts...)
}

// createOllamaClient 创建Ollama客户端
func createOllamaClient(cfg *config.AIConfig, httpClient *http.Client) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}
