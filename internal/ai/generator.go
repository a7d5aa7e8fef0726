package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/config"
)

// ErrEmptyCompletion 补全服务返回的内容去掉代码块标记后为空
var ErrEmptyCompletion = errors.New("completion service returned an empty query")

// Request 生成请求
type Request struct {
	Question string
	History  []Message
}

// Generation 生成结果
type Generation struct {
	Query    string        `json:"query"`
	Text     string        `json:"text"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
}

// Generator 调用补全服务生成候选查询
type Generator struct {
	model       llms.Model
	builder     *PromptBuilder
	modelName   string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewGenerator 创建查询生成器
func NewGenerator(model llms.Model, builder *PromptBuilder, cfg *config.AIConfig, logger *zap.Logger) *Generator {
	if cfg == nil {
		cfg = config.DefaultAIConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		model:       model,
		builder:     builder,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Generate 构建提示词并调用一次补全服务，失败时不重试。
// 返回的查询只保证非空且不含代码块标记，语法由执行阶段检查
func (g *Generator) Generate(ctx context.Context, req Request) (*Generation, error) {
	prompt, err := g.builder.Build(req.Question, req.History)
	if err != nil {
		return nil, apperrors.Generation(err)
	}

	start := time.Now()
	raw, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	duration := time.Since(start)
	if err != nil {
		g.logger.Warn("completion call failed",
			zap.String("model", g.modelName),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, apperrors.Generation(err)
	}

	query := StripCodeFences(raw)
	if query == "" {
		g.logger.Warn("completion returned no query",
			zap.String("model", g.modelName),
			zap.Int("raw_length", len(raw)))
		return nil, apperrors.Generation(ErrEmptyCompletion)
	}

	g.logger.Debug("query generated",
		zap.String("model", g.modelName),
		zap.Duration("duration", duration),
		zap.Int("history", len(req.History)))

	return &Generation{
		Query:    query,
		Text:     AnswerText(req.Question),
		Model:    g.modelName,
		Duration: duration,
	}, nil
}

// AnswerText 助手回复的正文
func AnswerText(question string) string {
	return "Here are the results for: " + strings.TrimSpace(question)
}
