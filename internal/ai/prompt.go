// Package ai 将自然语言问题转换为可执行的PostgreSQL查询。
// 提示词基于LangChainGo的Go模板构建，每次生成只调用一次补全服务。
package ai

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"cohort2sql-go/internal/catalog"
)

// 消息角色，与会话中的轮次角色一致
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 提示词中携带的一条历史消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// sqlGenerationPrompt 问题与历史内容都以单引号字面量嵌入，调用前必须经过 EscapeLiteral
const sqlGenerationPrompt = `You are a PostgreSQL expert working with the CIBMTR transplant research dataset.
Convert the user's question into a single runnable PostgreSQL query.

{{.schema}}
{{- if .history}}

Recent conversation (oldest first):
{{- range .history}}
- {{.Role}}: '{{.Content}}'
{{- end}}
{{- end}}

Convert this question to SQL: '{{.question}}'

Return ONLY valid SQL, no explanation. Use fully qualified table names (schema.table).`

// PromptBuilder 根据目录和问题构建确定性的提示词
type PromptBuilder struct {
	template      prompts.PromptTemplate
	schema        string
	historyWindow int
}

// NewPromptBuilder 创建提示词构建器，schema在创建时序列化一次
func NewPromptBuilder(cat *catalog.Catalog, historyWindow int) *PromptBuilder {
	if historyWindow < 0 {
		historyWindow = 0
	}
	return &PromptBuilder{
		template:      prompts.NewPromptTemplate(sqlGenerationPrompt, []string{"schema", "history", "question"}),
		schema:        cat.Serialize(),
		historyWindow: historyWindow,
	}
}

// Build 生成提示词。历史消息只保留最近 historyWindow 条
func (b *PromptBuilder) Build(question string, history []Message) (string, error) {
	window := b.recent(history)
	escaped := make([]Message, 0, len(window))
	for _, m := range window {
		escaped = append(escaped, Message{
			Role:    m.Role,
			Content: EscapeLiteral(collapseWhitespace(m.Content)),
		})
	}

	prompt, err := b.template.Format(map[string]any{
		"schema":   strings.TrimRight(b.schema, "\n"),
		"history":  escaped,
		"question": EscapeLiteral(strings.TrimSpace(question)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render sql prompt: %w", err)
	}
	return prompt, nil
}

// HistoryWindow 返回携带的历史消息上限
func (b *PromptBuilder) HistoryWindow() int {
	return b.historyWindow
}

func (b *PromptBuilder) recent(history []Message) []Message {
	if b.historyWindow == 0 || len(history) == 0 {
		return nil
	}
	if len(history) > b.historyWindow {
		return history[len(history)-b.historyWindow:]
	}
	return history
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `''`)

// EscapeLiteral 转义单引号和反斜杠，使文本可以安全地放入单引号字面量
func EscapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

// 历史中的多行SQL压成一行，避免打乱列表结构
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
