// Package session 维护单个用户会话的对话状态、访问角色和看板视图。
package session

import (
	"time"

	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/shaping"
)

// Role 轮次角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source 问题来源，两种来源走同一条提交路径
type Source string

const (
	SourceFreeText Source = "free_text"
	SourceExample  Source = "example"
)

// State 控制器状态
type State string

const (
	StateIdle             State = "idle"
	StatePendingSubmitted State = "pending_submitted"
	StateGenerating       State = "generating"
	StateExecuting        State = "executing"
	StateRendering        State = "rendering"
)

// TurnError 轮次中记录的错误
type TurnError struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// Turn 一次问或答，创建后不再修改
type Turn struct {
	ID        string                  `json:"id"`
	Role      Role                    `json:"role"`
	Content   string                  `json:"content"`
	Query     string                  `json:"query,omitempty"`
	Result    *database.ResultSet     `json:"result,omitempty"`
	Chart     *shaping.ChartSelection `json:"chart,omitempty"`
	Error     *TurnError              `json:"error,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// Failed 是否为失败的回答
func (t Turn) Failed() bool {
	return t.Error != nil
}

// PendingQuestion 已接受但尚未处理的问题
type PendingQuestion struct {
	Text       string    `json:"text"`
	Source     Source    `json:"source"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Snapshot 对话状态的副本
type Snapshot struct {
	State   State            `json:"state"`
	Turns   []Turn           `json:"turns"`
	Pending *PendingQuestion `json:"pending,omitempty"`
}
