package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cohort2sql-go/internal/middleware"
	"cohort2sql-go/internal/persona"
	"cohort2sql-go/internal/session"
)

// ErrorResponse 统一错误响应结构
type ErrorResponse struct {
	Code      string `json:"code" example:"SESSION_NOT_FOUND"`
	Message   string `json:"message" example:"会话不存在或已过期"`
	Details   string `json:"details,omitempty" example:"session not found: 7f3c"`
	Timestamp string `json:"timestamp" example:"2026-01-08T12:00:00Z"`
	RequestID string `json:"request_id,omitempty" example:"0d9f2c4e-7b1a-4d0e-9a55-2f4b8c1e6a70"`
}

// NewErrorResponse 创建标准错误响应
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// WithDetails 附加错误详情
func (e *ErrorResponse) WithDetails(details string) *ErrorResponse {
	e.Details = details
	return e
}

// respondError 写入错误响应并带上请求ID
func respondError(c *gin.Context, status int, resp *ErrorResponse) {
	resp.RequestID = middleware.GetRequestID(c)
	c.AbortWithStatusJSON(status, resp)
}

// errorMapping 会话层错误与HTTP状态码的对应关系
var errorMapping = []struct {
	target  error
	status  int
	code    string
	message string
}{
	{session.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND", "会话不存在或已过期"},
	{session.ErrQuestionPending, http.StatusConflict, "QUESTION_PENDING", "上一个问题仍在处理中"},
	{session.ErrEmptyQuestion, http.StatusBadRequest, "EMPTY_QUESTION", "问题不能为空"},
	{session.ErrExampleIndex, http.StatusBadRequest, "INVALID_EXAMPLE_INDEX", "示例问题不存在"},
	{persona.ErrUnknownPersona, http.StatusBadRequest, "UNKNOWN_PERSONA", "未知的访问角色"},
	{session.ErrTooManySessions, http.StatusServiceUnavailable, "TOO_MANY_SESSIONS", "活跃会话数已达上限"},
}

// respondSessionError 把会话层错误转换为HTTP错误响应
func respondSessionError(c *gin.Context, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			respondError(c, m.status, NewErrorResponse(m.code, m.message).WithDetails(err.Error()))
			return
		}
	}
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, NewErrorResponse("INTERNAL_ERROR", "服务器内部错误"))
}
