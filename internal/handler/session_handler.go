package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cohort2sql-go/internal/dashboard"
	"cohort2sql-go/internal/session"
)

// SessionRegistry 会话注册表，由 session.Manager 实现
type SessionRegistry interface {
	Create(ctx context.Context) (*session.Session, string, error)
	Get(id string) (*session.Session, error)
	Close(id string) error
}

// SessionHandler 会话处理器
// 处理会话创建、提问、角色切换和看板视图
type SessionHandler struct {
	sessions SessionRegistry
	logger   *zap.Logger
}

// NewSessionHandler 创建会话处理器实例
func NewSessionHandler(sessions SessionRegistry, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// SessionResponse 会话状态
type SessionResponse struct {
	ID           string           `json:"id" example:"0d9f2c4e-7b1a-4d0e-9a55-2f4b8c1e6a70"`
	CreatedAt    time.Time        `json:"created_at"`
	Access       session.Access   `json:"access"`
	Conversation session.Snapshot `json:"conversation"`
	// Notice 初始角色未能应用时的提示
	Notice string `json:"notice,omitempty"`
}

// AskRequest 提问请求
type AskRequest struct {
	Question string `json:"question" binding:"max=2000" example:"What is the survival rate by conditioning intensity?"`
}

// AskResponse 提问结果
type AskResponse struct {
	Turn   *session.Turn  `json:"turn"`
	Access session.Access `json:"access"`
}

// SwitchPersonaRequest 角色切换请求
type SwitchPersonaRequest struct {
	Persona string `json:"persona" binding:"required" example:"DATA_ENGINEER"`
}

func newSessionResponse(s *session.Session) *SessionResponse {
	return &SessionResponse{
		ID:           s.ID(),
		CreatedAt:    s.CreatedAt(),
		Access:       s.Access(),
		Conversation: s.Controller().Snapshot(),
	}
}

// CreateSession 创建会话
// @Summary 创建会话
// @Description 获取专用数据库连接，应用默认角色并生成第一份看板视图
// @Tags 会话
// @Produce json
// @Success 201 {object} SessionResponse "创建成功"
// @Failure 503 {object} ErrorResponse "会话数已达上限"
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	s, notice, err := h.sessions.Create(detach(c))
	if err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		respondSessionError(c, err)
		return
	}

	resp := newSessionResponse(s)
	resp.Notice = notice
	c.JSON(http.StatusCreated, resp)
}

// GetSession 获取会话状态
// @Summary 获取会话状态
// @Tags 会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} ErrorResponse "会话不存在"
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(s))
}

// CloseSession 关闭会话并归还连接
// @Summary 关闭会话
// @Tags 会话
// @Param id path string true "会话ID"
// @Success 204 "已关闭"
// @Failure 404 {object} ErrorResponse "会话不存在"
// @Router /api/v1/sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AskQuestion 提交自由输入的问题
// @Summary 提问
// @Description 生成查询并在会话连接上执行，失败也会返回一个助手轮次
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body AskRequest true "问题"
// @Success 200 {object} AskResponse
// @Failure 400 {object} ErrorResponse "问题为空"
// @Failure 404 {object} ErrorResponse "会话不存在"
// @Failure 409 {object} ErrorResponse "已有问题在处理"
// @Router /api/v1/sessions/{id}/questions [post]
func (h *SessionHandler) AskQuestion(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, NewErrorResponse("INVALID_REQUEST", "请求参数格式错误").WithDetails(err.Error()))
		return
	}

	s, ok := h.lookup(c)
	if !ok {
		return
	}

	turn, err := s.Ask(detach(c), req.Question, session.SourceFreeText)
	if err != nil {
		respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, &AskResponse{Turn: turn, Access: s.Access()})
}

// AskExample 提交示例问题
// @Summary 提交示例问题
// @Tags 会话
// @Produce json
// @Param id path string true "会话ID"
// @Param index path int true "示例下标，从0开始"
// @Success 200 {object} AskResponse
// @Failure 400 {object} ErrorResponse "示例不存在"
// @Failure 409 {object} ErrorResponse "已有问题在处理"
// @Router /api/v1/sessions/{id}/examples/{index} [post]
func (h *SessionHandler) AskExample(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, http.StatusBadRequest, NewErrorResponse("INVALID_EXAMPLE_INDEX", "示例问题不存在").WithDetails(err.Error()))
		return
	}

	s, ok := h.lookup(c)
	if !ok {
		return
	}

	turn, err := s.AskExample(detach(c), index)
	if err != nil {
		respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, &AskResponse{Turn: turn, Access: s.Access()})
}

// SwitchPersona 切换访问角色
// @Summary 切换访问角色
// @Description 角色命令失败时返回200并在notice中给出提示
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body SwitchPersonaRequest true "目标角色"
// @Success 200 {object} session.SwitchResult
// @Failure 400 {object} ErrorResponse "未知角色"
// @Router /api/v1/sessions/{id}/persona [put]
func (h *SessionHandler) SwitchPersona(c *gin.Context) {
	var req SwitchPersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, NewErrorResponse("INVALID_REQUEST", "请求参数格式错误").WithDetails(err.Error()))
		return
	}

	s, ok := h.lookup(c)
	if !ok {
		return
	}

	result, err := s.SwitchPersona(detach(c), req.Persona)
	if err != nil {
		respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetView 返回最近一次刷新的看板视图
// @Summary 看板视图
// @Tags 会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} dashboard.View
// @Router /api/v1/sessions/{id}/view [get]
func (h *SessionHandler) GetView(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	h.writeView(c, s.View())
}

// RefreshView 强制重新加载看板视图
// @Summary 刷新看板视图
// @Tags 会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} dashboard.View
// @Router /api/v1/sessions/{id}/view/refresh [post]
func (h *SessionHandler) RefreshView(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	view, err := s.Reload(detach(c))
	if err != nil {
		respondSessionError(c, err)
		return
	}
	h.writeView(c, view)
}

func (h *SessionHandler) writeView(c *gin.Context, view *dashboard.View) {
	if view == nil {
		view = &dashboard.View{Panels: []dashboard.PanelResult{}}
	}
	c.JSON(http.StatusOK, view)
}

// detach 会话操作一旦开始就执行到结束，客户端断开不取消生成和查询。
// 取消进行中的查询会关闭会话独占的连接
func detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// lookup 按路径参数查找会话，不存在时已写入404
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondSessionError(c, err)
		return nil, false
	}
	return s, true
}
