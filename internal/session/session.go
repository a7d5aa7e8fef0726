package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/dashboard"
	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/persona"
)

// Executor 会话专用连接上的查询和角色命令
type Executor interface {
	QueryRunner
	SetRole(ctx context.Context, role string) error
}

// Access 会话当前的访问角色，只由角色切换修改
type Access struct {
	Persona persona.Profile `json:"persona"`
	// RoleConfirmed 数据库是否接受了最近一次SET ROLE
	RoleConfirmed bool `json:"role_confirmed"`
	// MaskedColumns 最近一次探测发现的脱敏列
	MaskedColumns []string `json:"masked_columns"`
	// MaskingVerified 探测结果与角色的访问级别一致
	MaskingVerified bool      `json:"masking_verified"`
	MaskingNote     string    `json:"masking_note,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SwitchResult 角色切换结果
type SwitchResult struct {
	Previous persona.ID `json:"previous"`
	Access   Access     `json:"access"`
	Changed  bool       `json:"changed"`
	// Notice 角色命令失败时展示给用户的提示
	Notice string `json:"notice,omitempty"`
	Err    error  `json:"-"`
}

// Options 会话依赖
type Options struct {
	Generator QueryGenerator
	Dashboard *dashboard.Service
	Persona   persona.Profile
	// RoleSwitchPolicy 为 config.RoleSwitchOptimistic 或 config.RoleSwitchConfirmed
	RoleSwitchPolicy string
	ProbeQuery       string
	Observer         Observer
	Logger           *zap.Logger
}

// Session 一个用户会话的全部状态，会话之间不共享
type Session struct {
	id        string
	createdAt time.Time

	// action 保证同一时间只处理一个用户操作
	action sync.Mutex

	mu     sync.RWMutex
	access Access
	view   *dashboard.View

	controller *Controller
	executor   Executor
	release    func()
	closeOnce  sync.Once
	// closed 在持有action时置位，之后连接已归还，不能再使用
	closed atomic.Bool

	dashboard  *dashboard.Service
	policy     string
	probeQuery string
	observer   Observer
	logger     *zap.Logger
}

// New 创建会话，release在会话关闭时调用一次
func New(id string, executor Executor, release func(), opts Options) *Session {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Persona.ID == "" {
		opts.Persona = persona.Default()
	}
	if opts.RoleSwitchPolicy == "" {
		opts.RoleSwitchPolicy = config.RoleSwitchOptimistic
	}
	if opts.ProbeQuery == "" {
		opts.ProbeQuery = dashboard.PatientSampleQuery
	}
	if opts.Dashboard == nil {
		opts.Dashboard = dashboard.NewService(nil, opts.Logger)
	}

	s := &Session{
		id:         id,
		createdAt:  time.Now(),
		access:     Access{Persona: opts.Persona, UpdatedAt: time.Now()},
		executor:   executor,
		release:    release,
		dashboard:  opts.Dashboard,
		policy:     opts.RoleSwitchPolicy,
		probeQuery: opts.ProbeQuery,
		observer:   opts.Observer,
		logger:     opts.Logger.With(zap.String("session_id", id)),
	}
	s.controller = NewController(opts.Generator, executor, s, opts.Observer, s.logger)
	return s
}

// ID 会话标识
func (s *Session) ID() string {
	return s.id
}

// CreatedAt 创建时间
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Controller 对话控制器
func (s *Session) Controller() *Controller {
	return s.controller
}

// Access 返回当前访问角色的副本
func (s *Session) Access() Access {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.access
	a.MaskedColumns = append([]string(nil), s.access.MaskedColumns...)
	return a
}

// View 最近一次刷新的看板视图，尚未刷新时为nil
func (s *Session) View() *dashboard.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Start 在新连接上应用初始角色并生成第一份视图。
// 角色命令失败时返回提示文本，会话仍然可用
func (s *Session) Start(ctx context.Context) string {
	s.action.Lock()
	defer s.action.Unlock()
	if s.closed.Load() {
		return ""
	}

	s.mu.RLock()
	profile := s.access.Persona
	s.mu.RUnlock()

	var notice string
	err := s.executor.SetRole(ctx, profile.RoleName)
	if err != nil {
		notice = roleNotice(err)
		s.logger.Warn("initial role could not be applied",
			zap.String("persona", string(profile.ID)),
			zap.Error(err))
	}
	s.mu.Lock()
	s.access.RoleConfirmed = err == nil
	s.mu.Unlock()

	s.refresh(ctx)
	return notice
}

// Ask 提交并处理一个问题。已有问题在处理时立即返回 ErrQuestionPending
func (s *Session) Ask(ctx context.Context, text string, source Source) (*Turn, error) {
	if s.closed.Load() {
		return nil, ErrSessionNotFound
	}
	if err := s.controller.Submit(text, source); err != nil {
		return nil, err
	}
	s.action.Lock()
	defer s.action.Unlock()
	// 等待期间会话可能已被关闭或过期
	if s.closed.Load() {
		s.controller.Discard()
		return nil, ErrSessionNotFound
	}
	return s.controller.Process(ctx)
}

// AskExample 提交第i个示例问题
func (s *Session) AskExample(ctx context.Context, i int) (*Turn, error) {
	text, err := Example(i)
	if err != nil {
		return nil, err
	}
	return s.Ask(ctx, text, SourceExample)
}

// SwitchPersona 切换访问角色。
// 先发送SET ROLE，再更新访问角色，最后强制刷新整个视图。
// 乐观策略下即使命令失败也会更新访问角色；确认策略下失败时保持原角色且不刷新
func (s *Session) SwitchPersona(ctx context.Context, id string) (*SwitchResult, error) {
	profile, err := persona.Lookup(id)
	if err != nil {
		return nil, err
	}

	s.action.Lock()
	defer s.action.Unlock()
	if s.closed.Load() {
		return nil, ErrSessionNotFound
	}

	current := s.Access()
	result := &SwitchResult{Previous: current.Persona.ID}
	if current.Persona.ID == profile.ID {
		result.Access = current
		return result, nil
	}

	roleErr := s.executor.SetRole(ctx, profile.RoleName)
	s.observer.ObserveRoleSwitch(string(profile.ID), roleErr == nil)
	if roleErr != nil {
		result.Notice = roleNotice(roleErr)
		result.Err = roleErr
		s.logger.Warn("role switch failed",
			zap.String("from", string(current.Persona.ID)),
			zap.String("to", string(profile.ID)),
			zap.String("policy", s.policy),
			zap.Error(roleErr))

		if s.policy == config.RoleSwitchConfirmed {
			result.Access = current
			return result, nil
		}
	}

	s.mu.Lock()
	s.access.Persona = profile
	s.access.RoleConfirmed = roleErr == nil
	s.access.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.refresh(ctx)

	result.Changed = true
	result.Access = s.Access()
	s.logger.Info("persona switched",
		zap.String("from", string(current.Persona.ID)),
		zap.String("to", string(profile.ID)),
		zap.Bool("role_confirmed", roleErr == nil),
		zap.Strings("masked_columns", result.Access.MaskedColumns))
	return result, nil
}

// RefreshView 重新计算看板视图和脱敏探测。
// 在回答流程内部调用，调用方已持有操作锁
func (s *Session) RefreshView(ctx context.Context) {
	s.refresh(ctx)
}

// Reload 由展示层主动触发的刷新
func (s *Session) Reload(ctx context.Context) (*dashboard.View, error) {
	s.action.Lock()
	defer s.action.Unlock()
	if s.closed.Load() {
		return nil, ErrSessionNotFound
	}
	s.refresh(ctx)
	return s.View(), nil
}

func (s *Session) refresh(ctx context.Context) {
	view := s.dashboard.LoadAll(ctx, s.executor)
	masked, note, probed := s.probeMasking(ctx, view)

	s.mu.Lock()
	s.view = view
	s.access.MaskedColumns = masked
	s.access.MaskingNote = note
	s.access.MaskingVerified = probed && s.access.Persona.Masked() == (len(masked) > 0)
	s.mu.Unlock()

	s.observer.ObserveViewRefresh(view.Duration)
}

// probeMasking 优先复用视图中的患者样本面板，其余情况单独执行探测查询
func (s *Session) probeMasking(ctx context.Context, view *dashboard.View) ([]string, string, bool) {
	var rs *database.ResultSet
	if s.probeQuery == dashboard.PatientSampleQuery {
		if panel, ok := view.Panel(dashboard.PanelPatientSample); ok && panel.OK() {
			rs = panel.Result
		}
	}
	if rs == nil {
		var err error
		rs, err = s.executor.Run(ctx, s.probeQuery)
		if err != nil {
			s.logger.Warn("masking probe failed", zap.Error(err))
			return nil, "Masking could not be verified: " + apperrors.MessageOf(err), false
		}
	}
	if rs.RowCount() == 0 {
		return nil, "Masking could not be verified: probe returned no rows", false
	}

	masked := persona.DetectMaskedColumns(rs, persona.DefaultNullMaskedColumns...)
	if len(masked) > 0 {
		return masked, "Masked columns: " + strings.Join(masked, ", "), true
	}
	return nil, "", true
}

// Close 释放会话连接，可重复调用。进行中的操作完成后才释放
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.action.Lock()
		defer s.action.Unlock()
		s.closed.Store(true)
		if s.release != nil {
			s.release()
		}
		s.logger.Debug("session closed")
	})
}

func roleNotice(err error) string {
	return "Could not switch role: " + apperrors.MessageOf(err)
}
