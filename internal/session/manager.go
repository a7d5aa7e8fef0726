package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/dashboard"
	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/persona"
)

var (
	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions 活跃会话数达到上限
	ErrTooManySessions = errors.New("too many active sessions")
)

// Backend 为新会话打开一条专用连接
type Backend interface {
	Open(ctx context.Context) (Executor, func(), error)
}

// PoolBackend 从连接池获取连接
type PoolBackend struct {
	db     *database.Manager
	logger *zap.Logger
}

// NewPoolBackend 创建基于连接池的后端
func NewPoolBackend(db *database.Manager, logger *zap.Logger) *PoolBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolBackend{db: db, logger: logger}
}

// Open 获取一条连接并包装为执行器，返回的函数归还连接
func (b *PoolBackend) Open(ctx context.Context) (Executor, func(), error) {
	lease, err := b.db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	exec := database.NewExecutor(lease.Querier(), b.db.MaxRows(), b.logger)
	return exec, lease.Release, nil
}

// Manager 会话注册表，空闲超时的会话被移除并释放连接
type Manager struct {
	sessions *ttlcache.Cache[string, *Session]
	backend  Backend
	cfg      *config.SessionConfig
	persona  persona.Profile
	opts     Options
	logger   *zap.Logger

	// opening 已占用名额但尚未登记的会话数
	slotMu  sync.Mutex
	opening int
}

// NewManager 创建会话注册表。opts中的Persona、RoleSwitchPolicy和ProbeQuery由cfg决定
func NewManager(backend Backend, cfg *config.SessionConfig, opts Options) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultSessionConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	defaultPersona, err := persona.Lookup(cfg.DefaultPersona)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Dashboard == nil {
		opts.Dashboard = dashboard.NewService(nil, opts.Logger)
	}
	opts.Persona = defaultPersona
	opts.RoleSwitchPolicy = cfg.RoleSwitchPolicy
	opts.ProbeQuery = cfg.MaskingProbeQuery

	m := &Manager{
		sessions: ttlcache.New(ttlcache.WithTTL[string, *Session](cfg.IdleTTL)),
		backend:  backend,
		cfg:      cfg,
		persona:  defaultPersona,
		opts:     opts,
		logger:   opts.Logger,
	}
	m.sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		item.Value().Close()
		m.opts.Observer.SetActiveSessions(m.sessions.Len())
		if reason == ttlcache.EvictionReasonExpired {
			m.logger.Info("idle session expired", zap.String("session_id", item.Key()))
		}
	})
	return m, nil
}

// Start 启动过期清理，阻塞直到Stop被调用
func (m *Manager) Start() {
	m.sessions.Start()
}

// Stop 停止过期清理
func (m *Manager) Stop() {
	m.sessions.Stop()
}

// Create 创建新会话：获取连接，应用默认角色，生成第一份视图
func (m *Manager) Create(ctx context.Context) (*Session, string, error) {
	if !m.reserve() {
		return nil, "", ErrTooManySessions
	}
	defer m.unreserve()

	exec, release, err := m.backend.Open(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open session connection: %w", err)
	}

	id := uuid.NewString()
	s := New(id, exec, release, m.opts)
	notice := s.Start(ctx)

	m.sessions.Set(id, s, ttlcache.DefaultTTL)
	m.opts.Observer.SetActiveSessions(m.sessions.Len())
	m.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("persona", string(m.persona.ID)))
	return s, notice, nil
}

// reserve 在获取连接前占用一个名额，登记完成后由unreserve归还
func (m *Manager) reserve() bool {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	if m.cfg.MaxSessions > 0 && uint64(m.sessions.Len()+m.opening) >= m.cfg.MaxSessions {
		return false
	}
	m.opening++
	return true
}

func (m *Manager) unreserve() {
	m.slotMu.Lock()
	m.opening--
	m.slotMu.Unlock()
}

// Get 返回会话并延长其空闲期限
func (m *Manager) Get(id string) (*Session, error) {
	item := m.sessions.Get(id)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return item.Value(), nil
}

// Close 关闭并移除会话
func (m *Manager) Close(id string) error {
	item, ok := m.sessions.GetAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	item.Value().Close()
	return nil
}

// CloseAll 关闭全部会话
func (m *Manager) CloseAll() {
	for _, item := range m.sessions.Items() {
		item.Value().Close()
	}
	m.sessions.DeleteAll()
	m.opts.Observer.SetActiveSessions(0)
}

// Sweep 立即移除已过期的会话
func (m *Manager) Sweep() {
	m.sessions.DeleteExpired()
}

// Len 活跃会话数
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// DefaultPersona 新会话使用的角色
func (m *Manager) DefaultPersona() persona.Profile {
	return m.persona
}
