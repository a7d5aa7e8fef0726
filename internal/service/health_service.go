package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cohort2sql-go/internal/config"
)

// HealthServiceInterface 健康检查服务接口，用于支持测试和依赖注入
type HealthServiceInterface interface {
	CheckHealth(ctx context.Context) *HealthCheckResult
	CheckReadiness(ctx context.Context) *ReadinessResult
	GetVersionInfo() map[string]any
}

// DatabaseChecker 数据库连通性检查，由 database.Manager 实现
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// SessionCounter 活跃会话计数，由 session.Manager 实现
type SessionCounter interface {
	Len() int
}

// HealthService 健康检查服务
type HealthService struct {
	db          DatabaseChecker
	sessions    SessionCounter
	maxSessions uint64
	appInfo     *config.AppInfo
	logger      *zap.Logger
}

// NewHealthService 创建健康检查服务，maxSessions为0表示不限制
func NewHealthService(
	db DatabaseChecker,
	sessions SessionCounter,
	maxSessions uint64,
	appInfo *config.AppInfo,
	logger *zap.Logger,
) *HealthService {
	if appInfo == nil {
		appInfo = config.DefaultAppInfo()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthService{
		db:          db,
		sessions:    sessions,
		maxSessions: maxSessions,
		appInfo:     appInfo,
		logger:      logger,
	}
}

// HealthStatus 健康状态枚举
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// ComponentStatus 组件状态
type ComponentStatus struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Duration  string       `json:"duration,omitempty"`
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Status      HealthStatus               `json:"status"`
	Timestamp   time.Time                  `json:"timestamp"`
	Service     string                     `json:"service"`
	Version     string                     `json:"version"`
	Environment string                     `json:"environment"`
	Components  map[string]ComponentStatus `json:"components"`
	BuildInfo   map[string]any             `json:"build_info,omitempty"`
}

// ReadinessResult 就绪检查结果
type ReadinessResult struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components"`
}

// CheckHealth 执行健康检查，组件异常时整体降级
func (h *HealthService) CheckHealth(ctx context.Context) *HealthCheckResult {
	now := time.Now()
	components := make(map[string]ComponentStatus)
	overallStatus := HealthStatusHealthy

	// 检查数据库连接
	dbStatus := h.checkDatabase(ctx)
	components["database"] = dbStatus
	if dbStatus.Status != HealthStatusHealthy {
		overallStatus = HealthStatusDegraded
	}

	// 检查会话容量
	sessionStatus := h.checkSessions()
	components["sessions"] = sessionStatus
	if sessionStatus.Status != HealthStatusHealthy {
		overallStatus = HealthStatusDegraded
	}

	return &HealthCheckResult{
		Status:      overallStatus,
		Timestamp:   now,
		Service:     h.appInfo.Name,
		Version:     h.appInfo.Version,
		Environment: h.appInfo.Environment,
		Components:  components,
		BuildInfo:   h.appInfo.GetBuildInfo(),
	}
}

// CheckReadiness 执行就绪检查
func (h *HealthService) CheckReadiness(ctx context.Context) *ReadinessResult {
	now := time.Now()
	components := make(map[string]ComponentStatus)
	overallStatus := HealthStatusHealthy

	// 就绪检查比健康检查更严格
	// 数据库必须正常
	dbStatus := h.checkDatabase(ctx)
	components["database"] = dbStatus
	if dbStatus.Status != HealthStatusHealthy {
		overallStatus = HealthStatusUnhealthy
	}

	// 会话已满时无法接受新会话
	sessionStatus := h.checkSessions()
	components["sessions"] = sessionStatus
	if sessionStatus.Status != HealthStatusHealthy {
		overallStatus = HealthStatusUnhealthy
	}

	return &ReadinessResult{
		Status:     overallStatus,
		Timestamp:  now,
		Components: components,
	}
}

// checkDatabase 检查数据库连接
func (h *HealthService) checkDatabase(ctx context.Context) ComponentStatus {
	start := time.Now()

	if h.db == nil {
		return ComponentStatus{
			Status:    HealthStatusUnhealthy,
			Message:   "数据库连接未配置",
			Timestamp: time.Now(),
		}
	}

	// 使用超时上下文防止长时间阻塞
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := h.db.HealthCheck(timeoutCtx)
	duration := time.Since(start)

	if err != nil {
		h.logger.Error("数据库健康检查失败", zap.Error(err))
		return ComponentStatus{
			Status:    HealthStatusUnhealthy,
			Message:   fmt.Sprintf("数据库连接失败: %v", err),
			Timestamp: time.Now(),
			Duration:  duration.String(),
		}
	}

	status := HealthStatusHealthy
	message := "数据库连接正常"

	// 如果响应时间过长，标记为降级
	if duration > 2*time.Second {
		status = HealthStatusDegraded
		message = "数据库响应较慢"
	}

	return ComponentStatus{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Duration:  duration.String(),
	}
}

// checkSessions 检查会话注册表容量
func (h *HealthService) checkSessions() ComponentStatus {
	if h.sessions == nil {
		return ComponentStatus{
			Status:    HealthStatusUnhealthy,
			Message:   "会话管理器未配置",
			Timestamp: time.Now(),
		}
	}

	active := h.sessions.Len()
	if h.maxSessions > 0 && uint64(active) >= h.maxSessions {
		return ComponentStatus{
			Status:    HealthStatusDegraded,
			Message:   fmt.Sprintf("会话数已达上限 %d", h.maxSessions),
			Timestamp: time.Now(),
		}
	}

	return ComponentStatus{
		Status:    HealthStatusHealthy,
		Message:   fmt.Sprintf("%d 个活跃会话", active),
		Timestamp: time.Now(),
	}
}

// GetVersionInfo 获取版本信息
func (h *HealthService) GetVersionInfo() map[string]any {
	return h.appInfo.GetBuildInfo()
}
