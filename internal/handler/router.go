package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"cohort2sql-go/internal/metrics"
	"cohort2sql-go/internal/middleware"
	"cohort2sql-go/internal/service"
)

// RouterConfig 路由配置结构
type RouterConfig struct {
	SessionHandler   *SessionHandler
	ReferenceHandler *ReferenceHandler
	HealthService    service.HealthServiceInterface
	Metrics          *metrics.PrometheusMetrics
	// Middleware 为nil时不安装全局中间件
	Middleware *middleware.MiddlewareConfig
}

// SetupRoutes 配置所有API路由
func SetupRoutes(r *gin.Engine, config *RouterConfig) {
	// 全局中间件
	if config.Middleware != nil {
		var extra []gin.HandlerFunc
		if config.Metrics != nil {
			extra = append(extra, config.Metrics.HTTPMetricsMiddleware())
		}
		middleware.SetupMiddleware(r, config.Middleware, extra...)
	}

	// API版本管理
	v1 := r.Group("/api/v1")
	{
		setupSessionRoutes(v1, config.SessionHandler)
		setupReferenceRoutes(v1, config.ReferenceHandler)
	}

	// 健康检查和系统监控端点
	setupSystemRoutes(r, config)
}

// setupSessionRoutes 配置会话路由
func setupSessionRoutes(rg *gin.RouterGroup, h *SessionHandler) {
	if h == nil {
		return
	}
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)                  // 创建会话
		sessions.GET("/:id", h.GetSession)                  // 会话状态
		sessions.DELETE("/:id", h.CloseSession)             // 关闭会话
		sessions.POST("/:id/questions", h.AskQuestion)      // 提问
		sessions.POST("/:id/examples/:index", h.AskExample) // 示例问题
		sessions.PUT("/:id/persona", h.SwitchPersona)       // 切换角色
		sessions.GET("/:id/view", h.GetView)                // 看板视图
		sessions.POST("/:id/view/refresh", h.RefreshView)   // 刷新看板
	}
}

// setupReferenceRoutes 配置参考数据路由
func setupReferenceRoutes(rg *gin.RouterGroup, h *ReferenceHandler) {
	if h == nil {
		return
	}
	rg.GET("/examples", h.ListExamples)
	rg.GET("/personas", h.ListPersonas)
	rg.GET("/catalog", h.GetCatalog)
}

// setupSystemRoutes 配置系统级路由
func setupSystemRoutes(r *gin.Engine, config *RouterConfig) {
	system := &systemHandler{health: config.HealthService}

	// 健康检查端点
	r.GET("/health", system.healthCheck)
	r.GET("/ready", system.readinessCheck)

	// 系统信息端点
	r.GET("/version", system.versionInfo)

	// Prometheus指标端点
	if config.Metrics != nil {
		r.GET("/metrics", config.Metrics.GetMetricsHandler())
	}
}

type systemHandler struct {
	health service.HealthServiceInterface
}

// healthCheck 健康检查处理器，降级时仍返回200
func (h *systemHandler) healthCheck(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": service.HealthStatusHealthy})
		return
	}
	result := h.health.CheckHealth(c.Request.Context())
	status := http.StatusOK
	if result.Status == service.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// readinessCheck 就绪状态检查
func (h *systemHandler) readinessCheck(c *gin.Context) {
	if h.health == nil {
		respondError(c, http.StatusServiceUnavailable, NewErrorResponse("NOT_READY", "健康检查服务未配置"))
		return
	}
	result := h.health.CheckReadiness(c.Request.Context())
	status := http.StatusOK
	if result.Status != service.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// versionInfo 版本信息
func (h *systemHandler) versionInfo(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"name": "cohort2sql"})
		return
	}
	c.JSON(http.StatusOK, h.health.GetVersionInfo())
}

// RequestBindingJSON 统一JSON绑定配置
func init() {
	// 配置JSON绑定选项，提高安全性
	binding.EnableDecoderUseNumber = true
	binding.EnableDecoderDisallowUnknownFields = true
}
