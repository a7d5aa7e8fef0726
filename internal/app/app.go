// Package app 按配置组装服务端和命令行共用的组件。
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cohort2sql-go/internal/ai"
	"cohort2sql-go/internal/cache"
	"cohort2sql-go/internal/catalog"
	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/dashboard"
	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/handler"
	"cohort2sql-go/internal/metrics"
	"cohort2sql-go/internal/middleware"
	"cohort2sql-go/internal/service"
	"cohort2sql-go/internal/session"
)

// App 进程内唯一的一组组件
type App struct {
	Config    *config.Config
	Info      *config.AppInfo
	Logger    *zap.Logger
	Catalog   *catalog.Catalog
	DB        *database.Manager
	Cache     *cache.QueryCache
	Metrics   *metrics.PrometheusMetrics
	Dashboard *dashboard.Service
	Generator *ai.Generator
	Sessions  *session.Manager
	Health    *service.HealthService

	limiter *middleware.RateLimiter
}

// New 连接数据库并创建全部组件。返回错误时已创建的资源都已释放
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Info:   config.DefaultAppInfo(),
		Logger: logger,
	}

	var err error
	if a.Catalog, err = catalog.Default(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	metricsCfg := metrics.DefaultMetricsConfig()
	metricsCfg.ServiceVersion = a.Info.Version
	a.Metrics = metrics.NewPrometheusMetrics(metricsCfg, logger)

	model, err := ai.NewModel(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	builder := ai.NewPromptBuilder(a.Catalog, cfg.AI.HistoryWindow)
	a.Generator = ai.NewGenerator(model, builder, cfg.AI, logger)

	if a.DB, err = database.NewManager(ctx, cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Metrics.Registry().MustRegister(metrics.NewPoolCollector(metricsCfg.Namespace, a.DB.GetPoolStats))

	a.Cache = cache.New(cfg.Cache, a.Metrics, logger)
	a.Dashboard = dashboard.NewService(a.Cache, logger)

	a.Sessions, err = session.NewManager(session.NewPoolBackend(a.DB, logger), cfg.Session, session.Options{
		Generator: a.Generator,
		Dashboard: a.Dashboard,
		Observer:  a.Metrics,
		Logger:    logger,
	})
	if err != nil {
		a.DB.Close()
		return nil, err
	}

	a.Health = service.NewHealthService(a.DB, a.Sessions, cfg.Session.MaxSessions, a.Info, logger)
	return a, nil
}

// Start 启动缓存和会话的后台过期清理
func (a *App) Start() {
	go a.Cache.Start()
	go a.Sessions.Start()
}

// Close 关闭全部会话并释放连接池
func (a *App) Close() {
	a.Sessions.Stop()
	a.Sessions.CloseAll()
	a.Cache.Stop()
	if a.limiter != nil {
		a.limiter.Stop()
	}
	a.DB.Close()
	a.Logger.Info("Application resources released")
}

// Router 创建HTTP路由
func (a *App) Router() *gin.Engine {
	gin.SetMode(a.Config.Server.Mode)
	r := gin.New()

	mc := MiddlewareConfig(a.Config.Server, a.Logger)
	if a.limiter == nil {
		a.limiter = middleware.NewRateLimiter(mc.RateLimit)
	}
	mc.Limiter = a.limiter

	handler.SetupRoutes(r, &handler.RouterConfig{
		SessionHandler:   handler.NewSessionHandler(a.Sessions, a.Logger),
		ReferenceHandler: handler.NewReferenceHandler(a.Catalog, a.Sessions.DefaultPersona().ID),
		HealthService:    a.Health,
		Metrics:          a.Metrics,
		Middleware:       MiddlewareConfig(a.Config.Server, a.Logger),
	})
	return r
}

// HTTPServer 按服务配置创建HTTP服务
func (a *App) HTTPServer() *http.Server {
	return NewHTTPServer(a.Config.Server, a.Router())
}

// MiddlewareConfig 用服务配置中的限流参数覆盖默认中间件配置
func MiddlewareConfig(cfg *config.ServerConfig, logger *zap.Logger) *middleware.MiddlewareConfig {
	mc := middleware.DefaultMiddlewareConfig(logger)
	mc.RateLimit.RequestsPerSecond = cfg.RateLimit
	mc.RateLimit.Burst = cfg.RateBurst
	return mc
}

// NewHTTPServer 创建HTTP服务
func NewHTTPServer(cfg *config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:           cfg.Addr,
		Handler:        h,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
}
