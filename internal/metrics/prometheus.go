package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cohort2sql-go/internal/session"
)

// PrometheusMetrics Prometheus指标收集器
// 收集HTTP请求、问答流程、缓存和角色切换等指标，使用独立的注册器
type PrometheusMetrics struct {
	// HTTP请求相关指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec
	activeRequests      prometheus.Gauge

	// 问答流程指标
	questionsTotal *prometheus.CounterVec
	turnsTotal     *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	roleSwitches   *prometheus.CounterVec
	viewRefreshes  prometheus.Histogram
	sessionsActive prometheus.Gauge

	// 注册器
	registry *prometheus.Registry

	logger *zap.Logger
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Namespace      string // 指标命名空间
	Subsystem      string // HTTP指标子系统
	ServiceVersion string // 服务版本
}

// DefaultMetricsConfig 默认指标配置
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Namespace:      "cohort2sql",
		Subsystem:      "api",
		ServiceVersion: "dev",
	}
}

// NewPrometheusMetrics 创建Prometheus指标收集器
func NewPrometheusMetrics(config *MetricsConfig, logger *zap.Logger) *PrometheusMetrics {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	// 初始化HTTP请求指标
	pm.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	pm.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			// 问答请求包含一次补全调用，上限放宽到两分钟
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)

	pm.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   []float64{1024, 4096, 16384, 65536, 262144, 1048576}, // 1KB to 1MB
		},
		[]string{"method", "endpoint"},
	)

	pm.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{1024, 4096, 16384, 65536, 262144, 1048576, 4194304}, // 1KB to 4MB
		},
		[]string{"method", "endpoint"},
	)

	pm.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// 初始化问答流程指标
	pm.questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "assistant",
			Name:      "questions_total",
			Help:      "Questions accepted into the pending slot",
		},
		[]string{"source"},
	)

	pm.turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "assistant",
			Name:      "turns_total",
			Help:      "Assistant turns by outcome",
		},
		[]string{"outcome"},
	)

	pm.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "assistant",
			Name:      "stage_duration_seconds",
			Help:      "Duration of generation and execution stages",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}, // 5ms to 60s
		},
		[]string{"stage"},
	)

	pm.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Dashboard query cache lookups",
		},
		[]string{"result"},
	)

	pm.roleSwitches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "persona",
			Name:      "role_switches_total",
			Help:      "Role switch commands by target persona and status",
		},
		[]string{"persona", "status"},
	)

	pm.viewRefreshes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "dashboard",
			Name:      "refresh_duration_seconds",
			Help:      "Full view refresh duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pm.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of live sessions",
		},
	)

	// 注册所有指标
	pm.registerMetrics()

	logger.Info("Prometheus metrics initialized successfully",
		zap.String("namespace", config.Namespace),
		zap.String("subsystem", config.Subsystem))

	return pm
}

// registerMetrics 注册所有指标到Prometheus
func (pm *PrometheusMetrics) registerMetrics() {
	// HTTP指标
	pm.registry.MustRegister(pm.httpRequestsTotal)
	pm.registry.MustRegister(pm.httpRequestDuration)
	pm.registry.MustRegister(pm.httpRequestSize)
	pm.registry.MustRegister(pm.httpResponseSize)
	pm.registry.MustRegister(pm.activeRequests)

	// 业务指标
	pm.registry.MustRegister(pm.questionsTotal)
	pm.registry.MustRegister(pm.turnsTotal)
	pm.registry.MustRegister(pm.stageDuration)
	pm.registry.MustRegister(pm.cacheLookups)
	pm.registry.MustRegister(pm.roleSwitches)
	pm.registry.MustRegister(pm.viewRefreshes)
	pm.registry.MustRegister(pm.sessionsActive)

	// 运行时指标
	pm.registry.MustRegister(collectors.NewGoCollector())
	pm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Registry 返回指标注册器，用于注册额外的收集器
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// HTTPMetricsMiddleware HTTP指标收集中间件
func (pm *PrometheusMetrics) HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestSize := calculateRequestSize(c.Request)

		pm.activeRequests.Inc()
		defer pm.activeRequests.Dec()

		// 处理请求
		c.Next()

		// 计算指标
		duration := time.Since(start)
		responseSize := c.Writer.Size()

		// 获取标签值，使用路由模板避免会话ID撑爆标签基数
		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		statusCode := strconv.Itoa(c.Writer.Status())

		// 记录指标
		pm.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())

		if requestSize > 0 {
			pm.httpRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
		}

		if responseSize > 0 {
			pm.httpResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
		}
	}
}

// ObserveCacheLookup 实现 cache.Observer
func (pm *PrometheusMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pm.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveQuestion 实现 session.Observer
func (pm *PrometheusMetrics) ObserveQuestion(source session.Source) {
	pm.questionsTotal.WithLabelValues(string(source)).Inc()
}

// ObserveTurn 记录助手轮次结果
func (pm *PrometheusMetrics) ObserveTurn(outcome string) {
	pm.turnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage 记录生成或执行阶段耗时
func (pm *PrometheusMetrics) ObserveStage(stage string, d time.Duration) {
	pm.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRoleSwitch 记录角色切换命令结果
func (pm *PrometheusMetrics) ObserveRoleSwitch(persona string, ok bool) {
	status := "success"
	if !ok {
		status = "failed"
	}
	pm.roleSwitches.WithLabelValues(persona, status).Inc()
}

// ObserveViewRefresh 记录视图刷新耗时
func (pm *PrometheusMetrics) ObserveViewRefresh(d time.Duration) {
	pm.viewRefreshes.Observe(d.Seconds())
}

// SetActiveSessions 更新活跃会话数
func (pm *PrometheusMetrics) SetActiveSessions(n int) {
	pm.sessionsActive.Set(float64(n))
}

// GetMetricsHandler 获取Prometheus指标端点处理器
func (pm *PrometheusMetrics) GetMetricsHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// calculateRequestSize 计算请求大小
func calculateRequestSize(r *http.Request) int64 {
	size := int64(0)

	if r.ContentLength > 0 {
		size += r.ContentLength
	}

	// 计算请求头大小
	for name, values := range r.Header {
		size += int64(len(name))
		for _, value := range values {
			size += int64(len(value))
		}
	}

	// 计算URL大小
	size += int64(len(r.URL.String()))

	return size
}
