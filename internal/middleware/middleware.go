package middleware

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDKey 请求ID在gin上下文中的键
const RequestIDKey = "request_id"

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Logger    *zap.Logger
	RateLimit *RateLimitConfig
	CORS      *CORSConfig
	Security  *SecurityConfig
	// Limiter 为nil时按RateLimit新建，调用方需要自行Stop时传入
	Limiter *RateLimiter
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RequestsPerSecond float64       // 每个客户端每秒请求数
	Burst             int           // 突发请求数
	IdleTimeout       time.Duration // 客户端限流器闲置多久后回收
}

// CORSConfig CORS配置
type CORSConfig struct {
	AllowOrigins     []string // 允许的源
	AllowMethods     []string // 允许的HTTP方法
	AllowHeaders     []string // 允许的请求头
	AllowCredentials bool     // 是否允许凭据
	MaxAge           int      // 预检请求缓存时间
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	EnableCSP  bool // 是否启用内容安全策略
	EnableHSTS bool // 是否启用HSTS
}

// DefaultMiddlewareConfig 默认中间件配置
func DefaultMiddlewareConfig(logger *zap.Logger) *MiddlewareConfig {
	return &MiddlewareConfig{
		Logger: logger,
		RateLimit: &RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             20,
			IdleTimeout:       10 * time.Minute,
		},
		CORS: &CORSConfig{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           86400, // 24小时
		},
		Security: &SecurityConfig{
			EnableCSP:  true,
			EnableHSTS: true,
		},
	}
}

// SetupMiddleware 配置所有中间件，extra在限流之后执行
func SetupMiddleware(r *gin.Engine, config *MiddlewareConfig, extra ...gin.HandlerFunc) {
	// 1. 恢复中间件 - 防止panic导致服务崩溃
	r.Use(RecoveryMiddleware(config.Logger))

	// 2. 请求ID中间件，后续日志都带上请求ID
	r.Use(RequestIDMiddleware())

	// 3. 结构化日志中间件
	r.Use(StructuredLogger(config.Logger))

	// 4. 安全头中间件
	r.Use(SecurityHeaders(config.Security))

	// 5. CORS跨域中间件
	r.Use(CORSMiddleware(config.CORS))

	// 6. 请求限流中间件
	limiter := config.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(config.RateLimit)
	}
	r.Use(RateLimitMiddleware(limiter))

	r.Use(extra...)
}

// RecoveryMiddleware 恢复中间件
// 捕获panic并记录详细错误日志，防止服务崩溃
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		if logger != nil {
			logger.Error("Request panic recovered",
				zap.Any("panic", recovered),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("remote_addr", c.ClientIP()),
				zap.String("request_id", GetRequestID(c)),
			)
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":       "INTERNAL_ERROR",
			"message":    "服务器内部错误",
			"request_id": GetRequestID(c),
		})
	})
}

// StructuredLogger 结构化日志中间件
// 记录每个HTTP请求的方法、路径、状态码和耗时
func StructuredLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
			zap.Int("body_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP Request", fields...)
		default:
			logger.Info("HTTP Request", fields...)
		}
	}
}

// SecurityHeaders 安全头中间件
func SecurityHeaders(config *SecurityConfig) gin.HandlerFunc {
	if config == nil {
		config = &SecurityConfig{}
	}
	return func(c *gin.Context) {
		// 基础安全头
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS头（仅HTTPS）
		if config.EnableHSTS && c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		// 只返回JSON，不需要加载任何资源
		if config.EnableCSP {
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		c.Next()
	}
}

// CORSMiddleware CORS跨域中间件
// 处理跨域请求，支持预检请求和实际请求
func CORSMiddleware(config *CORSConfig) gin.HandlerFunc {
	if config == nil {
		config = &CORSConfig{}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// 设置CORS头
		if origin != "" && len(config.AllowOrigins) > 0 && (config.AllowOrigins[0] == "*" || slices.Contains(config.AllowOrigins, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if len(config.AllowMethods) > 0 {
			c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
		}

		if len(config.AllowHeaders) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
		}
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")

		if config.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if config.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}

		// 处理预检请求
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimiter 按客户端限流，闲置的限流器过期后由后台清理回收
type RateLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
	evicted  atomic.Int64
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建限流器实例并启动过期清理，不再使用时调用Stop
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultMiddlewareConfig(nil).RateLimit
	}
	idle := config.IdleTimeout
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	rl := &RateLimiter{
		// 每次访问都会延长有效期，只有闲置的客户端会被回收
		limiters: ttlcache.New(ttlcache.WithTTL[string, *rate.Limiter](idle)),
		rate:     rate.Limit(config.RequestsPerSecond),
		burst:    config.Burst,
		done:     make(chan struct{}),
	}
	rl.limiters.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[string, *rate.Limiter]) {
		if reason == ttlcache.EvictionReasonExpired {
			rl.evicted.Add(1)
		}
	})
	go rl.sweep(idle)
	return rl
}

// sweep 每个闲置周期清理一次过期的限流器
func (rl *RateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.limiters.DeleteExpired()
		}
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	item, _ := rl.limiters.GetOrSet(key, rate.NewLimiter(rl.rate, rl.burst))
	return item.Value().Allow()
}

// Clients 当前跟踪的客户端数
func (rl *RateLimiter) Clients() int {
	return rl.limiters.Len()
}

// Evicted 因闲置被回收的限流器总数
func (rl *RateLimiter) Evicted() int64 {
	return rl.evicted.Load()
}

// Stop 停止过期清理，可重复调用
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// RateLimitMiddleware 请求限流中间件，按客户端IP限流
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow("ip:" + c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":       "RATE_LIMIT_EXCEEDED",
				"message":    "请求频率超过限制，请稍后重试",
				"request_id": GetRequestID(c),
			})
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
// 沿用客户端传入的X-Request-ID，否则生成UUID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
