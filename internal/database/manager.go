package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"cohort2sql-go/internal/config"
)

// Manager PostgreSQL数据库连接管理器
// 连接池本身只用于健康检查，查询都在会话独占的连接上执行
type Manager struct {
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger *zap.Logger
}

// NewManager 创建新的数据库管理器
func NewManager(ctx context.Context, dbConfig *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if dbConfig == nil {
		return nil, fmt.Errorf("数据库配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("初始化数据库连接池",
		zap.String("host", dbConfig.Host),
		zap.Int("port", dbConfig.Port),
		zap.String("database", dbConfig.Database),
		zap.Int32("max_conns", dbConfig.MaxConns),
	)

	poolConfig, err := dbConfig.GetPoolConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("获取连接池配置失败: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("创建数据库连接池失败", zap.Error(err))
		return nil, fmt.Errorf("创建数据库连接池失败: %w", err)
	}

	manager := &Manager{
		pool:   pool,
		config: dbConfig,
		logger: logger,
	}

	if err := manager.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("数据库健康检查失败: %w", err)
	}

	logger.Info("数据库连接池初始化成功")
	return manager, nil
}

// GetPool 获取数据库连接池
func (m *Manager) GetPool() *pgxpool.Pool {
	return m.pool
}

// MaxRows 单次查询返回的最大行数
func (m *Manager) MaxRows() int {
	return m.config.MaxRows
}

// Acquire 为一个用户会话租用独占连接
// 连接上的SET ROLE只影响该会话
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	if m.pool == nil {
		return nil, fmt.Errorf("数据库连接池未初始化")
	}
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		m.logger.Error("获取会话连接失败", zap.Error(err))
		return nil, fmt.Errorf("获取会话连接失败: %w", err)
	}
	return newLease(conn, m.logger), nil
}

// HealthCheck 执行数据库健康检查
func (m *Manager) HealthCheck(ctx context.Context) error {
	if m.pool == nil {
		return fmt.Errorf("数据库连接池未初始化")
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := m.pool.QueryRow(checkCtx, "SELECT 1").Scan(&result); err != nil {
		m.logger.Error("数据库健康检查查询失败", zap.Error(err))
		return fmt.Errorf("数据库健康检查失败: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("数据库健康检查返回值异常: %d", result)
	}
	return nil
}

// GetPoolStats 获取连接池统计信息
func (m *Manager) GetPoolStats() *PoolStats {
	if m.pool == nil {
		return &PoolStats{MaxConns: m.config.MaxConns}
	}
	stat := m.pool.Stat()
	return &PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		AcquireCount:  stat.AcquireCount(),
		MaxConns:      m.config.MaxConns,
	}
}

// Close 关闭数据库连接池
func (m *Manager) Close() {
	if m.pool != nil {
		m.logger.Info("关闭数据库连接池")
		m.pool.Close()
	}
}

// PoolStats 连接池统计信息
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"` // 约等于活跃会话数
	AcquireCount  int64 `json:"acquire_count"`
	MaxConns      int32 `json:"max_conns"`
}

// GetUtilization 计算连接池利用率 (0.0-1.0)
func (ps *PoolStats) GetUtilization() float64 {
	if ps.MaxConns <= 0 {
		return 0.0
	}
	return float64(ps.AcquiredConns) / float64(ps.MaxConns)
}

// IsHealthy 连接全部被会话占用时无法再创建新会话
func (ps *PoolStats) IsHealthy() bool {
	return ps.GetUtilization() < 1.0
}

func (ps *PoolStats) String() string {
	return fmt.Sprintf(
		"Pool Stats - Total: %d, Idle: %d, Acquired: %d, Utilization: %.1f%%",
		ps.TotalConns, ps.IdleConns, ps.AcquiredConns, ps.GetUtilization()*100,
	)
}
