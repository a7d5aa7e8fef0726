package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"cohort2sql-go/internal/database"
)

// PoolStatsFunc 返回当前连接池统计
type PoolStatsFunc func() *database.PoolStats

// PoolCollector 抓取时读取连接池统计
// 每个会话独占一条连接，连接数即可反映会话占用情况
type PoolCollector struct {
	stats           PoolStatsFunc
	connectionsDesc *prometheus.Desc
	maxDesc         *prometheus.Desc
	acquireDesc     *prometheus.Desc
}

// NewPoolCollector 创建连接池收集器
func NewPoolCollector(namespace string, stats PoolStatsFunc) *PoolCollector {
	return &PoolCollector{
		stats: stats,
		connectionsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "connections"),
			"Database pool connections by state",
			[]string{"state"},
			nil,
		),
		maxDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "max_connections"),
			"Configured maximum pool size",
			nil, nil,
		),
		acquireDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquires_total"),
			"Cumulative successful connection acquires",
			nil, nil,
		),
	}
}

// Describe 实现prometheus.Collector接口
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectionsDesc
	ch <- c.maxDesc
	ch <- c.acquireDesc
}

// Collect 实现prometheus.Collector接口
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats()
	if stats == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(stats.TotalConns), "total")
	ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(stats.IdleConns), "idle")
	ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(stats.AcquiredConns), "acquired")
	ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, float64(stats.MaxConns))
	ch <- prometheus.MustNewConstMetric(c.acquireDesc, prometheus.CounterValue, float64(stats.AcquireCount))
}
