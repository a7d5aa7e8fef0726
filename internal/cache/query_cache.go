// Package cache 缓存固定、无参数的看板查询结果。
// 键为查询文本原文，条目过期后在下一次读取时重新加载，不会因角色切换而失效。
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/database"
)

// Loader 缓存未命中时执行查询
type Loader func(ctx context.Context) (*database.ResultSet, error)

// Observer 记录缓存命中情况
type Observer interface {
	ObserveCacheLookup(hit bool)
}

// Entry 缓存条目
type Entry struct {
	Result   *database.ResultSet
	CachedAt time.Time
}

// QueryCache 多个会话共享的只读查询缓存
type QueryCache struct {
	items    *ttlcache.Cache[string, *Entry]
	ttl      time.Duration
	observer Observer
	logger   *zap.Logger
}

// New 创建查询缓存
func New(cfg *config.CacheConfig, observer Observer, logger *zap.Logger) *QueryCache {
	if cfg == nil {
		cfg = config.DefaultCacheConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []ttlcache.Option[string, *Entry]{
		ttlcache.WithTTL[string, *Entry](cfg.TTL),
		// 读取不延长有效期，条目从写入时开始计时
		ttlcache.WithDisableTouchOnHit[string, *Entry](),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *Entry](cfg.Capacity))
	}

	c := &QueryCache{
		items:    ttlcache.New(opts...),
		ttl:      cfg.TTL,
		observer: observer,
		logger:   logger,
	}
	c.items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Entry]) {
		c.logger.Debug("缓存条目已移除",
			zap.Int("reason", int(reason)),
			zap.Time("cached_at", item.Value().CachedAt))
	})
	return c
}

// Start 启动后台过期清理，阻塞直到Stop被调用
func (c *QueryCache) Start() {
	c.items.Start()
}

// Stop 停止后台过期清理
func (c *QueryCache) Stop() {
	c.items.Stop()
}

// TTL 条目有效期
func (c *QueryCache) TTL() time.Duration {
	return c.ttl
}

// Get 返回未过期的条目
func (c *QueryCache) Get(query string) (*Entry, bool) {
	item := c.items.Get(query)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// GetOrLoad 命中时返回同一个结果对象，未命中或过期时调用load并缓存成功的结果
// 返回值hit表示是否命中缓存
func (c *QueryCache) GetOrLoad(ctx context.Context, query string, load Loader) (*database.ResultSet, bool, error) {
	if entry, ok := c.Get(query); ok {
		c.observe(true)
		return entry.Result, true, nil
	}
	c.observe(false)

	rs, err := load(ctx)
	if err != nil {
		// 失败的结果不缓存
		return nil, false, err
	}
	c.items.Set(query, &Entry{Result: rs, CachedAt: time.Now()}, ttlcache.DefaultTTL)
	return rs, false, nil
}

// Len 未过期的条目数
func (c *QueryCache) Len() int {
	return c.items.Len()
}

// Clear 清空缓存
func (c *QueryCache) Clear() {
	c.items.DeleteAll()
}

func (c *QueryCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCacheLookup(hit)
	}
}
