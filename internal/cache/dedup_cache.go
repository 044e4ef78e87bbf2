package cache

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

// DedupCache 告警事件去重缓存，使用 go-cache 实现 TTL 自动过期
type DedupCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewDedupCache 创建事件去重缓存，清理间隔为 2×TTL
func NewDedupCache(ttl time.Duration) *DedupCache {
	return &DedupCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// IsSeen 检查事件是否已分发
func (c *DedupCache) IsSeen(eventID string) bool {
	_, exists := c.cache.Get(eventID)
	return exists
}

// Mark 标记事件为已分发
func (c *DedupCache) Mark(eventID string) {
	c.cache.Set(eventID, time.Now(), cache.DefaultExpiration)
}

// TryMark 原子地标记事件，已存在时返回 false
func (c *DedupCache) TryMark(eventID string) bool {
	return c.cache.Add(eventID, time.Now(), cache.DefaultExpiration) == nil
}

// Forget 移除标记（分发失败后允许重试）
func (c *DedupCache) Forget(eventID string) {
	c.cache.Delete(eventID)
}

// EventLoader 按时间读取已提交事件
type EventLoader interface {
	ListSince(since time.Time, limit int) ([]models.AlertEvent, error)
}

// LoadFromDB 服务启动时恢复 TTL 窗口内的事件
func (c *DedupCache) LoadFromDB(loader EventLoader) error {
	if loader == nil {
		return fmt.Errorf("event loader is nil")
	}

	events, err := loader.ListSince(time.Now().Add(-c.ttl), 0)
	if err != nil {
		return fmt.Errorf("list alert events failed: %w", err)
	}

	for _, ev := range events {
		c.Mark(ev.EventID)
	}

	logger.Info().
		Int("count", len(events)).
		Dur("window", c.ttl).
		Msg("loaded alert events into dedup cache")

	return nil
}

// Stats 获取统计信息
func (c *DedupCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"item_count":  c.cache.ItemCount(),
		"ttl_minutes": c.ttl.Minutes(),
	}
}
