package cache

import (
	"sort"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/pkg/concurrent"
)

// PriceCache 各资产最新价格记录（进程内，比数据库更新）
type PriceCache struct {
	prices concurrent.Map[string, models.Price] // BTC -> Price
}

// NewPriceCache 创建价格缓存
func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Get 获取资产价格记录
func (c *PriceCache) Get(asset string) (models.Price, bool) {
	return c.prices.Load(asset)
}

// Set 整体替换资产价格记录
func (c *PriceCache) Set(p models.Price) {
	c.prices.Store(p.AssetType, p)
}

// Warm 启动时用数据库记录预热，已有更新的记录不覆盖
func (c *PriceCache) Warm(prices []models.Price) {
	for _, p := range prices {
		c.prices.Update(p.AssetType, func(prev models.Price, ok bool) models.Price {
			if ok && !prev.LastUpdateTime.Before(p.LastUpdateTime) {
				return prev
			}
			return p
		})
	}
}

// Roll 写入新价格，旧价格移入 previous 字段
// 时间早于当前记录的价格被忽略，返回值 false
func (c *PriceCache) Roll(asset string, price float64, source string, at time.Time) (models.Price, bool) {
	applied := true
	next := c.prices.Update(asset, func(prev models.Price, ok bool) models.Price {
		if !ok {
			prev = models.Price{AssetType: asset}
		}
		if ok && at.Before(prev.LastUpdateTime) {
			applied = false
			return prev
		}
		applied = true
		return prev.Roll(price, source, at)
	})
	return next, applied
}

// Snapshot 按资产排序的价格记录副本
func (c *PriceCache) Snapshot() []models.Price {
	out := c.prices.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].AssetType < out[j].AssetType })
	return out
}

// Stats 获取统计信息
func (c *PriceCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"asset_count": c.prices.Len(),
	}
}
