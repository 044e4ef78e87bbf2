package cache

import (
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

// DedupCacheInterface 去重缓存接口
type DedupCacheInterface interface {
	IsSeen(eventID string) bool
	TryMark(eventID string) bool
	Forget(eventID string)
	Stats() map[string]interface{}
}

// PriceCacheInterface 价格缓存接口
type PriceCacheInterface interface {
	Get(asset string) (models.Price, bool)
	Roll(asset string, price float64, source string, at time.Time) (models.Price, bool)
	Snapshot() []models.Price
	Stats() map[string]interface{}
}

var (
	_ DedupCacheInterface = (*DedupCache)(nil)
	_ PriceCacheInterface = (*PriceCache)(nil)
)
