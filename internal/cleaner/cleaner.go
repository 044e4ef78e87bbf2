package cleaner

import (
	"sync"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/dao"
	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/pkg/goplus"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

const (
	DefaultInterval  = time.Hour
	DefaultRetention = 7 * 24 * time.Hour
	DefaultMaxEvents = 500000
)

// Cleaner 告警事件清理器
// 策略：时间优先（默认 7 天），数量兜底（默认 50 万条）
type Cleaner struct {
	interval  time.Duration
	retention time.Duration
	maxEvents int64
	now       func() time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       goplus.WaitGroup
}

// NewCleaner 创建清理器，零值参数使用默认值
func NewCleaner(interval, retention time.Duration, maxEvents int64) *Cleaner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Cleaner{
		interval:  interval,
		retention: retention,
		maxEvents: maxEvents,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start 启动清理任务，启动时立即执行一次
func (c *Cleaner) Start() {
	c.wg.Go(func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		logger.Info().Dur("interval", c.interval).Msg("cleaner started")

		c.RunOnce()

		for {
			select {
			case <-ticker.C:
				c.RunOnce()
			case <-c.done:
				logger.Info().Msg("cleaner stopped")
				return
			}
		}
	})
}

// Stop 停止清理器
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

// RunOnce 执行一次清理，返回删除的事件数
func (c *Cleaner) RunOnce() int64 {
	logger.Debug().Msg("running cleanup task")

	byTime, err := c.cleanByTime()
	if err != nil {
		logger.Error().Err(err).Msg("clean alert events by time failed")
	}
	byCount, err := c.cleanByCount()
	if err != nil {
		logger.Error().Err(err).Msg("clean alert events by count failed")
	}

	total := byTime + byCount
	if total > 0 {
		monitor.AddEventsPurged(total)
	}
	return total
}

func (c *Cleaner) cleanByTime() (int64, error) {
	cutoff := c.now().Add(-c.retention)
	deleted, err := dao.AlertEvent().DeleteOld(cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("cleaned old alert events by time")
	}
	return deleted, nil
}

func (c *Cleaner) cleanByCount() (int64, error) {
	count, err := dao.AlertEvent().Count()
	if err != nil {
		return 0, err
	}
	if count <= c.maxEvents {
		return 0, nil
	}

	deleted, err := dao.AlertEvent().DeleteOldest(count - c.maxEvents)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Info().
			Int64("deleted", deleted).
			Int64("total", count).
			Int64("limit", c.maxEvents).
			Msg("cleaned excess alert events by count")
	}
	return deleted, nil
}
