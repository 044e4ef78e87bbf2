package monitor

import (
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/risk"
)

// 便捷函数供外部调用，无需访问 Metrics 实例

// RecordPass 记录一轮已提交评估的结果
func RecordPass(trigger string, res *risk.PassResult, d time.Duration) {
	m := GetMetrics()
	m.ObservePass(trigger, "committed", d)
	m.SetPositions(res.Summary.Positions, res.Summary.NotComputable)
	m.SetDisableCandidates(len(res.DisableCandidates))
	for i := range res.FiredEvents {
		ev := &res.FiredEvents[i]
		m.IncAlertFired(string(ev.AlertType), ev.RiskLevel)
	}
	for _, e := range res.Errors {
		m.IncPassError(e.Kind())
	}
}

// RecordPassFailure 记录未提交的评估
func RecordPassFailure(trigger, result string, d time.Duration) {
	GetMetrics().ObservePass(trigger, result, d)
}

// IncPriceUpdate 增加价格刷新计数
func IncPriceUpdate(asset, status string) {
	GetMetrics().IncPriceUpdate(asset, status)
}

// SetWebSocketConnected 设置价格源连接状态
func SetWebSocketConnected(connected bool) {
	GetMetrics().SetWebSocketConnected(connected)
}

// IncDispatch 增加分发计数
func IncDispatch(kind, result string) {
	GetMetrics().IncDispatch(kind, result)
}

// SetNATSConnected 设置NATS连接状态
func SetNATSConnected(connected bool) {
	GetMetrics().SetNATSConnected(connected)
}

// IncCacheHit 增加缓存命中计数
func IncCacheHit(cacheType string) {
	GetMetrics().IncCacheHit(cacheType)
}

// IncCacheMiss 增加缓存未命中计数
func IncCacheMiss(cacheType string) {
	GetMetrics().IncCacheMiss(cacheType)
}

// SetMessageQueueSize 设置消息队列大小
func SetMessageQueueSize(size int) {
	GetMetrics().SetMessageQueueSize(size)
}

// IncMessageQueueFull 增加消息队列满事件计数
func IncMessageQueueFull() {
	GetMetrics().IncMessageQueueFull()
}

// ObserveBatchWrite 观察批量写入
func ObserveBatchWrite(size int, d time.Duration) {
	GetMetrics().ObserveBatchWrite(size, d)
}

// AddEventsPurged 增加清理事件数
func AddEventsPurged(n int64) {
	GetMetrics().AddEventsPurged(n)
}
