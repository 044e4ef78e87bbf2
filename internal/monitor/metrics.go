package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
type Metrics struct {
	passesTotal       *prometheus.CounterVec
	passDuration      prometheus.Histogram
	alertsFired       *prometheus.CounterVec
	passErrors        *prometheus.CounterVec
	positionsTotal    prometheus.Gauge
	notComputable     prometheus.Gauge
	disableCandidates prometheus.Gauge
	// 价格相关
	priceUpdates       *prometheus.CounterVec
	websocketConnected prometheus.Gauge
	// 通知分发
	dispatchTotal *prometheus.CounterVec
	natsConnected prometheus.Gauge
	// 缓存相关
	cacheHitTotal  *prometheus.CounterVec
	cacheMissTotal *prometheus.CounterVec
	// 消息队列相关
	messageQueueSize      prometheus.Gauge
	messageQueueFullTotal prometheus.Counter
	// 批量写入器相关
	batchWriteSize         prometheus.Histogram
	batchWriteDurationSecs prometheus.Histogram
	// 清理
	eventsPurged prometheus.Counter
}

// NewMetrics 创建指标收集器并注册到 reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "评估轮次总数（按触发来源和结果）",
			},
			[]string{"trigger", "result"}, // committed, failed, skipped
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "单轮评估耗时（含加载和提交）",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		alertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_fired_total",
				Help:      "Total number of alert events fired",
			},
			[]string{"alert_type", "risk_level"},
		),
		passErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pass_errors_total",
				Help:      "Total number of per-item evaluation errors",
			},
			[]string{"kind"},
		),
		positionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "positions_total",
				Help:      "Number of positions in the last pass",
			},
		),
		notComputable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "positions_not_computable",
				Help:      "Number of positions without computable metrics in the last pass",
			},
		),
		disableCandidates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "alerts_disable_candidates",
				Help:      "Alerts whose referenced position no longer exists",
			},
		),
		priceUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_updates_total",
				Help:      "Total number of price records refreshed",
			},
			[]string{"asset", "status"}, // applied, stale, invalid
		),
		websocketConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connected",
				Help:      "Price feed connection status (1=connected, 0=disconnected)",
			},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "通知分发结果",
			},
			[]string{"kind", "result"}, // event/summary; published, deduped, failed
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		cacheHitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hit_total",
				Help:      "缓存命中总数（按缓存类型）",
			},
			[]string{"cache_type"}, // price, dedup
		),
		cacheMissTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_miss_total",
				Help:      "缓存未命中总数（按缓存类型）",
			},
			[]string{"cache_type"},
		),
		messageQueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "message_queue_size",
				Help:      "消息队列当前大小",
			},
		),
		messageQueueFullTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "message_queue_full_total",
				Help:      "消息队列满事件总数",
			},
		),
		batchWriteSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_size",
				Help:      "批量写入大小分布",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 200},
			},
		),
		batchWriteDurationSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_duration_seconds",
				Help:      "批量写入耗时分布（秒）",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		eventsPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_events_purged_total",
				Help:      "Total number of alert events removed by the cleaner",
			},
		),
	}

	reg.MustRegister(
		m.passesTotal,
		m.passDuration,
		m.alertsFired,
		m.passErrors,
		m.positionsTotal,
		m.notComputable,
		m.disableCandidates,
		m.priceUpdates,
		m.websocketConnected,
		m.dispatchTotal,
		m.natsConnected,
		m.cacheHitTotal,
		m.cacheMissTotal,
		m.messageQueueSize,
		m.messageQueueFullTotal,
		m.batchWriteSize,
		m.batchWriteDurationSecs,
		m.eventsPurged,
	)

	return m
}

// ObservePass 记录一轮评估
func (m *Metrics) ObservePass(trigger, result string, d time.Duration) {
	m.passesTotal.WithLabelValues(trigger, result).Inc()
	m.passDuration.Observe(d.Seconds())
}

// IncAlertFired 增加告警触发计数
func (m *Metrics) IncAlertFired(alertType, riskLevel string) {
	m.alertsFired.WithLabelValues(alertType, riskLevel).Inc()
}

// IncPassError 增加评估错误计数
func (m *Metrics) IncPassError(kind string) {
	m.passErrors.WithLabelValues(kind).Inc()
}

// SetPositions 设置仓位统计
func (m *Metrics) SetPositions(total, notComputable int) {
	m.positionsTotal.Set(float64(total))
	m.notComputable.Set(float64(notComputable))
}

// SetDisableCandidates 设置待停用告警数
func (m *Metrics) SetDisableCandidates(count int) {
	m.disableCandidates.Set(float64(count))
}

// IncPriceUpdate 增加价格刷新计数
func (m *Metrics) IncPriceUpdate(asset, status string) {
	m.priceUpdates.WithLabelValues(asset, status).Inc()
}

// SetWebSocketConnected 设置价格源连接状态
func (m *Metrics) SetWebSocketConnected(connected bool) {
	m.websocketConnected.Set(boolGauge(connected))
}

// IncDispatch 增加分发计数
func (m *Metrics) IncDispatch(kind, result string) {
	m.dispatchTotal.WithLabelValues(kind, result).Inc()
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	m.natsConnected.Set(boolGauge(connected))
}

// IncCacheHit 增加缓存命中计数
func (m *Metrics) IncCacheHit(cacheType string) {
	m.cacheHitTotal.WithLabelValues(cacheType).Inc()
}

// IncCacheMiss 增加缓存未命中计数
func (m *Metrics) IncCacheMiss(cacheType string) {
	m.cacheMissTotal.WithLabelValues(cacheType).Inc()
}

// SetMessageQueueSize 设置消息队列大小
func (m *Metrics) SetMessageQueueSize(size int) {
	m.messageQueueSize.Set(float64(size))
}

// IncMessageQueueFull 增加消息队列满事件计数
func (m *Metrics) IncMessageQueueFull() {
	m.messageQueueFullTotal.Inc()
}

// ObserveBatchWrite 观察批量写入大小和耗时
func (m *Metrics) ObserveBatchWrite(size int, d time.Duration) {
	m.batchWriteSize.Observe(float64(size))
	m.batchWriteDurationSecs.Observe(d.Seconds())
}

// AddEventsPurged 增加清理事件数
func (m *Metrics) AddEventsPurged(n int64) {
	m.eventsPurged.Add(float64(n))
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics 获取全局指标收集器（注册到默认 registry）
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("risk_monitor", prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// InitMetrics 初始化指标收集器（供main使用）
func InitMetrics() {
	GetMetrics()
}
