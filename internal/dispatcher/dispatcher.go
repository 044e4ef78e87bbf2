package dispatcher

import (
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

const (
	KindAlert   = "alert"
	KindSummary = "summary"

	ResultSuccess   = "success"
	ResultError     = "error"
	ResultDuplicate = "duplicate"
)

// Publisher 事件发布端
type Publisher interface {
	PublishAlertEvent(ev models.AlertEvent) error
	PublishPassSummary(trigger string, summary risk.Summary, ts time.Time) error
}

// Deduper 按事件 ID 去重
type Deduper interface {
	TryMark(eventID string) bool
	Forget(eventID string)
}

// Dispatcher 告警事件分发器
// 事件在提交成功后才会进入分发，同一事件 ID 只发布一次
type Dispatcher struct {
	publisher Publisher
	dedup     Deduper
	pool      *ants.Pool
	wg        sync.WaitGroup
}

// New 创建分发器，publisher 为 nil 时只记录日志
func New(publisher Publisher, dedup Deduper, poolSize int) *Dispatcher {
	if poolSize <= 0 {
		poolSize = 64
	}
	pool, _ := ants.NewPool(poolSize)
	return &Dispatcher{
		publisher: publisher,
		dedup:     dedup,
		pool:      pool,
	}
}

// Dispatch 异步分发一批已提交的事件
func (d *Dispatcher) Dispatch(events []models.AlertEvent) {
	for _, ev := range events {
		if d.dedup != nil && !d.dedup.TryMark(ev.EventID) {
			monitor.IncDispatch(KindAlert, ResultDuplicate)
			continue
		}

		event := ev
		d.wg.Add(1)
		err := d.pool.Submit(func() {
			defer d.wg.Done()
			d.publishAlert(event)
		})
		if err != nil {
			// 池满或已关闭，降级为同步发布
			logger.Warn().Err(err).Str("event_id", event.EventID).Msg("dispatcher pool unavailable, publishing synchronously")
			d.publishAlert(event)
			d.wg.Done()
		}
	}
}

func (d *Dispatcher) publishAlert(ev models.AlertEvent) {
	logger.Info().
		Str("event_id", ev.EventID).
		Str("alert_id", ev.AlertID).
		Str("position_id", ev.PositionID).
		Str("alert_type", string(ev.AlertType)).
		Float64("value", ev.MetricValue).
		Float64("threshold", ev.Threshold).
		Str("risk_level", ev.RiskLevel).
		Msg("alert fired")

	if d.publisher == nil {
		monitor.IncDispatch(KindAlert, ResultSuccess)
		return
	}

	if err := d.publisher.PublishAlertEvent(ev); err != nil {
		if d.dedup != nil {
			d.dedup.Forget(ev.EventID)
		}
		monitor.IncDispatch(KindAlert, ResultError)
		logger.Error().Err(err).Str("event_id", ev.EventID).Msg("publish alert event failed")
		return
	}
	monitor.IncDispatch(KindAlert, ResultSuccess)
}

// DispatchSummary 同步发布轮次汇总
func (d *Dispatcher) DispatchSummary(trigger string, summary risk.Summary, ts time.Time) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishPassSummary(trigger, summary, ts); err != nil {
		monitor.IncDispatch(KindSummary, ResultError)
		logger.Warn().Err(err).Msg("publish pass summary failed")
		return
	}
	monitor.IncDispatch(KindSummary, ResultSuccess)
}

// Wait 等待已提交的分发任务完成
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Running 正在执行的分发任务数
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Close 等待在途任务后释放协程池
func (d *Dispatcher) Close() {
	d.wg.Wait()
	if d.pool != nil {
		d.pool.Release()
	}
}
