package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/cache"
	"github.com/utrading/utrading-risk-monitor/internal/dao"
	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/internal/processor"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
	"github.com/utrading/utrading-risk-monitor/pkg/goplus"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

const (
	TriggerManual     = monitor.TriggerManual
	TriggerSchedule   = "schedule"
	TriggerPriceBatch = processor.TriggerPriceBatch
)

var ErrMonitorDisabled = errors.New("alert monitor disabled")

var (
	_ monitor.ManagerRef        = (*RiskManager)(nil)
	_ processor.EvaluateTrigger = (*RiskManager)(nil)
)

// Dispatcher 已提交事件的分发端
type Dispatcher interface {
	Dispatch(events []models.AlertEvent)
	DispatchSummary(trigger string, summary risk.Summary, ts time.Time)
}

// RiskManager 评估编排：读取快照、执行引擎、提交结果、分发事件
// 同一时刻只有一轮评估在执行
type RiskManager struct {
	engine     *risk.Engine
	prices     cache.PriceCacheInterface
	dispatcher Dispatcher

	enabled          func() bool
	defaultFrequency int64
	now              func() time.Time

	mu       sync.Mutex // 评估互斥
	triggers chan string
	done     chan struct{}
	wg       goplus.WaitGroup
	started  atomic.Bool
	closed   atomic.Bool

	passes      atomic.Int64
	failures    atomic.Int64
	coalesced   atomic.Int64
	statsMu     sync.RWMutex
	lastPass    time.Time
	lastTrigger string
	lastSummary risk.Summary
}

// NewRiskManager 创建风险管理器，prices 和 dispatcher 可为 nil
func NewRiskManager(engine *risk.Engine, prices cache.PriceCacheInterface, dispatcher Dispatcher) *RiskManager {
	return &RiskManager{
		engine:     engine,
		prices:     prices,
		dispatcher: dispatcher,
		enabled:    func() bool { return true },
		now:        time.Now,
		triggers:   make(chan string, 1),
		done:       make(chan struct{}),
	}
}

// SetEnabledFunc 设置开关来源（通常读取热加载配置）
func (m *RiskManager) SetEnabledFunc(fn func() bool) {
	if fn != nil {
		m.enabled = fn
	}
}

// SetDefaultFrequency 设置新注册告警的默认冷却（秒）
func (m *RiskManager) SetDefaultFrequency(seconds int64) {
	m.defaultFrequency = seconds
}

// SetClock 替换时钟
func (m *RiskManager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

func (m *RiskManager) Enabled() bool {
	return m.enabled()
}

// Evaluate 同步执行一轮评估
// 提交失败时整轮结果丢弃，不分发任何事件
func (m *RiskManager) Evaluate(ctx context.Context, trigger string) (*risk.PassResult, error) {
	if !m.Enabled() {
		return nil, ErrMonitorDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	positions, alerts, prices, err := m.loadSnapshot()
	if err != nil {
		m.failures.Add(1)
		monitor.RecordPassFailure(trigger, "load_error", time.Since(start))
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	res := m.engine.RunPass(positions, prices, alerts, m.now())

	if err = dao.CommitPass(res); err != nil {
		m.failures.Add(1)
		monitor.RecordPassFailure(trigger, "commit_error", time.Since(start))
		return nil, fmt.Errorf("commit pass: %w", err)
	}

	elapsed := time.Since(start)
	monitor.RecordPass(trigger, res, elapsed)
	m.report(trigger, res, elapsed)

	if m.dispatcher != nil {
		m.dispatcher.Dispatch(res.FiredEvents)
		m.dispatcher.DispatchSummary(trigger, res.Summary, res.Timestamp)
	}

	m.passes.Add(1)
	m.statsMu.Lock()
	m.lastPass = res.Timestamp
	m.lastTrigger = trigger
	m.lastSummary = res.Summary
	m.statsMu.Unlock()

	return res, nil
}

func (m *RiskManager) loadSnapshot() ([]models.Position, []models.Alert, []models.Price, error) {
	positions, err := dao.Position().List()
	if err != nil {
		return nil, nil, nil, err
	}
	alerts, err := dao.Alert().List()
	if err != nil {
		return nil, nil, nil, err
	}
	prices, err := dao.Price().List()
	if err != nil {
		return nil, nil, nil, err
	}
	return positions, alerts, m.mergePrices(prices), nil
}

// mergePrices 缓存中更新的价格覆盖数据库记录（批量写入尚未落库）
func (m *RiskManager) mergePrices(stored []models.Price) []models.Price {
	if m.prices == nil {
		return stored
	}

	index := make(map[string]int, len(stored))
	for i := range stored {
		index[stored[i].AssetType] = i
	}

	for _, cached := range m.prices.Snapshot() {
		i, ok := index[cached.AssetType]
		if !ok {
			index[cached.AssetType] = len(stored)
			stored = append(stored, cached)
			continue
		}
		if cached.LastUpdateTime.After(stored[i].LastUpdateTime) {
			stored[i] = cached
		}
	}
	return stored
}

func (m *RiskManager) report(trigger string, res *risk.PassResult, elapsed time.Duration) {
	for _, e := range res.Errors {
		ev := logger.Warn()
		if e.Kind() == risk.KindInvariantViolation {
			ev = logger.Error()
		}
		ev.Str("kind", e.Kind()).
			Str("position_id", e.PositionID).
			Str("alert_id", e.AlertID).
			Err(e.Err).
			Msg("evaluation error")
	}

	for _, id := range res.DisableCandidates {
		logger.Warn().Str("alert_id", id).Msg("alert references missing position, consider disabling")
	}

	logger.Info().
		Str("trigger", trigger).
		Int("positions", res.Summary.Positions).
		Int("not_computable", res.Summary.NotComputable).
		Int("alerts_fired", res.Summary.AlertsFired).
		Int("errors", res.Summary.Errors).
		Dur("elapsed", elapsed).
		Msg("evaluation pass committed")
}

// Trigger 异步请求一轮评估，评估进行中时多次请求合并为一次
func (m *RiskManager) Trigger(reason string) {
	if m.closed.Load() {
		return
	}
	select {
	case m.triggers <- reason:
	default:
		m.coalesced.Add(1)
	}
}

// Start 启动异步评估协程
func (m *RiskManager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case reason := <-m.triggers:
				if !m.Enabled() {
					continue
				}
				if _, err := m.Evaluate(ctx, reason); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Str("trigger", reason).Msg("evaluation failed")
				}
			}
		}
	})
}

// Close 停止异步评估，等待当前一轮结束
func (m *RiskManager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	close(m.done)
	m.wg.Wait()
}

// DisableAlert 外部显式停用告警
func (m *RiskManager) DisableAlert(id string) error {
	return m.setStatus(id, models.AlertDisabled)
}

// ActivateAlert 外部显式启用告警
func (m *RiskManager) ActivateAlert(id string) error {
	return m.setStatus(id, models.AlertActive)
}

func (m *RiskManager) setStatus(id string, status models.AlertStatus) error {
	// 与评估互斥，避免本轮提交覆盖外部命令
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := dao.Alert().SetStatus(id, status); err != nil {
		return err
	}
	logger.Info().Str("alert_id", id).Str("status", string(status)).Msg("alert status changed")
	return nil
}

// RegisterAlert 写入新告警：状态重置为 Active，未设置冷却时使用默认值
func (m *RiskManager) RegisterAlert(alert *models.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("alert id required")
	}
	if alert.Frequency == 0 {
		alert.Frequency = m.defaultFrequency
	}
	alert.AlertState = models.AlertState{Status: models.AlertActive}

	m.mu.Lock()
	defer m.mu.Unlock()
	return dao.Alert().Create(alert)
}

// GetStats 获取统计信息
func (m *RiskManager) GetStats() map[string]any {
	m.statsMu.RLock()
	lastPass := m.lastPass
	lastTrigger := m.lastTrigger
	summary := m.lastSummary
	m.statsMu.RUnlock()

	stats := map[string]any{
		"enabled":   m.Enabled(),
		"passes":    m.passes.Load(),
		"failures":  m.failures.Load(),
		"coalesced": m.coalesced.Load(),
		"summary":   summary,
	}
	if !lastPass.IsZero() {
		stats["last_pass"] = lastPass.Format(time.RFC3339)
		stats["last_trigger"] = lastTrigger
	}
	return stats
}
