package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/utrading/utrading-risk-monitor/internal/cache"
	"github.com/utrading/utrading-risk-monitor/internal/dal"
	"github.com/utrading/utrading-risk-monitor/internal/dao"
	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu        sync.Mutex
	events    []models.AlertEvent
	summaries []string
}

func (d *recordingDispatcher) Dispatch(events []models.AlertEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

func (d *recordingDispatcher) DispatchSummary(trigger string, _ risk.Summary, _ time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summaries = append(d.summaries, trigger)
}

func (d *recordingDispatcher) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events), len(d.summaries)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	dal.AutoMigrate(conn)
	dao.InitDAO(conn)
	t.Cleanup(func() {
		dao.InitDAO(nil)
		sqlDB.Close()
	})
	return conn
}

// seed BTC 多仓 p1（入场 100，强平 80），价格 90 对应行程 -50%
func seed(t *testing.T) {
	t.Helper()
	require.NoError(t, dao.Position().Create(&models.Position{
		ID: "p1", AssetType: "BTC", PositionType: models.PositionLong,
		EntryPrice: 100, LiquidationPrice: 80, Collateral: 100, Size: 1000,
	}))
	require.NoError(t, dao.Alert().Create(&models.Alert{
		ID: "a1", AlertType: models.AlertTravelPercent, TargetTravelPercent: -40,
		Frequency: 600, PositionReferenceID: "p1",
		AlertState: models.AlertState{Status: models.AlertActive},
	}))
	require.NoError(t, dao.Price().BatchUpsert([]*models.Price{
		{AssetType: "BTC", CurrentPrice: 90, LastUpdateTime: t0.Add(-time.Minute)},
	}))
}

func newManager(prices cache.PriceCacheInterface, d Dispatcher, now time.Time) *RiskManager {
	m := NewRiskManager(risk.NewEngine(risk.DefaultLevels()), prices, d)
	m.SetClock(func() time.Time { return now })
	return m
}

func TestEvaluate_FiresAndCommits(t *testing.T) {
	setupTestDB(t)
	seed(t)
	disp := &recordingDispatcher{}
	m := newManager(nil, disp, t0)

	res, err := m.Evaluate(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Len(t, res.FiredEvents, 1)
	assert.Equal(t, "MEDIUM", res.FiredEvents[0].RiskLevel)

	alert, err := dao.Alert().Get("a1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertTriggered, alert.Status)
	assert.Equal(t, int64(1), alert.Counter)
	require.NotNil(t, alert.LastTriggered)
	assert.True(t, alert.LastTriggered.Equal(t0))

	pos, err := dao.Position().Get("p1")
	require.NoError(t, err)
	assert.InDelta(t, -50.0, pos.CurrentTravelPercent, 1e-9)

	stored, err := dao.AlertEvent().ListSince(t0.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, res.FiredEvents[0].EventID, stored[0].EventID)

	events, summaries := disp.counts()
	assert.Equal(t, 1, events)
	assert.Equal(t, 1, summaries)

	// 冷却期内再次评估不触发
	m.SetClock(func() time.Time { return t0.Add(time.Minute) })
	res, err = m.Evaluate(context.Background(), TriggerSchedule)
	require.NoError(t, err)
	assert.Empty(t, res.FiredEvents)

	alert, err = dao.Alert().Get("a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alert.Counter)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["passes"])
	assert.Equal(t, TriggerSchedule, stats["last_trigger"])
}

func TestEvaluate_CachedPriceOverridesStored(t *testing.T) {
	setupTestDB(t)
	seed(t)

	prices := cache.NewPriceCache()
	prices.Roll("BTC", 99, "ws", t0)

	m := newManager(prices, &recordingDispatcher{}, t0)
	res, err := m.Evaluate(context.Background(), TriggerPriceBatch)
	require.NoError(t, err)
	assert.Empty(t, res.FiredEvents)

	require.Len(t, res.UpdatedPositions, 1)
	assert.InDelta(t, -5.0, res.UpdatedPositions[0].CurrentTravelPercent, 1e-9)
}

func TestEvaluate_StaleCacheIgnored(t *testing.T) {
	setupTestDB(t)
	seed(t)

	prices := cache.NewPriceCache()
	prices.Roll("BTC", 99, "ws", t0.Add(-time.Hour))

	m := newManager(prices, nil, t0)
	res, err := m.Evaluate(context.Background(), TriggerPriceBatch)
	require.NoError(t, err)
	assert.Len(t, res.FiredEvents, 1)
}

func TestEvaluate_Disabled(t *testing.T) {
	setupTestDB(t)
	seed(t)
	m := newManager(nil, nil, t0)
	m.SetEnabledFunc(func() bool { return false })

	_, err := m.Evaluate(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrMonitorDisabled)

	alert, err := dao.Alert().Get("a1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), alert.Counter)
}

func TestEvaluate_CommitFailureDispatchesNothing(t *testing.T) {
	conn := setupTestDB(t)
	seed(t)
	require.NoError(t, conn.Migrator().DropTable(&models.AlertEvent{}))

	disp := &recordingDispatcher{}
	m := newManager(nil, disp, t0)

	_, err := m.Evaluate(context.Background(), TriggerManual)
	require.Error(t, err)

	events, summaries := disp.counts()
	assert.Zero(t, events)
	assert.Zero(t, summaries)

	// 事务回滚，告警状态未变
	alert, err := dao.Alert().Get("a1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertActive, alert.Status)
	assert.Equal(t, int64(0), alert.Counter)
	assert.Equal(t, int64(1), m.GetStats()["failures"])
}

func TestEvaluate_NotInitialized(t *testing.T) {
	dao.InitDAO(nil)
	m := newManager(nil, nil, t0)
	_, err := m.Evaluate(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, dao.ErrNotInitialized)
}

func TestDisableActivateAlert(t *testing.T) {
	setupTestDB(t)
	seed(t)
	m := newManager(nil, nil, t0)

	require.NoError(t, m.DisableAlert("a1"))
	res, err := m.Evaluate(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, res.FiredEvents)

	require.NoError(t, m.ActivateAlert("a1"))
	res, err = m.Evaluate(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Len(t, res.FiredEvents, 1)

	assert.ErrorIs(t, m.DisableAlert("missing"), dao.ErrAlertNotFound)
}

func TestRegisterAlert(t *testing.T) {
	setupTestDB(t)
	m := newManager(nil, nil, t0)
	m.SetDefaultFrequency(900)

	now := t0
	require.NoError(t, m.RegisterAlert(&models.Alert{
		ID:        "g1",
		AlertType: models.AlertHeatIndex,
		AlertState: models.AlertState{
			Status:        models.AlertTriggered,
			Counter:       7,
			LastTriggered: &now,
		},
	}))
	require.NoError(t, m.RegisterAlert(&models.Alert{ID: "g2", AlertType: models.AlertHeatIndex, Frequency: 30}))
	assert.Error(t, m.RegisterAlert(&models.Alert{}))

	g1, err := dao.Alert().Get("g1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), g1.Frequency)
	assert.Equal(t, models.AlertActive, g1.Status)
	assert.Zero(t, g1.Counter)
	assert.Nil(t, g1.LastTriggered)

	g2, err := dao.Alert().Get("g2")
	require.NoError(t, err)
	assert.Equal(t, int64(30), g2.Frequency)
}

func TestTrigger_RunsAsync(t *testing.T) {
	setupTestDB(t)
	seed(t)
	disp := &recordingDispatcher{}
	m := newManager(nil, disp, t0)

	// 未启动时请求被合并
	m.Trigger(TriggerPriceBatch)
	m.Trigger(TriggerPriceBatch)
	assert.Equal(t, int64(1), m.GetStats()["coalesced"])

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		return m.GetStats()["passes"].(int64) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	m.Close()

	events, _ := disp.counts()
	assert.Equal(t, 1, events)

	// 关闭后忽略
	m.Trigger(TriggerSchedule)
	m.Close()
}
