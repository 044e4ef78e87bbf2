package risk

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testPrices(btc float64) []models.Price {
	return []models.Price{
		{AssetType: "BTC", CurrentPrice: btc, LastUpdateTime: t0, Source: "test"},
		{AssetType: "ETH", CurrentPrice: 110, LastUpdateTime: t0, Source: "test"},
	}
}

func travelAlert(id, positionID string, freq int64) models.Alert {
	return models.Alert{
		ID:                  id,
		AlertType:           models.AlertTravelPercent,
		TargetTravelPercent: -40,
		Frequency:           freq,
		PositionReferenceID: positionID,
		AlertState:          models.AlertState{Status: models.AlertActive},
	}
}

// commit 模拟调用方提交告警状态
func commit(alerts []models.Alert, res *PassResult) []models.Alert {
	updated := make(map[string]models.Alert, len(res.UpdatedAlerts))
	for _, a := range res.UpdatedAlerts {
		updated[a.ID] = a
	}
	out := make([]models.Alert, len(alerts))
	for i, a := range alerts {
		if u, ok := updated[a.ID]; ok {
			out[i] = u
		} else {
			out[i] = a
		}
	}
	return out
}

func TestRunPass_FiresAndUpdates(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	positions := []models.Position{shortPosition("p2"), longPosition("p1")}
	alerts := []models.Alert{travelAlert("a2", "p2", 60), travelAlert("a1", "p1", 60)}

	res := engine.RunPass(positions, testPrices(90), alerts, t0)

	require.Len(t, res.UpdatedPositions, 2)
	assert.Equal(t, "p1", res.UpdatedPositions[0].ID)
	assert.Equal(t, "p2", res.UpdatedPositions[1].ID)
	assert.InDelta(t, -50.0, res.UpdatedPositions[0].CurrentTravelPercent, 1e-9)
	assert.InDelta(t, -50.0, res.UpdatedPositions[1].CurrentTravelPercent, 1e-9) // 空头 110 / 120

	require.Len(t, res.FiredEvents, 2)
	assert.Equal(t, "a1", res.FiredEvents[0].AlertID)
	assert.Equal(t, "a2", res.FiredEvents[1].AlertID)
	require.Len(t, res.UpdatedAlerts, 2)
	for _, a := range res.UpdatedAlerts {
		assert.Equal(t, models.AlertTriggered, a.Status)
		assert.Equal(t, int64(1), a.Counter)
	}
	assert.Empty(t, res.Errors)

	// 入参未被修改
	assert.Equal(t, models.AlertActive, alerts[0].Status)
	assert.Nil(t, alerts[0].LastTriggered)
	assert.Equal(t, 0.0, positions[0].CurrentPrice)
}

func TestRunPass_MissingPrice(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	sol := longPosition("p3")
	sol.AssetType = "SOL"

	alerts := []models.Alert{
		travelAlert("a1", "p3", 0),
		{ID: "a2", AlertType: models.AlertHeatIndex, TriggerValue: 0, AssetType: "SOL", AlertState: models.AlertState{Status: models.AlertActive}},
	}

	res := engine.RunPass([]models.Position{sol}, testPrices(90), alerts, t0)

	assert.Empty(t, res.UpdatedPositions)
	assert.Equal(t, []string{"p3"}, res.NotComputable)
	assert.Empty(t, res.FiredEvents)
	assert.Empty(t, res.UpdatedAlerts)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrNotComputable)
	assert.Equal(t, KindNotComputable, res.Errors[0].Kind())
	assert.Equal(t, "p3", res.Errors[0].PositionID)
}

func TestRunPass_InvariantViolationIsolated(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	bad := longPosition("bad")
	bad.Leverage = -1

	res := engine.RunPass(
		[]models.Position{bad, longPosition("good")},
		testPrices(90),
		[]models.Alert{travelAlert("a-bad", "bad", 0), travelAlert("a-good", "good", 0)},
		t0,
	)

	require.Len(t, res.UpdatedPositions, 1)
	assert.Equal(t, "good", res.UpdatedPositions[0].ID)
	require.Len(t, res.FiredEvents, 1)
	assert.Equal(t, "a-good", res.FiredEvents[0].AlertID)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrInvariantViolation)
}

func TestRunPass_DuplicatePositionID(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	dup := longPosition("p1")
	dup.EntryPrice = 200

	res := engine.RunPass(
		[]models.Position{longPosition("p1"), dup},
		testPrices(90),
		[]models.Alert{travelAlert("a1", "p1", 0)},
		t0,
	)

	require.Len(t, res.UpdatedPositions, 1)
	assert.Equal(t, 100.0, res.UpdatedPositions[0].EntryPrice)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrInvariantViolation)
	assert.Equal(t, "p1", res.Errors[0].PositionID)
	assert.Equal(t, KindInvariantViolation, res.Errors[0].Kind())
	assert.Len(t, res.FiredEvents, 1)
	assert.Equal(t, 1, res.Summary.Errors)
}

func TestRunPass_ConfigurationErrorIsolated(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	alerts := []models.Alert{
		{ID: "a0", AlertType: "Unknown", PositionReferenceID: "p1", AlertState: models.AlertState{Status: models.AlertActive}},
		travelAlert("a1", "p1", 0),
	}

	res := engine.RunPass([]models.Position{longPosition("p1")}, testPrices(90), alerts, t0)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindConfiguration, res.Errors[0].Kind())
	assert.Equal(t, "a0", res.Errors[0].AlertID)
	require.Len(t, res.FiredEvents, 1)
	assert.Equal(t, "a1", res.FiredEvents[0].AlertID)
}

func TestRunPass_DisabledAndOrphan(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	disabled := travelAlert("a1", "p1", 0)
	disabled.Status = models.AlertDisabled

	res := engine.RunPass(
		[]models.Position{longPosition("p1")},
		testPrices(90),
		[]models.Alert{disabled, travelAlert("a2", "deleted", 0)},
		t0,
	)

	assert.Empty(t, res.FiredEvents)
	assert.Empty(t, res.UpdatedAlerts)
	assert.Equal(t, []string{"a2"}, res.DisableCandidates)
}

func TestRunPass_GlobalAlert(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	p1 := longPosition("p1")
	p2 := longPosition("p2")
	eth := shortPosition("p3")

	global := models.Alert{
		ID:                  "g1",
		AlertType:           models.AlertTravelPercent,
		TargetTravelPercent: -40,
		AssetType:           "BTC",
		AlertState:          models.AlertState{Status: models.AlertActive},
	}

	// frequency 0：每个满足条件的仓位都触发
	res := engine.RunPass([]models.Position{p2, eth, p1}, testPrices(90), []models.Alert{global}, t0)
	require.Len(t, res.FiredEvents, 2)
	assert.Equal(t, "p1", res.FiredEvents[0].PositionID)
	assert.Equal(t, "p2", res.FiredEvents[1].PositionID)
	require.Len(t, res.UpdatedAlerts, 1)
	assert.Equal(t, int64(2), res.UpdatedAlerts[0].Counter)

	// frequency > 0：同一轮内节流只允许一次
	global.Frequency = 60
	res = engine.RunPass([]models.Position{p2, eth, p1}, testPrices(90), []models.Alert{global}, t0)
	require.Len(t, res.FiredEvents, 1)
	assert.Equal(t, "p1", res.FiredEvents[0].PositionID)
}

func TestRunPass_Idempotent(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	positions := []models.Position{longPosition("p1"), shortPosition("p2")}
	alerts := []models.Alert{travelAlert("a1", "p1", 600)}

	first := engine.RunPass(positions, testPrices(90), alerts, t0)
	second := engine.RunPass(positions, testPrices(90), alerts, t0)

	assert.Equal(t, first.UpdatedPositions, second.UpdatedPositions)
	assert.Equal(t, first.FiredEvents, second.FiredEvents)

	// 提交后在窗口内重复执行不再触发
	committed := commit(alerts, first)
	for i := 1; i <= 5; i++ {
		res := engine.RunPass(positions, testPrices(90), committed, t0.Add(time.Duration(i*60)*time.Second))
		assert.Empty(t, res.FiredEvents, "run %d", i)
		committed = commit(committed, res)
	}
}

func TestRunPass_ThrottleLaw(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	positions := []models.Position{longPosition("p1")}
	alerts := []models.Alert{travelAlert("a1", "p1", 60)}

	// 条件持续满足，T = 300s，F = 60s
	fires := 0
	for sec := 0; sec <= 300; sec += 10 {
		res := engine.RunPass(positions, testPrices(90), alerts, t0.Add(time.Duration(sec)*time.Second))
		fires += len(res.FiredEvents)
		alerts = commit(alerts, res)
	}

	assert.Equal(t, 300/60+1, fires)
	assert.Equal(t, int64(fires), alerts[0].Counter)
}

func TestRunPass_Rearm(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	positions := []models.Position{longPosition("p1")}
	alerts := []models.Alert{travelAlert("a1", "p1", 60)}

	res := engine.RunPass(positions, testPrices(90), alerts, t0)
	alerts = commit(alerts, res)
	require.Equal(t, models.AlertTriggered, alerts[0].Status)

	// 价格恢复，条件不满足但窗口已过：重新置为 Active
	res = engine.RunPass(positions, testPrices(99), alerts, t0.Add(2*time.Minute))
	assert.Empty(t, res.FiredEvents)
	require.Len(t, res.UpdatedAlerts, 1)
	assert.Equal(t, models.AlertActive, res.UpdatedAlerts[0].Status)
	assert.Equal(t, int64(1), res.UpdatedAlerts[0].Counter)
}

func TestRunPass_HeatCarriedAcrossPasses(t *testing.T) {
	engine := NewEngine(DefaultLevels())

	first := engine.RunPass([]models.Position{longPosition("p1")}, testPrices(95), nil, t0)
	require.Len(t, first.UpdatedPositions, 1)
	heat1 := first.UpdatedPositions[0].HeatPoints

	second := engine.RunPass(first.UpdatedPositions, testPrices(85), nil, t0.Add(time.Minute))
	require.Len(t, second.UpdatedPositions, 1)
	assert.Equal(t, heat1, second.UpdatedPositions[0].CurrentHeatPoints)
	assert.Greater(t, second.UpdatedPositions[0].HeatPoints, heat1)
}

func TestRunPass_InvalidPriceRecord(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	later := t0.Add(time.Hour)
	prices := []models.Price{{AssetType: "BTC", CurrentPrice: 90, LastUpdateTime: t0, PreviousUpdateTime: &later}}

	res := engine.RunPass([]models.Position{longPosition("p1")}, prices, nil, t0)

	assert.Empty(t, res.UpdatedPositions)
	assert.Equal(t, []string{"p1"}, res.NotComputable)
	assert.Len(t, res.Errors, 2)
}

func TestRunPass_Summary(t *testing.T) {
	engine := NewEngine(DefaultLevels())
	sol := longPosition("p3")
	sol.AssetType = "SOL"

	res := engine.RunPass([]models.Position{longPosition("p1"), shortPosition("p2"), sol}, testPrices(90), nil, t0)
	s := res.Summary

	assert.Equal(t, 3, s.Positions)
	assert.Equal(t, 2, s.Computable)
	assert.Equal(t, 1, s.NotComputable)
	assert.Equal(t, 2000.0, s.TotalSize)
	assert.Equal(t, 300.0, s.TotalCollateral)
	assert.InDelta(t, 90000.0+110000.0, s.TotalValue, 1e-6)
	assert.InDelta(t, (10*1000.0+5*1000.0)/2000.0, s.AvgLeverage, 1e-9)
	assert.InDelta(t, -50.0, s.AvgTravelPercent, 1e-9)
	assert.Equal(t, 1, s.Errors)
}

func BenchmarkRunPass(b *testing.B) {
	engine := NewEngine(DefaultLevels())
	positions := make([]models.Position, 0, 1000)
	alerts := make([]models.Alert, 0, 1000)
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("p%05d", i)
		positions = append(positions, longPosition(id))
		alerts = append(alerts, travelAlert("a-"+id, id, 60))
	}
	prices := testPrices(90)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.RunPass(positions, prices, alerts, t0)
	}
}
