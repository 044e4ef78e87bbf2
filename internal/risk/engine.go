package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

// PassResult 一轮评估的完整结果，由调用方整体提交或整体丢弃
type PassResult struct {
	Timestamp time.Time

	// 本轮成功计算指标的仓位（按 ID 升序）
	UpdatedPositions []models.Position
	// 状态发生变化的告警（按 ID 升序）
	UpdatedAlerts []models.Alert
	// 触发的事件（按告警 ID、仓位 ID 升序）
	FiredEvents []models.AlertEvent
	// 本轮无法计算指标的仓位 ID
	NotComputable []string
	// 关联仓位已不存在的告警，建议调用方停用
	DisableCandidates []string

	Errors  []*PassError
	Summary Summary
}

// Summary 组合汇总（仅统计可计算仓位）
type Summary struct {
	Positions        int     `json:"positions"`
	Computable       int     `json:"computable"`
	NotComputable    int     `json:"not_computable"`
	TotalSize        float64 `json:"total_size"`
	TotalValue       float64 `json:"total_value"`
	TotalCollateral  float64 `json:"total_collateral"`
	AvgLeverage      float64 `json:"avg_leverage"`       // 按 size 加权
	AvgTravelPercent float64 `json:"avg_travel_percent"` // 按 size 加权
	AvgHeatPoints    float64 `json:"avg_heat_points"`    // 非零热度均值
	AlertsFired      int     `json:"alerts_fired"`
	Errors           int     `json:"errors"`
}

// Engine 仓位风险与告警评估引擎
// 无内部状态，RunPass 只依赖入参快照，结果通过返回值交给调用方
type Engine struct {
	evaluator *Evaluator
}

// NewEngine 创建评估引擎
func NewEngine(levels Levels) *Engine {
	return &Engine{evaluator: NewEvaluator(levels)}
}

// Evaluator 返回内部告警评估器
func (e *Engine) Evaluator() *Evaluator {
	return e.evaluator
}

type positionState struct {
	position models.Position
	snap     *Snapshot // nil: 不可计算或违反约束
}

// RunPass 执行一轮评估
// 入参会被复制，调用方的切片不会被修改
func (e *Engine) RunPass(positions []models.Position, prices []models.Price, alerts []models.Alert, now time.Time) *PassResult {
	res := &PassResult{Timestamp: now}

	priceByAsset := e.indexPrices(prices, res)
	states := e.computePositions(positions, priceByAsset, now, res)
	e.evaluateAlerts(alerts, states, now, res)

	res.Summary = summarize(res, len(states.order))
	return res
}

type positionStates struct {
	order []string
	byID  map[string]*positionState
}

func (e *Engine) indexPrices(prices []models.Price, res *PassResult) map[string]*models.Price {
	index := make(map[string]*models.Price, len(prices))
	for i := range prices {
		p := prices[i]
		if err := p.Validate(); err != nil {
			res.Errors = append(res.Errors, &PassError{Err: fmt.Errorf("%w: %v", ErrNotComputable, err)})
			continue
		}
		index[p.AssetType] = &p
	}
	return index
}

func (e *Engine) computePositions(positions []models.Position, prices map[string]*models.Price, now time.Time, res *PassResult) positionStates {
	sorted := make([]models.Position, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	states := positionStates{
		order: make([]string, 0, len(sorted)),
		byID:  make(map[string]*positionState, len(sorted)),
	}

	for _, pos := range sorted {
		// 重复 ID 只保留第一条
		if _, dup := states.byID[pos.ID]; dup {
			res.Errors = append(res.Errors, &PassError{
				PositionID: pos.ID,
				Err:        fmt.Errorf("%w: duplicate position id", ErrInvariantViolation),
			})
			continue
		}
		state := &positionState{position: pos}
		states.byID[pos.ID] = state
		states.order = append(states.order, pos.ID)

		if err := Validate(pos); err != nil {
			res.Errors = append(res.Errors, &PassError{PositionID: pos.ID, Err: err})
			continue
		}

		m := Compute(pos, prices[pos.AssetType])
		if !m.Computable {
			res.NotComputable = append(res.NotComputable, pos.ID)
			res.Errors = append(res.Errors, &PassError{
				PositionID: pos.ID,
				Err:        fmt.Errorf("%w: %s (asset %s)", ErrNotComputable, m.Reason, pos.AssetType),
			})
			continue
		}

		updated := Apply(pos, m, now)
		state.position = updated
		state.snap = &Snapshot{Position: updated, Metrics: m}
		res.UpdatedPositions = append(res.UpdatedPositions, updated)
	}

	return states
}

func (e *Engine) evaluateAlerts(alerts []models.Alert, states positionStates, now time.Time, res *PassResult) {
	sorted := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		sorted = append(sorted, a.Clone())
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		alert := &sorted[i]
		before := alert.AlertState

		if alert.Status == models.AlertDisabled {
			continue
		}

		if err := ValidateAlert(alert); err != nil {
			res.Errors = append(res.Errors, &PassError{AlertID: alert.ID, PositionID: alert.PositionReferenceID, Err: err})
			continue
		}

		for _, snap := range e.targets(alert, states, res) {
			decision, err := e.evaluator.Evaluate(alert, snap, now)
			if err != nil {
				res.Errors = append(res.Errors, &PassError{AlertID: alert.ID, Err: err})
				break
			}
			switch decision.Kind {
			case DecisionFire:
				res.FiredEvents = append(res.FiredEvents, *decision.Event)
			case DecisionDisable:
				res.DisableCandidates = append(res.DisableCandidates, alert.ID)
			}
		}

		if stateChanged(before, alert.AlertState) {
			res.UpdatedAlerts = append(res.UpdatedAlerts, *alert)
		}
	}
}

// targets 返回告警需要评估的快照
// 关联仓位不可计算或违反约束时返回空；关联仓位不存在时返回单个 nil
func (e *Engine) targets(alert *models.Alert, states positionStates, res *PassResult) []*Snapshot {
	if !alert.IsGlobal() {
		state, ok := states.byID[alert.PositionReferenceID]
		if !ok {
			return []*Snapshot{nil}
		}
		if state.snap == nil {
			return nil
		}
		return []*Snapshot{state.snap}
	}

	var snaps []*Snapshot
	for _, id := range states.order {
		state := states.byID[id]
		if state.snap == nil {
			continue
		}
		if alert.AssetType != "" && alert.AssetType != state.position.AssetType {
			continue
		}
		snaps = append(snaps, state.snap)
	}
	return snaps
}

func stateChanged(before, after models.AlertState) bool {
	if before.Status != after.Status || before.Counter != after.Counter {
		return true
	}
	if (before.LastTriggered == nil) != (after.LastTriggered == nil) {
		return true
	}
	return before.LastTriggered != nil && !before.LastTriggered.Equal(*after.LastTriggered)
}

func summarize(res *PassResult, total int) Summary {
	s := Summary{
		Positions:     total,
		Computable:    len(res.UpdatedPositions),
		NotComputable: len(res.NotComputable),
		AlertsFired:   len(res.FiredEvents),
		Errors:        len(res.Errors),
	}

	var weightedLeverage, weightedTravel, heatSum float64
	heatCount := 0
	for _, p := range res.UpdatedPositions {
		s.TotalSize += p.Size
		s.TotalValue += p.Value
		s.TotalCollateral += p.Collateral
		weightedLeverage += ResolveLeverage(p) * p.Size
		weightedTravel += p.CurrentTravelPercent * p.Size
		if p.HeatPoints != 0 {
			heatSum += p.HeatPoints
			heatCount++
		}
	}

	if s.TotalSize > 0 {
		s.AvgLeverage = weightedLeverage / s.TotalSize
		s.AvgTravelPercent = weightedTravel / s.TotalSize
	}
	if heatCount > 0 {
		s.AvgHeatPoints = heatSum / float64(heatCount)
	}
	return s
}
