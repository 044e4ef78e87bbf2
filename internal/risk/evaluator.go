package risk

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

// DecisionKind 评估结论
type DecisionKind int

const (
	DecisionSkip DecisionKind = iota
	DecisionFire
	DecisionDisable
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionFire:
		return "fire"
	case DecisionDisable:
		return "disable"
	default:
		return "skip"
	}
}

// Skip 原因
const (
	SkipDisabled        = "disabled"
	SkipNotComputable   = "not_computable"
	SkipConditionNotMet = "condition_not_met"
	SkipThrottled       = "throttled"
	DisablePositionGone = "position_missing"
)

// Decision 单个告警对单个仓位的评估结果
type Decision struct {
	Kind   DecisionKind
	Reason string
	Event  *models.AlertEvent
}

// Snapshot 评估输入：已写入本轮指标的仓位
type Snapshot struct {
	Position models.Position
	Metrics  Metrics
}

// eventNamespace 事件ID命名空间，保证相同输入生成相同事件ID
var eventNamespace = uuid.MustParse("8f2d3c51-6a4e-4b7f-9a0e-2f5c7d1b9e44")

// Evaluator 告警评估器
type Evaluator struct {
	levels Levels
}

// NewEvaluator 创建告警评估器
func NewEvaluator(levels Levels) *Evaluator {
	return &Evaluator{levels: levels}
}

// Evaluate 评估告警，触发时直接更新 alert 的节流状态
// snap 为 nil 表示告警关联的仓位不在快照中，返回 Disable 建议，状态不变
func (e *Evaluator) Evaluate(alert *models.Alert, snap *Snapshot, now time.Time) (Decision, error) {
	if alert.Status == models.AlertDisabled {
		return Decision{Kind: DecisionSkip, Reason: SkipDisabled}, nil
	}
	if snap == nil {
		return Decision{Kind: DecisionDisable, Reason: DisablePositionGone}, nil
	}

	if err := ValidateAlert(alert); err != nil {
		return Decision{}, err
	}

	Rearm(alert, now)

	if !snap.Metrics.Computable {
		return Decision{Kind: DecisionSkip, Reason: SkipNotComputable}, nil
	}

	metric, threshold, hit := condition(alert, snap)
	if !hit {
		return Decision{Kind: DecisionSkip, Reason: SkipConditionNotMet}, nil
	}
	if !MayFire(alert, now) {
		return Decision{Kind: DecisionSkip, Reason: SkipThrottled}, nil
	}

	RecordFire(alert, now)
	alert.Status = models.AlertTriggered

	return Decision{
		Kind: DecisionFire,
		Event: &models.AlertEvent{
			EventID:          eventID(alert.ID, snap.Position.ID, now),
			AlertID:          alert.ID,
			PositionID:       snap.Position.ID,
			AssetType:        snap.Position.AssetType,
			AlertType:        alert.AlertType,
			MetricValue:      metric,
			Threshold:        threshold,
			RiskLevel:        e.levels.Classify(snap.Metrics.TravelPercent),
			NotificationType: alert.NotificationType,
			Timestamp:        now,
		},
	}, nil
}

// Threshold 返回告警实际使用的阈值
// 专用字段为 0 时回退到 TriggerValue
func Threshold(alert *models.Alert) float64 {
	switch alert.AlertType {
	case models.AlertTravelPercent:
		if alert.TargetTravelPercent != 0 {
			return alert.TargetTravelPercent
		}
	case models.AlertLiquidationDistance:
		if alert.LiquidationDistance != 0 {
			return alert.LiquidationDistance
		}
	case models.AlertPriceTarget:
		if alert.TriggerValue == 0 {
			return alert.LiquidationPrice
		}
	}
	return alert.TriggerValue
}

// ValidateAlert 校验告警类型与阈值
func ValidateAlert(alert *models.Alert) error {
	if alert.Frequency < 0 {
		return fmt.Errorf("%w: negative frequency %d", ErrConfiguration, alert.Frequency)
	}

	threshold := Threshold(alert)
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return fmt.Errorf("%w: non-finite threshold for %s", ErrConfiguration, alert.AlertType)
	}

	switch alert.AlertType {
	case models.AlertTravelPercent:
	case models.AlertLiquidationDistance, models.AlertHeatIndex:
		if threshold < 0 {
			return fmt.Errorf("%w: %s threshold %v must not be negative", ErrConfiguration, alert.AlertType, threshold)
		}
	case models.AlertPriceTarget:
		if threshold <= 0 {
			return fmt.Errorf("%w: price target %v must be positive", ErrConfiguration, threshold)
		}
	default:
		return fmt.Errorf("%w: unknown alert type %q", ErrConfiguration, alert.AlertType)
	}
	return nil
}

// condition 返回 (指标值, 阈值, 是否满足)
// PriceTarget 只判断当前价格位于目标价哪一侧（多头 >=，空头 <=），
// 不要求本轮相对上一轮发生穿越；持续满足时由节流窗口限制重复触发
func condition(alert *models.Alert, snap *Snapshot) (float64, float64, bool) {
	threshold := Threshold(alert)
	m := snap.Metrics

	switch alert.AlertType {
	case models.AlertTravelPercent:
		return m.TravelPercent, threshold, m.TravelPercent <= threshold
	case models.AlertLiquidationDistance:
		return m.LiquidationDistance, threshold, m.LiquidationDistance <= threshold
	case models.AlertPriceTarget:
		// 多头价格上穿目标，空头价格下穿目标
		if snap.Position.PositionType == models.PositionShort {
			return m.CurrentPrice, threshold, m.CurrentPrice <= threshold
		}
		return m.CurrentPrice, threshold, m.CurrentPrice >= threshold
	case models.AlertHeatIndex:
		return m.HeatPoints, threshold, m.HeatPoints >= threshold
	}
	return 0, threshold, false
}

func eventID(alertID, positionID string, now time.Time) string {
	key := alertID + "|" + positionID + "|" + strconv.FormatInt(now.UnixNano(), 10)
	return uuid.NewSHA1(eventNamespace, []byte(key)).String()
}
