package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

// Metrics 单个仓位在某一价格下的衍生风险指标
// Computable 为 false 时其余字段无意义，Reason 说明原因
type Metrics struct {
	Computable bool
	Reason     string

	CurrentPrice        float64
	Value               float64
	TravelPercent       float64
	LiquidationDistance float64
	HeatPoints          float64
	Leverage            float64
}

func notComputable(reason string) Metrics {
	return Metrics{Reason: reason}
}

// ResolveLeverage 返回仓位杠杆，未提供时按 size / collateral 推导
func ResolveLeverage(pos models.Position) float64 {
	if pos.Leverage != 0 {
		return pos.Leverage
	}
	if pos.Collateral > 0 {
		return pos.Size / pos.Collateral
	}
	return 0
}

// Validate 检查仓位静态条款
// 开仓价与强平价相等不算违反约束，由 Compute 标记为不可计算
func Validate(pos models.Position) error {
	if pos.PositionType != models.PositionLong && pos.PositionType != models.PositionShort {
		return fmt.Errorf("%w: unknown position type %q", ErrInvariantViolation, pos.PositionType)
	}
	if !isFinite(pos.EntryPrice) || !isFinite(pos.LiquidationPrice) || !isFinite(pos.Size) || !isFinite(pos.Collateral) {
		return fmt.Errorf("%w: non-finite static terms", ErrInvariantViolation)
	}
	if pos.Collateral <= 0 {
		return fmt.Errorf("%w: collateral %v must be positive", ErrInvariantViolation, pos.Collateral)
	}
	if pos.Size < 0 {
		return fmt.Errorf("%w: size %v must not be negative", ErrInvariantViolation, pos.Size)
	}
	if lev := ResolveLeverage(pos); !(lev > 0) || math.IsInf(lev, 0) {
		return fmt.Errorf("%w: leverage %v must be positive", ErrInvariantViolation, lev)
	}
	if pos.IsLong() && pos.LiquidationPrice > pos.EntryPrice {
		return fmt.Errorf("%w: long liquidation %v above entry %v", ErrInvariantViolation, pos.LiquidationPrice, pos.EntryPrice)
	}
	if !pos.IsLong() && pos.LiquidationPrice < pos.EntryPrice {
		return fmt.Errorf("%w: short liquidation %v below entry %v", ErrInvariantViolation, pos.LiquidationPrice, pos.EntryPrice)
	}
	return nil
}

// Compute 计算仓位衍生指标（纯函数）
func Compute(pos models.Position, price *models.Price) Metrics {
	if price == nil {
		return notComputable("price unavailable")
	}
	cur := price.CurrentPrice
	if !(cur > 0) || math.IsInf(cur, 0) {
		return notComputable(fmt.Sprintf("invalid price %v", cur))
	}

	travel, ok := TravelPercent(pos.PositionType, pos.EntryPrice, pos.LiquidationPrice, cur)
	if !ok {
		return notComputable("entry price equals liquidation price")
	}

	leverage := ResolveLeverage(pos)
	distance := LiquidationDistance(cur, pos.LiquidationPrice)

	return Metrics{
		Computable:          true,
		CurrentPrice:        cur,
		Value:               pos.Size * cur,
		TravelPercent:       travel,
		LiquidationDistance: distance,
		HeatPoints:          HeatPoints(leverage, distance),
		Leverage:            leverage,
	}
}

// TravelPercent 价格从开仓价向强平价移动的带符号百分比
// 到达强平价时为 -100，盈利方向为正；分母为开仓价到强平价的距离
func TravelPercent(pt models.PositionType, entry, liquidation, current float64) (float64, bool) {
	var gap, progress float64
	if pt == models.PositionShort {
		gap = liquidation - entry
		progress = entry - current
	} else {
		gap = entry - liquidation
		progress = current - entry
	}
	if gap <= 0 {
		return 0, false
	}
	return progress / gap * 100, true
}

// LiquidationDistance 当前价格到强平价的剩余百分比
func LiquidationDistance(current, liquidation float64) float64 {
	if current <= 0 {
		return 0
	}
	return math.Abs(current-liquidation) / current * 100
}

// HeatPoints 风险热度分：杠杆越高、越接近强平越高，限制在 [0, leverage*100]
func HeatPoints(leverage, liquidationDistance float64) float64 {
	heat := leverage * (100 - liquidationDistance) / 100
	upper := leverage * 100
	if heat < 0 {
		return 0
	}
	if heat > upper {
		return upper
	}
	return heat
}

// Apply 将指标写入仓位副本
// 先把旧 HeatPoints 复制到 CurrentHeatPoints，再写入新值
func Apply(pos models.Position, m Metrics, now time.Time) models.Position {
	out := pos
	out.CurrentHeatPoints = pos.HeatPoints
	out.HeatPoints = m.HeatPoints
	out.CurrentPrice = m.CurrentPrice
	out.Value = m.Value
	out.CurrentTravelPercent = m.TravelPercent
	out.LiquidationDistance = m.LiquidationDistance
	out.MetricsStatus = models.MetricsOK
	out.LastUpdated = now
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
