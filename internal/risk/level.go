package risk

import "fmt"

// 风险等级（按行程百分比分档）
const (
	LevelNone   = ""
	LevelLow    = "LOW"
	LevelMedium = "MEDIUM"
	LevelHigh   = "HIGH"
)

// Levels 行程百分比分档阈值，均为负数且 High <= Medium <= Low
type Levels struct {
	Low    float64
	Medium float64
	High   float64
}

// DefaultLevels 默认分档 -25 / -50 / -75
func DefaultLevels() Levels {
	return Levels{Low: -25, Medium: -50, High: -75}
}

// Classify 返回行程百分比对应的风险等级
func (l Levels) Classify(travelPercent float64) string {
	switch {
	case travelPercent >= 0:
		return LevelNone
	case travelPercent <= l.High:
		return LevelHigh
	case travelPercent <= l.Medium:
		return LevelMedium
	case travelPercent <= l.Low:
		return LevelLow
	default:
		return LevelNone
	}
}

// Validate 校验分档为负数且单调
func (l Levels) Validate() error {
	if !(l.High <= l.Medium && l.Medium <= l.Low && l.Low < 0) {
		return fmt.Errorf("invalid risk levels: low=%v medium=%v high=%v", l.Low, l.Medium, l.High)
	}
	return nil
}
