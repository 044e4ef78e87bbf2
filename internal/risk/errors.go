package risk

import (
	"errors"
	"fmt"
)

// 评估过程中的错误分类，均不会中断整轮评估
var (
	// ErrNotComputable 价格缺失或无效，仓位本轮跳过
	ErrNotComputable = errors.New("not computable")
	// ErrConfiguration 告警配置错误（未知类型、阈值非法），该告警本轮跳过
	ErrConfiguration = errors.New("configuration error")
	// ErrInvariantViolation 仓位不满足约束，其全部告警本轮跳过
	ErrInvariantViolation = errors.New("invariant violation")
)

const (
	KindNotComputable      = "not_computable"
	KindConfiguration      = "configuration"
	KindInvariantViolation = "invariant_violation"
	KindUnknown            = "unknown"
)

// PassError 单条评估错误
type PassError struct {
	PositionID string
	AlertID    string
	Err        error
}

func (e *PassError) Error() string {
	switch {
	case e.PositionID != "" && e.AlertID != "":
		return fmt.Sprintf("position %s alert %s: %v", e.PositionID, e.AlertID, e.Err)
	case e.AlertID != "":
		return fmt.Sprintf("alert %s: %v", e.AlertID, e.Err)
	case e.PositionID != "":
		return fmt.Sprintf("position %s: %v", e.PositionID, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// Kind 返回错误分类标签（用于日志和指标）
func (e *PassError) Kind() string {
	return ErrorKind(e.Err)
}

// ErrorKind 返回任意错误的分类标签
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotComputable):
		return KindNotComputable
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrInvariantViolation):
		return KindInvariantViolation
	default:
		return KindUnknown
	}
}
