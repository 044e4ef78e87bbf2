package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/risk"
)

// Evaluator 评估入口
type Evaluator interface {
	Enabled() bool
	Evaluate(ctx context.Context, trigger string) (*risk.PassResult, error)
}

// EvaluateJob 周期性评估任务，监控关闭时跳过
type EvaluateJob struct {
	evaluator Evaluator
	trigger   string
	timeout   time.Duration
}

func NewEvaluateJob(evaluator Evaluator, trigger string, timeout time.Duration) *EvaluateJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &EvaluateJob{evaluator: evaluator, trigger: trigger, timeout: timeout}
}

func (j *EvaluateJob) Name() string {
	return "evaluate"
}

func (j *EvaluateJob) Run() error {
	if !j.evaluator.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.evaluator.Evaluate(ctx, j.trigger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// FuncJob 函数任务
type FuncJob struct {
	name string
	fn   func() error
}

func NewFuncJob(name string, fn func() error) *FuncJob {
	return &FuncJob{name: name, fn: fn}
}

func (j *FuncJob) Name() string {
	return j.name
}

func (j *FuncJob) Run() error {
	return j.fn()
}
