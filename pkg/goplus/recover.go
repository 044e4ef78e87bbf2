package goplus

import (
	"fmt"
	"runtime/debug"

	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

// Recover 捕获 panic 并记录调用栈，需配合 defer 使用
func Recover() {
	if r := recover(); r != nil {
		logger.Error().
			Str("panic", fmt.Sprint(r)).
			Str("stack", string(debug.Stack())).
			Msg("goroutine panic recovered")
	}
}

// Safe 执行 fn，panic 时转为 error 返回
func Safe(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Error().Err(err).Str("stack", string(debug.Stack())).Msg("call panic recovered")
		}
	}()
	fn()
	return nil
}
