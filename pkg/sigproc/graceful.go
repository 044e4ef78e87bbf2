package sigproc

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utrading/utrading-risk-monitor/pkg/goplus"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

var ErrShutdownTimeout = errors.New("shutdown timed out")

type HandlerFunc func(os.Signal)

// GracefulShutdown 收到退出信号后执行 shutdown，超时则强制退出
func GracefulShutdown(timeout time.Duration, shutdown HandlerFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received signal")

		if err := RunShutdown(sig, timeout, shutdown); err != nil {
			logger.Error().Err(err).Dur("timeout", timeout).Msg("graceful shutdown incomplete")
			os.Exit(1)
		}
		os.Exit(0)
	})
}

// RunShutdown 执行 shutdown 并等待完成
func RunShutdown(sig os.Signal, timeout time.Duration, shutdown HandlerFunc) error {
	done := make(chan struct{})
	goplus.Go(func() {
		defer close(done)
		shutdown(sig)
	})

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
