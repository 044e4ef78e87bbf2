package logger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	mu     sync.Mutex
	active *sink
	stop   chan struct{} // 非 nil 表示日切协程在运行
)

// install 构建新输出并替换全局 logger，旧输出随后关闭
func install(cfg Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	s, err := newSink(cfg)
	if err != nil {
		return err
	}

	ctx := zerolog.New(s.writer).With().Timestamp().Caller()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}

	mu.Lock()
	prev := active
	active = s
	log.Logger = ctx.Logger()
	if stop == nil {
		stop = make(chan struct{})
		go rotateDaily(stop)
	}
	mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return nil
}

// Close 停止日切并关闭文件，可重复调用
func Close() {
	mu.Lock()
	s := active
	active = nil
	if stop != nil {
		close(stop)
		stop = nil
	}
	mu.Unlock()

	if s != nil {
		if err := s.close(); err != nil {
			log.Logger.Err(err).Msg("close log files failed")
		}
	}
}

// L 返回全局 logger
func L() zerolog.Logger {
	return log.Logger
}

// Component 带 component 字段的子 logger
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

func Info() *zerolog.Event {
	return log.Logger.Info()
}

func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

func Error() *zerolog.Event {
	return log.Logger.Error()
}

func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}

// Err 按 err 是否为 nil 选择 error 或 info 等级
func Err(err error) *zerolog.Event {
	return log.Logger.Err(err)
}
