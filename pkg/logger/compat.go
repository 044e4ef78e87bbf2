package logger

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// printf 风格日志；format 不含占位符时参数按空格拼接

func Debugf(format string, v ...any) {
	emitf(log.Logger.Debug(), format, v)
}

func Infof(format string, v ...any) {
	emitf(log.Logger.Info(), format, v)
}

func Warnf(format string, v ...any) {
	emitf(log.Logger.Warn(), format, v)
}

func Errorf(format string, v ...any) {
	emitf(log.Logger.Error(), format, v)
}

func emitf(event *zerolog.Event, format string, args []any) {
	if event == nil {
		return
	}
	// 调用者位置为 Xxxf 的调用方
	event = event.CallerSkipFrame(2)

	if len(args) == 0 || hasFormatVerb(format) {
		event.Msgf(format, args...)
		return
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, format)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	event.Msg(strings.Join(parts, " "))
}

// hasFormatVerb "%%" 不算占位符
func hasFormatVerb(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			i++
			continue
		}
		return true
	}
	return false
}
