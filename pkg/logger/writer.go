package logger

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const TimeFormat = "2006-01-02 15:04:05"

// sink 一组按等级分流的输出
type sink struct {
	files  map[string]*lumberjack.Logger // key: 等级
	writer zerolog.LevelWriter
}

func newSink(cfg Config) (*sink, error) {
	entries := cfg.LevelFiles
	if entries.IsEmpty() {
		entries = LevelFiles{{Level: INFO, Path: "logs/info.log"}}
	}

	var configured levelSet
	for _, e := range entries {
		configured = configured.with(parseLevel(e.Level))
	}

	s := &sink{files: make(map[string]*lumberjack.Logger, len(entries))}
	writers := make([]io.Writer, 0, len(entries)+1)

	for _, e := range entries {
		if err := os.MkdirAll(filepath.Dir(e.Path), 0755); err != nil {
			s.close()
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   e.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		s.files[e.Level] = lj
		writers = append(writers, &routedWriter{
			level:      parseLevel(e.Level),
			configured: configured,
			out:        zerolog.ConsoleWriter{Out: lj, TimeFormat: TimeFormat, NoColor: true},
		})
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	s.writer = zerolog.MultiLevelWriter(writers...)
	return s, nil
}

// rotate 切换到新文件
func (s *sink) rotate() error {
	var errs []error
	for _, lj := range s.files {
		if err := lj.Rotate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *sink) close() error {
	var errs []error
	for _, lj := range s.files {
		if err := lj.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// levelSet 已配置文件的等级位图
type levelSet uint8

func (s levelSet) with(l zerolog.Level) levelSet {
	return s | 1<<uint8(l)
}

func (s levelSet) has(l zerolog.Level) bool {
	return s&(1<<uint8(l)) != 0
}

// routedWriter 只接收自身等级的日志
// info 文件兜底所有未单独配置的等级，error 文件兜底 fatal
type routedWriter struct {
	level      zerolog.Level
	configured levelSet
	out        io.Writer
}

func (w *routedWriter) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

func (w *routedWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if w.accepts(level) {
		return w.out.Write(p)
	}
	return len(p), nil
}

func (w *routedWriter) accepts(level zerolog.Level) bool {
	switch {
	case level == w.level:
		return true
	case w.configured.has(level):
		return false
	case w.level == zerolog.InfoLevel:
		return level != zerolog.FatalLevel || !w.configured.has(zerolog.ErrorLevel)
	case w.level == zerolog.ErrorLevel:
		return level == zerolog.FatalLevel
	}
	return false
}
