package logger

import (
	"time"

	"github.com/rs/zerolog/log"
)

// rotateDaily 每天零点切换日志文件
func rotateDaily(stop <-chan struct{}) {
	timer := time.NewTimer(untilMidnight(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-timer.C:
			rotateWithRetry(3)
			timer.Reset(untilMidnight(now))
		}
	}
}

func rotateWithRetry(attempts int) {
	for i := 0; i < attempts; i++ {
		mu.Lock()
		s := active
		mu.Unlock()
		if s == nil {
			return
		}

		err := s.rotate()
		if err == nil {
			log.Logger.Info().Msg("log files rotated by date")
			return
		}
		log.Logger.Err(err).Int("attempt", i+1).Msg("rotate log files failed")
		time.Sleep(200 * time.Millisecond)
	}
}

func untilMidnight(t time.Time) time.Duration {
	next := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	return next.Sub(t)
}
