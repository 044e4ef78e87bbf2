package risk

import (
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

// MayFire 条件满足时是否允许触发
// 从未触发过，或距上次触发已满 Frequency 秒
// 按整秒比较，避免大 Frequency 换算 time.Duration 溢出；
// 上次触发时间晚于 now（时钟回拨）视为仍在窗口内
func MayFire(alert *models.Alert, now time.Time) bool {
	if alert.LastTriggered == nil || alert.Frequency <= 0 {
		return true
	}
	elapsed := now.Sub(*alert.LastTriggered)
	if elapsed < 0 {
		return false
	}
	return int64(elapsed/time.Second) >= alert.Frequency
}

// RecordFire 记录一次触发
func RecordFire(alert *models.Alert, now time.Time) {
	t := now
	alert.LastTriggered = &t
	alert.Counter++
}

// Rearm 节流窗口结束后将 Triggered 恢复为 Active
func Rearm(alert *models.Alert, now time.Time) bool {
	if alert.Status == models.AlertTriggered && MayFire(alert, now) {
		alert.Status = models.AlertActive
		return true
	}
	return false
}
