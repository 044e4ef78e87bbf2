package models

import "time"

// AlertEvent 告警触发事件
type AlertEvent struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	EventID          string    `gorm:"type:varchar(36);not null;uniqueIndex:uidx_event;comment:事件ID" json:"event_id"`
	AlertID          string    `gorm:"type:varchar(64);not null;index:idx_alert;comment:告警ID" json:"alert_id"`
	PositionID       string    `gorm:"type:varchar(64);not null;comment:仓位ID" json:"position_id"`
	AssetType        string    `gorm:"type:varchar(16);not null;default:'';comment:资产" json:"asset_type"`
	AlertType        AlertType `gorm:"type:varchar(32);not null;comment:告警类型" json:"alert_type"`
	MetricValue      float64   `gorm:"not null;comment:指标值" json:"metric_value"`
	Threshold        float64   `gorm:"not null;comment:阈值" json:"threshold"`
	RiskLevel        string    `gorm:"type:varchar(8);not null;default:'';comment:风险等级" json:"risk_level"`
	NotificationType string    `gorm:"type:varchar(16);not null;default:'';comment:通知渠道" json:"notification_type"`
	Timestamp        time.Time `gorm:"not null;index:idx_timestamp;comment:触发时间" json:"timestamp"`
}

func (AlertEvent) TableName() string {
	return "risk_alert_events"
}
