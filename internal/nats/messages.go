package nats

import (
	"encoding/json"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
)

// AlertMessage 告警触发消息
type AlertMessage struct {
	EventID          string  `json:"event_id"`
	AlertID          string  `json:"alert_id"`
	PositionID       string  `json:"position_id"`
	Asset            string  `json:"asset"`
	AlertType        string  `json:"alert_type"`
	MetricValue      float64 `json:"metric_value"`
	Threshold        float64 `json:"threshold"`
	RiskLevel        string  `json:"risk_level,omitempty"`
	NotificationType string  `json:"notification_type,omitempty"`
	Timestamp        int64   `json:"timestamp"` // 毫秒
}

// NewAlertMessage 由告警事件构造消息
func NewAlertMessage(ev models.AlertEvent) *AlertMessage {
	return &AlertMessage{
		EventID:          ev.EventID,
		AlertID:          ev.AlertID,
		PositionID:       ev.PositionID,
		Asset:            ev.AssetType,
		AlertType:        string(ev.AlertType),
		MetricValue:      ev.MetricValue,
		Threshold:        ev.Threshold,
		RiskLevel:        ev.RiskLevel,
		NotificationType: ev.NotificationType,
		Timestamp:        ev.Timestamp.UnixMilli(),
	}
}

func (m *AlertMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// PassSummaryMessage 评估轮次汇总
type PassSummaryMessage struct {
	risk.Summary
	Trigger   string `json:"trigger"`
	Timestamp int64  `json:"timestamp"`
}

func NewPassSummaryMessage(trigger string, summary risk.Summary, ts time.Time) *PassSummaryMessage {
	return &PassSummaryMessage{
		Summary:   summary,
		Trigger:   trigger,
		Timestamp: ts.UnixMilli(),
	}
}

func (m *PassSummaryMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
