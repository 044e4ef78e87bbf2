package models

import "time"

// AlertType 告警类型（封闭集合）
type AlertType string

const (
	AlertTravelPercent       AlertType = "TravelPercent"
	AlertLiquidationDistance AlertType = "LiquidationDistance"
	AlertPriceTarget         AlertType = "PriceTarget"
	AlertHeatIndex           AlertType = "HeatIndex"
)

// AlertStatus 告警状态
type AlertStatus string

const (
	AlertActive    AlertStatus = "Active"
	AlertTriggered AlertStatus = "Triggered"
	AlertDisabled  AlertStatus = "Disabled"
)

// AlertState 告警可变状态，Active 之后仅由引擎维护
type AlertState struct {
	Status        AlertStatus `gorm:"type:varchar(16);not null;default:'Active';index:idx_status;comment:状态" json:"status"`
	Counter       int64       `gorm:"not null;default:0;comment:累计触发次数" json:"counter"`
	LastTriggered *time.Time  `gorm:"comment:最近触发时间" json:"last_triggered,omitempty"`
}

// Alert 告警配置 + 状态
type Alert struct {
	ID               string    `gorm:"type:varchar(64);primaryKey;comment:告警ID" json:"id"`
	AlertType        AlertType `gorm:"type:varchar(32);not null;comment:告警类型" json:"alert_type"`
	TriggerValue     float64   `gorm:"not null;default:0;comment:触发阈值" json:"trigger_value"`
	NotificationType string    `gorm:"type:varchar(16);not null;default:'';comment:通知渠道" json:"notification_type"`
	Frequency        int64     `gorm:"not null;default:0;comment:最小触发间隔（秒）" json:"frequency"`

	// 按类型使用的备选阈值
	LiquidationDistance float64 `gorm:"not null;default:0;comment:强平距离阈值" json:"liquidation_distance"`
	TargetTravelPercent float64 `gorm:"not null;default:0;comment:目标行程百分比" json:"target_travel_percent"`
	LiquidationPrice    float64 `gorm:"not null;default:0;comment:强平价" json:"liquidation_price"`

	// 为空表示全局告警
	PositionReferenceID string `gorm:"type:varchar(64);not null;default:'';index:idx_position;comment:关联仓位" json:"position_reference_id"`
	// 全局告警的资产范围，为空表示全部资产
	AssetType string `gorm:"type:varchar(16);not null;default:'';comment:资产范围" json:"asset_type"`
	Notes     string `gorm:"type:varchar(255);not null;default:'';comment:备注" json:"notes"`

	AlertState `gorm:"embedded"`
}

func (Alert) TableName() string {
	return "risk_alerts"
}

// IsGlobal 是否全局告警
func (a *Alert) IsGlobal() bool {
	return a.PositionReferenceID == ""
}

// Clone 深拷贝（LastTriggered 为指针）
func (a Alert) Clone() Alert {
	if a.LastTriggered != nil {
		t := *a.LastTriggered
		a.LastTriggered = &t
	}
	return a
}
