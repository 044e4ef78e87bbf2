package models

import (
	"fmt"
	"time"
)

// Price 资产最新价格记录，每次价格刷新整体替换
type Price struct {
	AssetType          string     `gorm:"type:varchar(16);primaryKey;comment:资产类型" json:"asset_type"`
	CurrentPrice       float64    `gorm:"not null;comment:当前价格" json:"current_price"`
	PreviousPrice      float64    `gorm:"not null;default:0;comment:上次价格" json:"previous_price"`
	LastUpdateTime     time.Time  `gorm:"not null;comment:最近更新时间" json:"last_update_time"`
	PreviousUpdateTime *time.Time `gorm:"comment:上次更新时间" json:"previous_update_time,omitempty"`
	Source             string     `gorm:"type:varchar(32);not null;default:'';comment:价格来源" json:"source"`
}

func (Price) TableName() string {
	return "risk_prices"
}

// Validate 校验时间顺序
func (p *Price) Validate() error {
	if p.PreviousUpdateTime != nil && p.LastUpdateTime.Before(*p.PreviousUpdateTime) {
		return fmt.Errorf("price %s: last_update_time %s before previous_update_time %s",
			p.AssetType, p.LastUpdateTime.Format(time.RFC3339), p.PreviousUpdateTime.Format(time.RFC3339))
	}
	return nil
}

// Roll 用新价格替换当前记录，旧值移入 previous 字段
func (p Price) Roll(price float64, source string, at time.Time) Price {
	next := Price{
		AssetType:      p.AssetType,
		CurrentPrice:   price,
		LastUpdateTime: at,
		Source:         source,
	}
	if !p.LastUpdateTime.IsZero() {
		prevTime := p.LastUpdateTime
		next.PreviousPrice = p.CurrentPrice
		next.PreviousUpdateTime = &prevTime
	}
	return next
}
