package models

import "time"

// PositionType 仓位方向
type PositionType string

const (
	PositionLong  PositionType = "Long"
	PositionShort PositionType = "Short"
)

// MetricsStatus 衍生字段状态
type MetricsStatus string

const (
	MetricsPending       MetricsStatus = ""
	MetricsOK            MetricsStatus = "ok"
	MetricsNotComputable MetricsStatus = "not_computable" // 衍生字段为上次可计算时的旧值
)

// Position 杠杆仓位表
// 静态条款由 CRUD 层写入，衍生字段每轮评估覆盖
type Position struct {
	ID           string       `gorm:"type:varchar(64);primaryKey;comment:仓位ID" json:"id"`
	AssetType    string       `gorm:"type:varchar(16);not null;index:idx_asset;comment:资产类型" json:"asset_type"`
	PositionType PositionType `gorm:"type:varchar(8);not null;comment:Long/Short" json:"position_type"`
	Wallet       string       `gorm:"type:varchar(64);not null;default:'';comment:钱包" json:"wallet"`

	// 静态条款
	EntryPrice       float64 `gorm:"not null;comment:开仓价" json:"entry_price"`
	LiquidationPrice float64 `gorm:"not null;comment:强平价" json:"liquidation_price"`
	Collateral       float64 `gorm:"not null;comment:保证金" json:"collateral"`
	Size             float64 `gorm:"not null;comment:仓位规模" json:"size"`
	Leverage         float64 `gorm:"not null;default:0;comment:杠杆（0 表示按 size/collateral 推导）" json:"leverage"`

	// 衍生字段
	CurrentPrice         float64 `gorm:"not null;default:0;comment:当前价格" json:"current_price"`
	Value                float64 `gorm:"not null;default:0;comment:仓位价值" json:"value"`
	CurrentTravelPercent float64 `gorm:"not null;default:0;comment:行程百分比" json:"current_travel_percent"`
	LiquidationDistance  float64 `gorm:"not null;default:0;comment:强平距离百分比" json:"liquidation_distance"`
	HeatPoints           float64 `gorm:"not null;default:0;comment:热度分" json:"heat_points"`
	CurrentHeatPoints    float64 `gorm:"not null;default:0;comment:上一轮热度分" json:"current_heat_points"`

	MetricsStatus MetricsStatus `gorm:"type:varchar(16);not null;default:'';comment:衍生字段状态" json:"metrics_status"`
	LastUpdated   time.Time     `gorm:"comment:衍生字段更新时间" json:"last_updated"`
}

func (Position) TableName() string {
	return "risk_positions"
}

// IsLong 是否多头
func (p *Position) IsLong() bool {
	return p.PositionType == PositionLong
}
