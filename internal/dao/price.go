package dao

import (
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

type PriceDAO struct{}

var _price = &PriceDAO{}

// Price 获取 PriceDAO 单例
func Price() *PriceDAO {
	return _price
}

func (d *PriceDAO) List() ([]models.Price, error) {
	conn, err := getPrimaryDB()
	if err != nil {
		return nil, err
	}
	var out []models.Price
	if err = conn.Order("asset_type").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// BatchUpsert 按资产整体替换价格记录
// 调用方负责通过 models.Price.Roll 保留上次价格
func (d *PriceDAO) BatchUpsert(prices []*models.Price) error {
	if len(prices) == 0 {
		return nil
	}
	conn, err := getDB()
	if err != nil {
		return err
	}
	return conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_price", "previous_price",
			"last_update_time", "previous_update_time", "source",
		}),
	}).Create(prices).Error
}
