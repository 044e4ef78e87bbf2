package dao

import (
	"gorm.io/gorm"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

// derivedColumns 每轮评估覆盖的仓位列
var derivedColumns = []string{
	"current_price", "value", "current_travel_percent",
	"liquidation_distance", "heat_points", "current_heat_points",
	"metrics_status", "last_updated",
}

type PositionDAO struct{}

var _position = &PositionDAO{}

// Position 获取 PositionDAO 单例
func Position() *PositionDAO {
	return _position
}

// List 按 ID 升序返回全部仓位
func (d *PositionDAO) List() ([]models.Position, error) {
	conn, err := getPrimaryDB()
	if err != nil {
		return nil, err
	}
	var out []models.Position
	if err = conn.Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *PositionDAO) Get(id string) (*models.Position, error) {
	conn, err := getDB()
	if err != nil {
		return nil, err
	}
	var pos models.Position
	if err = conn.Where("id = ?", id).First(&pos).Error; err != nil {
		return nil, err
	}
	return &pos, nil
}

// Create 写入仓位静态条款
func (d *PositionDAO) Create(positions ...*models.Position) error {
	conn, err := getDB()
	if err != nil {
		return err
	}
	return conn.Create(positions).Error
}

// updateDerived 只写衍生列，不覆盖静态条款
func (d *PositionDAO) updateDerived(tx *gorm.DB, positions []models.Position) error {
	for i := range positions {
		p := &positions[i]
		if err := tx.Model(&models.Position{ID: p.ID}).Select(derivedColumns).Updates(p).Error; err != nil {
			return err
		}
	}
	return nil
}

// markNotComputable 只改状态列，保留上次可计算时的衍生字段
func (d *PositionDAO) markNotComputable(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&models.Position{}).Where("id IN ?", ids).
		Update("metrics_status", models.MetricsNotComputable).Error
}
