package dao

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

type AlertDAO struct{}

var _alert = &AlertDAO{}

// Alert 获取 AlertDAO 单例
func Alert() *AlertDAO {
	return _alert
}

// List 按 ID 升序返回全部告警（含已停用）
func (d *AlertDAO) List() ([]models.Alert, error) {
	conn, err := getPrimaryDB()
	if err != nil {
		return nil, err
	}
	var out []models.Alert
	if err = conn.Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *AlertDAO) Get(id string) (*models.Alert, error) {
	conn, err := getDB()
	if err != nil {
		return nil, err
	}
	var alert models.Alert
	if err = conn.Where("id = ?", id).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (d *AlertDAO) Create(alerts ...*models.Alert) error {
	conn, err := getDB()
	if err != nil {
		return err
	}
	return conn.Create(alerts).Error
}

// SetStatus 外部显式启停告警
func (d *AlertDAO) SetStatus(id string, status models.AlertStatus) error {
	conn, err := getDB()
	if err != nil {
		return err
	}
	res := conn.Model(&models.Alert{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err = d.Get(id); err != nil {
			return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
		}
	}
	return nil
}

// updateState 写入引擎维护的状态列
func (d *AlertDAO) updateState(tx *gorm.DB, alerts []models.Alert) error {
	for i := range alerts {
		a := &alerts[i]
		err := tx.Model(&models.Alert{}).Where("id = ?", a.ID).Updates(map[string]any{
			"status":         a.Status,
			"counter":        a.Counter,
			"last_triggered": a.LastTriggered,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
