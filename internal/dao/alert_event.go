package dao

import (
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/models"
)

type AlertEventDAO struct{}

var _alertEvent = &AlertEventDAO{}

// AlertEvent 获取 AlertEventDAO 单例
func AlertEvent() *AlertEventDAO {
	return _alertEvent
}

// ListSince 返回 since 之后的事件（按时间升序）
func (d *AlertEventDAO) ListSince(since time.Time, limit int) ([]models.AlertEvent, error) {
	conn, err := getDB()
	if err != nil {
		return nil, err
	}
	q := conn.Where("timestamp >= ?", since).Order("timestamp, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.AlertEvent
	if err = q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *AlertEventDAO) Count() (int64, error) {
	conn, err := getDB()
	if err != nil {
		return 0, err
	}
	var n int64
	err = conn.Model(&models.AlertEvent{}).Count(&n).Error
	return n, err
}

// DeleteOld 删除 cutoff 之前的事件
func (d *AlertEventDAO) DeleteOld(cutoff time.Time) (int64, error) {
	conn, err := getDB()
	if err != nil {
		return 0, err
	}
	res := conn.Where("timestamp < ?", cutoff).Delete(&models.AlertEvent{})
	return res.RowsAffected, res.Error
}

// DeleteOldest 按自增 ID 删除最早的 n 条
func (d *AlertEventDAO) DeleteOldest(n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	conn, err := getDB()
	if err != nil {
		return 0, err
	}

	var maxID uint
	err = conn.Model(&models.AlertEvent{}).
		Select("id").Order("id").Offset(int(n - 1)).Limit(1).
		Scan(&maxID).Error
	if err != nil {
		return 0, err
	}
	if maxID == 0 {
		return 0, nil
	}

	res := conn.Where("id <= ?", maxID).Delete(&models.AlertEvent{})
	return res.RowsAffected, res.Error
}
