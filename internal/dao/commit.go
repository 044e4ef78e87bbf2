package dao

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-risk-monitor/internal/risk"
)

// CommitPass 在单个事务中写入一轮评估结果
// 仓位衍生字段、告警状态和触发事件要么全部成功，要么全部回滚
func CommitPass(res *risk.PassResult) error {
	conn, err := getDB()
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		if err := Position().updateDerived(tx, res.UpdatedPositions); err != nil {
			return fmt.Errorf("update positions: %w", err)
		}
		if err := Position().markNotComputable(tx, res.NotComputable); err != nil {
			return fmt.Errorf("mark positions: %w", err)
		}
		if err := Alert().updateState(tx, res.UpdatedAlerts); err != nil {
			return fmt.Errorf("update alerts: %w", err)
		}
		if len(res.FiredEvents) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}},
				DoNothing: true,
			}).Create(&res.FiredEvents).Error
			if err != nil {
				return fmt.Errorf("insert events: %w", err)
			}
		}
		return nil
	})
}
