package dao

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

var (
	ErrNotInitialized = errors.New("dao not initialized")
	ErrAlertNotFound  = errors.New("alert not found")
)

var db *gorm.DB

// InitDAO 初始化所有 DAO（应用启动时调用）
func InitDAO(conn *gorm.DB) {
	db = conn
}

func getDB() (*gorm.DB, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	return db, nil
}

// getPrimaryDB 强制走主库的连接
// 评估快照必须读到上一轮刚提交的 last_triggered，不能读从库
func getPrimaryDB() (*gorm.DB, error) {
	conn, err := getDB()
	if err != nil {
		return nil, err
	}
	return conn.Clauses(dbresolver.Write), nil
}
