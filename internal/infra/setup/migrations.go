package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// Models 返回需要迁移的全部表模型
func Models() []interface{} {
	return []interface{}{
		&domain.Room{},
		&domain.RoomPeriodicConfig{},
		&domain.RoomPeriodic{},
		&domain.RoomUser{},
		&domain.RoomPeriodicUser{},
		&domain.RoomDoc{},
		&domain.CloudStorageFile{},
		&domain.CloudStorageUserFile{},
		&domain.CloudStorageConfig{},
	}
}

// MigrateDB 使用传入的 db 自动迁移所有表，返回错误以便调用者决定是否继续启动
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
