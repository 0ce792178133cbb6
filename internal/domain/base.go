// Package domain 定义了房间调度与云存储使用的数据库模型。
package domain

import "time"

// Base 是所有表共用的基础列。
// 业务上只做逻辑删除 (is_delete)，不会物理删除行。
type Base struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	IsDelete  bool      `gorm:"column:is_delete;not null;index"` // 逻辑删除标记
}
