package schema

import "time"

// SchemaMeta 单行表（ID=1），记录当前库结构版本与最后一次执行迁移的程序版本。
// 启动时据此决定是否迁移；版本高于程序支持时进入只读安全模式。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	MigratedBy    string    `gorm:"size:64"` // 执行迁移的程序版本
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}
