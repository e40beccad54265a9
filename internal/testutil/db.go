package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/NunuLog/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 打开内存 SQLite 并自动迁移所有表
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	// 每个连接都是独立的内存库，限制为单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&schema.SchemaMeta{},
		&schema.Baby{},
		&schema.Activity{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

// SeedBaby 写入一个测试用宝宝档案
func SeedBaby(t *testing.T, db *gorm.DB, name string) *schema.Baby {
	t.Helper()
	baby := &schema.Baby{Name: name, BirthDate: "2024-01-15"}
	if err := db.Create(baby).Error; err != nil {
		t.Fatalf("seed baby: %v", err)
	}
	return baby
}
