package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite" // 纯 Go SQLite 驱动
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/yuqie6/NunuLog/internal/pkg/buildinfo"
	"github.com/yuqie6/NunuLog/internal/pkg/config"
	"github.com/yuqie6/NunuLog/internal/schema"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database 数据库管理器
type Database struct {
	DB             *gorm.DB
	Driver         string
	SafeMode       bool
	SchemaVersion  int
	MigrationError string
}

// NewDatabase 按配置创建数据库连接
func NewDatabase(cfg config.StorageConfig) (*Database, error) {
	var (
		dialector gorm.Dialector
		err       error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dialector, err = sqliteDialector(cfg.DBPath)
	case "postgres":
		dialector, err = postgresDialector(cfg.DSN)
	default:
		err = fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	// 连接数据库
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	d := &Database{DB: db, Driver: dialector.Name()}
	if d.Driver == "sqlite" {
		// 配置 SQLite WAL 模式
		if err := setupSQLite(db); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, fmt.Errorf("配置数据库失败: %w", err)
		}
	}

	if err := migrateWithVersion(db, d); err != nil {
		// 迁移失败进入“安全模式”：只读接口可用，写接口返回 503
		d.SafeMode = true
		d.MigrationError = err.Error()
		slog.Error("数据库迁移失败，进入安全模式", "error", err)
	}

	slog.Info("数据库初始化成功", "driver", d.Driver, "schema_version", d.SchemaVersion)

	return d, nil
}

func sqliteDialector(dbPath string) (gorm.Dialector, error) {
	if dbPath != ":memory:" {
		// 确保目录存在
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}
	return sqlite.Open(dbPath), nil
}

func postgresDialector(dsn string) (gorm.Dialector, error) {
	pgCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 postgres dsn 失败: %w", err)
	}
	// 使用 pgx 连接配置构造 *sql.DB，gorm 复用该连接池
	sqlDB := stdlib.OpenDB(*pgCfg)
	return postgres.New(postgres.Config{Conn: sqlDB}), nil
}

// setupSQLite 打开 SQLite 后执行的初始化，测试中可替换
var setupSQLite = configureSQLite

// configureSQLite 配置 SQLite 性能参数
func configureSQLite(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // 启用 WAL 模式，支持并发读写
		"PRAGMA synchronous=NORMAL", // 平衡性能与安全
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY", // 临时表使用内存
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("执行 %s 失败: %w", pragma, err)
		}
	}

	return nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.SchemaMeta{},
		&schema.Baby{},
		&schema.Activity{},
	)
}

const latestSchemaVersion = 1

func migrateWithVersion(db *gorm.DB, out *Database) error {
	if db == nil {
		return fmt.Errorf("db 不能为空")
	}
	if out == nil {
		return fmt.Errorf("out 不能为空")
	}

	// 先确保 schema_meta 存在（即使后续迁移失败，也能记录状态）
	if err := db.AutoMigrate(&schema.SchemaMeta{}); err != nil {
		return fmt.Errorf("创建 schema_meta 失败: %w", err)
	}

	var meta schema.SchemaMeta
	err := db.First(&meta, 1).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			meta = schema.SchemaMeta{ID: 1, SchemaVersion: 0}
			if err := db.Create(&meta).Error; err != nil {
				return fmt.Errorf("初始化 schema_meta 失败: %w", err)
			}
		} else {
			return fmt.Errorf("读取 schema_meta 失败: %w", err)
		}
	}

	cur := meta.SchemaVersion
	out.SchemaVersion = cur

	if cur > latestSchemaVersion {
		return fmt.Errorf("数据库 schema_version=%d 高于当前程序支持的版本=%d", cur, latestSchemaVersion)
	}
	if cur == latestSchemaVersion {
		return nil
	}

	if err := autoMigrate(db); err != nil {
		return fmt.Errorf("迁移数据库失败: %w", err)
	}

	meta.SchemaVersion = latestSchemaVersion
	meta.MigratedBy = buildinfo.Version
	if err := db.Save(&meta).Error; err != nil {
		return fmt.Errorf("写入 schema_meta 失败: %w", err)
	}
	out.SchemaVersion = latestSchemaVersion
	return nil
}

// Close 关闭数据库连接
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
