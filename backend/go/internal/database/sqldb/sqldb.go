package sqldb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/pkg/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 根据配置打开 GORM 数据库：本地 SQLite 文件或 MySQL。
// driver 为 "memory" 时使用内存中的 SQLite，主要用于测试和一次性运行。
func Open(cfg config.SQLConfig, log *logger.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("无法创建 SQLite 目录: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), gcfg)
	case "memory":
		return OpenMemory()
	case "mysql":
		m := cfg.MySQL
		// 构建 DSN (Data Source Name) 字符串。
		dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			m.Username, m.Password, m.Address, m.Database)
		db, err = gorm.Open(mysql.Open(dsn), gcfg)
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("无法连接到 %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("无法获取底层 SQL DB 实例: %w", err)
	}
	if cfg.Driver == "mysql" {
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.ConnMaxLifetime) * time.Second)
	} else {
		// SQLite 只允许一个写连接。
		sqlDB.SetMaxOpenConns(1)
	}

	if log != nil {
		log.WithPayload(map[string]interface{}{"driver": cfg.Driver}).Info("sql database connected")
	}
	return db, nil
}

// OpenMemory 打开一个私有的内存 SQLite 数据库。
func OpenMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("无法打开内存 SQLite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 每个新连接都会得到一个空库，所以固定为一个连接。
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Close 关闭底层连接。
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 SQL DB 实例失败: %w", err)
	}
	return sqlDB.Close()
}

// HealthCheck 检查数据库连接的健康状况。
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("数据库连接未初始化")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("无法获取底层 SQL DB 实例进行健康检查: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
