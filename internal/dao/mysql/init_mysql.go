// Package mysql 提供数据访问层的初始化
// 负责建立数据库连接、自动迁移表结构、初始化 Repository 层
// 生产环境使用 MySQL 或 PostgreSQL，本地演示与测试使用 SQLite
package mysql

import (
	"fmt"
	"time"

	"station_chat_server/internal/config"
	"station_chat_server/internal/dao/mysql/repository"
	"station_chat_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Init 初始化数据库连接并返回 Repository 层实例
// 执行步骤：
//  1. 按 driver 构建 Dialector
//  2. 使用 GORM 建立数据库连接并设置连接池
//  3. 执行 AutoMigrate 自动迁移表结构
//  4. 创建并返回 Repository 实例
func Init(conf *config.DatabaseConfig) (*repository.Repositories, error) {
	db, err := Open(conf)
	if err != nil {
		return nil, err
	}
	if err = Migrate(db); err != nil {
		return nil, err
	}
	zap.L().Info("数据库初始化完成", zap.String("driver", conf.Driver))
	return repository.NewRepositories(db), nil
}

// Open 建立数据库连接
func Open(conf *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(conf)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if conf.Driver == "sqlite" {
		// SQLite 只有一个写者，单连接使并发事务串行执行
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(conf.MaxOpenConns)
		sqlDB.SetMaxIdleConns(conf.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// Migrate 自动迁移表结构
// 只新增表和字段，不会删除已有字段或数据
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.GroupInfo{},
		&model.GroupMember{},
		&model.Session{},
		&model.Message{},
	)
}

func dialectorFor(conf *config.DatabaseConfig) (gorm.Dialector, error) {
	switch conf.Driver {
	case "mysql", "":
		// 格式：user:password@tcp(host:port)/database?params
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			conf.User, conf.Password, conf.Host, conf.Port, conf.DatabaseName)
		return mysqldriver.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			conf.Host, conf.User, conf.Password, conf.DatabaseName, conf.Port)
		return postgres.Open(dsn), nil
	case "sqlite":
		// DatabaseName 为文件路径或 file::memory: 形式的 DSN
		return sqlite.Open(conf.DatabaseName), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}
}
