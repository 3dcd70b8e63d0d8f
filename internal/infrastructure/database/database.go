package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// InitDatabase 初始化数据库连接，失败直接退出
func InitDatabase(cfg *config.Config) *gorm.DB {
	db, err := Open(&cfg.Database, &cfg.MySQL)
	if err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}
	log.Printf("数据库连接成功: driver=%s", cfg.Database.Driver)
	return db
}

// Open 按配置打开 MySQL 或 SQLite 并迁移表结构
func Open(dbCfg *config.DatabaseConfig, mysqlCfg *config.MySQLConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case DriverMySQL, "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			mysqlCfg.User,
			mysqlCfg.Password,
			mysqlCfg.Host,
			mysqlCfg.Port,
			mysqlCfg.Database,
		)
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		// _txlock=immediate: 写事务一开始就拿写锁，避免并发升级锁时报 database is locked
		sep := "?"
		if strings.Contains(dbCfg.DSN, "?") {
			sep = "&"
		}
		dialector = sqlite.Open(dbCfg.DSN + sep + "_busy_timeout=5000&_txlock=immediate")
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", dbCfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(dbCfg.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 DB 失败: %w", err)
	}

	// 连接池配置
	if dbCfg.Driver == DriverSQLite {
		// SQLite 只允许一个写连接
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(mysqlCfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(mysqlCfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	err = db.AutoMigrate(
		&model.Account{},
		&model.PaymentRecord{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return nil, fmt.Errorf("自动迁移表结构失败: %w", err)
	}

	return db, nil
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
