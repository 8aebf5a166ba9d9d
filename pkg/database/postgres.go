package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"deposit-core/pkg/config"
	"deposit-core/pkg/logger"
)

// ConnectPostgres attempt journal 和 outbox 用. debug 时打印每条 SQL.
func ConnectPostgres(cfg config.DBConfig, debug bool) (*gorm.DB, error) {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	gl := gormlogger.New(zap.NewStdLog(logger.Log.Named("gorm")), gormlogger.Config{
		SlowThreshold: 500 * time.Millisecond,
		LogLevel:      level,
		// journal 按 deposit id 查不到是常态
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("connect postgres %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 写入量很小, 每笔存款几行
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Info("postgres connected", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
	return db, nil
}
