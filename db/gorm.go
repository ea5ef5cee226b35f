// Package db opens the optional MySQL connection that backs the activity log.
package db

import (
	"fmt"
	"strings"
	"time"

	"Rippers/config"
	"Rippers/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DSN builds the MySQL data source name from the configuration.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// zapWriter sends gorm's log lines to the process logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	logger.Debug("gorm", logger.String("sql", msg))
}

func newGormLogger(cfg *config.Config) gormlogger.Interface {
	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}
	return gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Connect opens MySQL and sizes its pool for a single-user library.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger:                                   newGormLogger(cfg),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect activity database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("Activity database connected",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return gdb, nil
}

// Migrate creates or updates the tables for models.
func Migrate(gdb *gorm.DB, models ...interface{}) error {
	if gdb == nil {
		return fmt.Errorf("activity database not connected")
	}
	if err := gdb.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate activity tables: %w", err)
	}
	return nil
}

// Closer returns a function that closes the pool behind gdb.
func Closer(gdb *gorm.DB) func() error {
	return func() error {
		if gdb == nil {
			return nil
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}
