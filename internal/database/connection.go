package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mailvault/mailvault/config"
)

// NewConnection opens the Postgres pool. The pool is kept small: the
// pollers and the HTTP handlers share it, and writes are short transactions.
func NewConnection(dbConfig *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbConfig.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(dbConfig.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	// Fail fast on a dead database rather than at the first poll cycle
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "SILENT":
		return gormlogger.Silent
	case "INFO":
		return gormlogger.Info
	case "ERROR":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
