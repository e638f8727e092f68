package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"optionsrunner/src/model"
)

// MainDB is the checkpoint store connection used by every repository.
// The runner is its only writer.
var MainDB *gorm.DB

// InitMainDB opens the checkpoint store and runs migrations. Call once at
// startup; every transition the state machine makes is flushed through this
// connection before the loop proceeds.
func InitMainDB() error {
	config := GetConfig()

	dialector := openDialector(config.DatabaseURL)
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to checkpoint store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")

	return nil
}

// Migrate creates or updates every checkpoint table. Exposed so tests can run
// it against an in-memory sqlite database.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Contract{},
		&model.Position{},
		&model.AccountOrder{},
		&model.BracketOrder{},
		&model.TradeRecord{},
		&model.Exception{},
		&model.LegState{},
		&model.HourGate{},
		&model.Counter{},
		&model.AccountCredential{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func openDialector(url string) gorm.Dialector {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.Open(url)
	}
	return sqlite.Open(url)
}
