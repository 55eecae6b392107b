package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradecopier/copier/internal/model"
)

// DB is the process-wide GORM handle, populated by Init. Kept as a package
// global the way the original codebase keeps MainDB. The New*Repository
// constructors read it; tests bypass it by giving a repository its own
// *gorm.DB (WithDB or the struct field).
var DB *gorm.DB

// Init opens the primary store connection, tunes the pool, and runs
// AutoMigrate across every persisted entity. It should be called once at
// daemon startup.
func Init() error {
	cfg := GetConfig()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(cfg.GormLogLevel)),
	})
	if err != nil {
		return fmt.Errorf("database: failed to connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: failed to get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	DB = db
	logrus.Info("[database] connection established")

	if err := Migrate(db); err != nil {
		return err
	}

	logrus.Info("[database] migrations completed")
	return nil
}

// Migrate runs AutoMigrate for every model in the write-side schema. Split
// out from Init so tests can call it directly against an in-memory sqlite
// handle without going through TranslateError/pool setup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Organisation{},
		&model.User{},
		&model.TradingAccount{},
		&model.Copier{},
		&model.CopierAccountConfig{},
		&model.Trade{},
		&model.TradeMapping{},
		&model.RiskRule{},
		&model.ExecutionLog{},
	); err != nil {
		return fmt.Errorf("database: failed to run migrations: %w", err)
	}
	return nil
}
