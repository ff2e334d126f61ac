// Package repositories provides the data access layer of the ledger.
// It handles all database operations and data persistence logic.
package repositories

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ledger/internal/config"
	"ledger/internal/models"
	"ledger/internal/utils"
)

// DBConfig holds database connection pool configuration
type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var defaultDBConfig = DBConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    100,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: time.Minute * 30,
}

// InitDB opens the Postgres connection, configures the pool and migrates
// the ledger tables. The handle is returned rather than stored globally so
// callers wire it into repositories explicitly.
func InitDB() (*gorm.DB, error) {
	log := utils.GetLogger()

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		config.GetEnv("DB_HOST", "localhost"),
		config.GetEnv("DB_USER", "postgres"),
		config.GetEnv("DB_PASSWORD", "postgres"),
		config.GetEnv("DB_NAME", "ledger"),
		config.GetEnv("DB_PORT", "5432"),
		config.GetEnv("DB_SSLMODE", "disable"),
	)

	logLevel := logger.Warn
	if !config.IsProduction() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(defaultDBConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(defaultDBConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(defaultDBConfig.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(defaultDBConfig.ConnMaxIdleTime)

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.Transfer{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// One active cash account per branch, so concurrent provisioning
	// cannot create duplicates.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_branch_cash
		ON accounts (company_id, branch_id) WHERE type = 'cash' AND is_active`).Error; err != nil {
		return nil, fmt.Errorf("failed to create cash account index: %w", err)
	}

	log.WithField("database", config.GetEnv("DB_NAME", "ledger")).Info("database initialized")
	return db, nil
}
