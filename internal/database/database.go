package database

import (
	"fmt"

	"crypto-ledger-go/internal/auth"
	"crypto-ledger-go/internal/config"
	"crypto-ledger-go/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates missing tables and seeds the default user. Migration
// is additive only: wallet balances must survive restarts.
func AutoMigrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(&models.WalletEntry{}, &models.Transaction{}, &models.User{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// Seed the configured default user so the console login works on a
	// fresh database.
	if cfg.Auth.DefaultUser != "" {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", cfg.Auth.DefaultUser).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for default user: %w", err)
		}
		if count == 0 {
			if _, err := auth.CreateUser(db, cfg.Auth.DefaultUser, cfg.Auth.DefaultPassword); err != nil {
				return err
			}
		}
	}

	return nil
}
