// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Application{},
		&models.Registration{},
		&models.RentalProperty{},
		&models.PlatformRegistration{},
		&models.StrataHotelRegistration{},
		&models.Document{},
		&models.Certificate{},
		&models.NoticeOfConsideration{},
		&models.RegistrationNoticeOfConsideration{},
		&models.AutoApprovalRecord{},
		&models.RegistrationSnapshot{},
		&models.Event{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Application indexes
		"CREATE INDEX IF NOT EXISTS idx_applications_status_type ON applications(status, registration_type)",
		"CREATE INDEX IF NOT EXISTS idx_applications_submitter ON applications(submitter_id)",
		"CREATE INDEX IF NOT EXISTS idx_applications_reviewer ON applications(reviewer_id)",
		"CREATE INDEX IF NOT EXISTS idx_applications_registration ON applications(registration_id)",
		"CREATE INDEX IF NOT EXISTS idx_applications_created_at ON applications(created_at DESC)",

		// Registration indexes
		"CREATE INDEX IF NOT EXISTS idx_registrations_status_expiry ON registrations(status, expiry_date)",
		"CREATE INDEX IF NOT EXISTS idx_registrations_user ON registrations(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_registrations_type_status ON registrations(registration_type, status)",

		// Event indexes
		"CREATE INDEX IF NOT EXISTS idx_events_application ON events(application_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_events_registration ON events(registration_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_events_name_type ON events(event_type, event_name)",

		// NOC indexes
		"CREATE INDEX IF NOT EXISTS idx_nocs_end_date ON notice_of_considerations(end_date)",
		"CREATE INDEX IF NOT EXISTS idx_registration_nocs_end_date ON registration_notice_of_considerations(end_date)",

		// Rental property address lookup
		"CREATE INDEX IF NOT EXISTS idx_rental_properties_address ON rental_properties(one_line_address)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
