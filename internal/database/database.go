package database

import (
	"fmt"

	"github.com/sustainareview/sustainareview-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to postgres or sqlite depending on driver.
func Open(driver, databaseURL string, production bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(databaseURL)
	case "sqlite":
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	logLevel := logger.Info
	if production {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// sqlite ships with foreign keys disabled
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}

func Init(driver, databaseURL string, production bool) (*gorm.DB, error) {
	db, err := Open(driver, databaseURL, production)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Auto migrate schemas
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.PasswordResetToken{},
		&models.Category{},
		&models.Attribute{},
		&models.Product{},
		&models.Review{},
		&models.ReviewPhoto{},
		&models.ReviewVote{},
		&models.Bookmark{},
	)
}
