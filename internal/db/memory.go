package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemory opens a private, migrated SQLite database held in RAM. A
// single connection keeps every query on the same in-memory database.
func NewInMemory() (*Client, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	c := &Client{DB: db}
	if err := c.AutoMigrate(); err != nil {
		return nil, err
	}
	return c, nil
}
