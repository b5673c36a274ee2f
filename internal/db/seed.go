package database

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	applog "supik-server/internal/logger"
	"supik-server/internal/models"
)

// ErrSeedCredentials is returned when no bootstrap credentials are configured.
var ErrSeedCredentials = errors.New("admin username and password are required")

// PasswordHasher turns a plain password into the stored hash.
type PasswordHasher func(password string) (string, error)

// SeedAdminAccount creates the bootstrap administrator unless an active
// admin already exists. It reports whether an account was created.
func SeedAdminAccount(db *gorm.DB, username, password string, hash PasswordHasher) (bool, error) {
	var admins int64
	if err := db.Model(&models.Account{}).Where("admin = ?", 1).Count(&admins).Error; err != nil {
		return false, err
	}
	if admins > 0 {
		return false, nil
	}
	if username == "" || password == "" {
		return false, ErrSeedCredentials
	}

	hashed, err := hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	account := models.Account{
		Username: username,
		Password: hashed,
		Name:     "Administrator",
		Admin:    1,
	}

	// Username is unique; a soft-deleted row with the same name is left alone.
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&account)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, fmt.Errorf("username %q is taken by a non-admin or deleted account", username)
	}

	applog.Info("Seeded admin account", zap.String("username", username))
	return true, nil
}
