package auth

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"supik-server/internal/models"
)

// RouterACL is the pair of independent group sets attached to one router.
type RouterACL struct {
	RouterID uint
	Viewers  []uint
	Editors  []uint
}

// Store is the credential and ACL data the auth layer reads. Lookups must
// exclude soft-deleted accounts and routers and return ErrIdentityNotFound
// or ErrResourceNotFound for missing rows.
type Store interface {
	AccountByID(ctx context.Context, id uint) (*models.Account, error)
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	RouterACL(ctx context.Context, routerID uint) (*RouterACL, error)
}

// GormStore implements Store on top of the application database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Soft-deleted groups still count while the membership row exists.
func preloadGroups(db *gorm.DB) *gorm.DB {
	return db.Preload("Groups.Group", func(tx *gorm.DB) *gorm.DB {
		return tx.Unscoped()
	})
}

func (s *GormStore) AccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := preloadGroups(s.db.WithContext(ctx)).First(&account, id).Error
	return s.account(&account, err)
}

func (s *GormStore) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := preloadGroups(s.db.WithContext(ctx)).Where("username = ?", username).First(&account).Error
	return s.account(&account, err)
}

func (s *GormStore) account(account *models.Account, err error) (*models.Account, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return account, nil
}

func (s *GormStore) RouterACL(ctx context.Context, routerID uint) (*RouterACL, error) {
	db := s.db.WithContext(ctx)

	var router models.Router
	err := db.Select("id").First(&router, routerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFault, err)
	}

	acl := &RouterACL{RouterID: router.ID}
	if err := db.Model(&models.RouterGroupViewer{}).
		Where("router_id = ?", router.ID).
		Pluck("group_id", &acl.Viewers).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	if err := db.Model(&models.RouterGroupEditor{}).
		Where("router_id = ?", router.ID).
		Pluck("group_id", &acl.Editors).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return acl, nil
}
