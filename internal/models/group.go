package models

import (
	"time"

	"gorm.io/gorm"
)

// Access levels stored in the Group capability columns.
const (
	AccessNone   = 0
	AccessViewer = 1
	AccessEditor = 2
)

// Group is a named permission bundle. Each Access* column is one capability family.
type Group struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Title            string         `gorm:"size:255" json:"title"`
	AccessRouter     int            `gorm:"not null;default:0" json:"access_router"`
	AccessUser       int            `gorm:"not null;default:0" json:"access_user"`
	AccessDepartment int            `gorm:"not null;default:0" json:"access_department"`
	AccessMail       int            `gorm:"not null;default:0" json:"access_mail"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Accounts []AccountGroup `json:"accounts,omitempty"`
}
