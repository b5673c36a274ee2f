package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is a login identity of the admin panel.
type Account struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password  string         `gorm:"not null" json:"-"` // bcrypt hash
	Name      string         `gorm:"size:255" json:"name"`
	Title     string         `gorm:"size:255" json:"title"`
	Admin     int            `gorm:"not null;default:0" json:"admin"`
	Disabled  int            `gorm:"not null;default:0" json:"disabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Groups []AccountGroup `json:"groups,omitempty"`
}

func (a *Account) IsAdmin() bool    { return a.Admin == 1 }
func (a *Account) IsDisabled() bool { return a.Disabled == 1 }

// AccountGroup joins accounts and groups. Rows are created and deleted, never updated.
type AccountGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"uniqueIndex:idx_account_group;not null" json:"account_id"`
	GroupID   uint      `gorm:"uniqueIndex:idx_account_group;not null" json:"group_id"`
	CreatedAt time.Time `json:"created_at"`

	Account *Account `json:"account,omitempty"`
	Group   *Group   `json:"group,omitempty"`
}
