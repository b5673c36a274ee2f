package models

import (
	"time"

	"gorm.io/gorm"
)

// Department groups directory users.
type Department struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Title     string         `gorm:"size:255" json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// User is an employee record, not a login identity.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Surname      string         `gorm:"size:128" json:"surname"`
	Name         string         `gorm:"size:128;not null" json:"name"`
	Patronymic   string         `gorm:"size:128" json:"patronymic"`
	Title        string         `gorm:"size:255" json:"title"`
	Login        string         `gorm:"index;size:64" json:"login"`
	Email        string         `gorm:"size:255" json:"email"`
	Phone        string         `gorm:"size:32" json:"phone"`
	CellPhone    string         `gorm:"size:32" json:"cell_phone"`
	DepartmentID *uint          `gorm:"index" json:"department_id"`
	Disabled     int            `gorm:"not null;default:0" json:"disabled"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Department *Department `json:"department,omitempty"`
}

// Mail is a Yandex 360 mailbox mirrored locally.
type Mail struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Nickname   string         `gorm:"uniqueIndex;size:128;not null" json:"nickname"`
	Email      string         `gorm:"size:255" json:"email"`
	NameFirst  string         `gorm:"size:128" json:"name_first"`
	NameLast   string         `gorm:"size:128" json:"name_last"`
	NameMiddle string         `gorm:"size:128" json:"name_middle"`
	Position   string         `gorm:"size:255" json:"position"`
	YandexID   string         `gorm:"index;size:64" json:"yandex_id"`
	UserID     *uint          `gorm:"index" json:"user_id"`
	Disabled   int            `gorm:"not null;default:0" json:"disabled"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	User *User `json:"user,omitempty"`
}

// VpnAccount mirrors a PPP secret on a router. The password lives only
// on the router.
type VpnAccount struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RouterID      uint           `gorm:"index;not null" json:"router_id"`
	Name          string         `gorm:"size:128;not null" json:"name"`
	Profile       string         `gorm:"size:64" json:"profile"`
	Service       string         `gorm:"size:32" json:"service"`
	RemoteAddress string         `gorm:"size:64" json:"remote_address"`
	RouterosID    string         `gorm:"size:32" json:"routeros_id"`
	UserID        *uint          `gorm:"index" json:"user_id"`
	Disabled      int            `gorm:"not null;default:0" json:"disabled"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	User *User `json:"user,omitempty"`
}
