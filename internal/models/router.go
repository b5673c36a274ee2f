package models

import (
	"time"

	"gorm.io/gorm"
)

// Router is a RouterOS device reachable over its REST API.
type Router struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Host      string         `gorm:"size:255;not null" json:"host"`
	Port      int            `json:"port"`
	Username  string         `gorm:"size:64" json:"username"`
	Password  string         `json:"-"`
	Title     string         `gorm:"size:255" json:"title"`
	Disabled  int            `gorm:"not null;default:0" json:"disabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Viewers []RouterGroupViewer `json:"viewers,omitempty"`
	Editors []RouterGroupEditor `json:"editors,omitempty"`
}

// RouterGroupViewer grants a group viewer scope over one router.
type RouterGroupViewer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RouterID  uint      `gorm:"uniqueIndex:idx_router_viewer;not null" json:"router_id"`
	GroupID   uint      `gorm:"uniqueIndex:idx_router_viewer;not null" json:"group_id"`
	CreatedAt time.Time `json:"created_at"`

	Group *Group `json:"group,omitempty"`
}

// RouterGroupEditor grants a group editor scope over one router. It is
// stored independently of RouterGroupViewer.
type RouterGroupEditor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RouterID  uint      `gorm:"uniqueIndex:idx_router_editor;not null" json:"router_id"`
	GroupID   uint      `gorm:"uniqueIndex:idx_router_editor;not null" json:"group_id"`
	CreatedAt time.Time `json:"created_at"`

	Group *Group `json:"group,omitempty"`
}
