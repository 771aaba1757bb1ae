package models

import "time"

// User & auth related models
type User struct {
	ID          uint   `gorm:"primaryKey"`
	Email       string `gorm:"unique;not null;index"`
	Password    string `gorm:"not null"` // bcrypt hash
	FirstName   string `gorm:"index"`
	LastName    string `gorm:"index"`
	RoleID      uint   // FK to Role
	Role        Role   `gorm:"foreignKey:RoleID"`
	Permissions string // extra per-user permissions (CSV of module:action)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Role struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"unique;not null"` // admin, manager, upseller
	Description string // optional
	Permissions string // CSV of module:action grants
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
