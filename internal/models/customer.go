package models

import "time"

// Customer entity. Sales reference customers once a lead is converted;
// conversion itself happens in the customer subsystem, not here.
type Customer struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;index"`
	Email     string `gorm:"index"`
	Phone     string
	Company   string
	Brand     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lead is a prospect that may be converted into a Customer when a sale
// is closed against it.
type Lead struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"not null;index"`
	Email      string `gorm:"index"`
	Phone      string
	Source     string
	AssignedTo uint `gorm:"index"` // FK to User
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
