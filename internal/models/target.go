package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpsellerTarget is a monthly cash-in goal for one user. Actual cash-in
// and progress are derived from the payment ledger, never stored.
type UpsellerTarget struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      uint            `gorm:"not null;index:idx_target_user_period,unique,priority:1"`
	Period      string          `gorm:"type:varchar(7);not null;index:idx_target_user_period,unique,priority:2"` // YYYY-MM
	TargetValue decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
