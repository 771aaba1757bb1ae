package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one immutable ledger entry: money actually received.
// Rows are append-only; no code path updates or deletes them.
type Payment struct {
	ID              uint            `gorm:"primaryKey"`
	Reference       string          `gorm:"type:varchar(36);uniqueIndex;not null"` // uuid handed to callers
	SaleID          uint            `gorm:"not null;index"`
	ObligationID    *uint           `gorm:"index"` // set for installment settlements
	RecurringPlanID *uint           `gorm:"index"` // set for recurring settlements
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Source          string
	Notes           string
	ProcessedByID   uint      `gorm:"not null;index"`
	CreatedAt       time.Time `gorm:"index"`
}
