package models

import "time"

// Recurring plan frequencies.
const (
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

// Recurring plan statuses.
const (
	RecurringActive    = "active"
	RecurringPaused    = "paused"
	RecurringCancelled = "cancelled"
	RecurringCompleted = "completed"
)

// RecurringPlan tracks an open-ended or bounded series of recurring
// charges on a sale. Only the next occurrence pointer is stored; future
// occurrences are not materialized unless the plan is bounded.
//
// Invariant: completed iff TotalPayments != nil && PaymentsMade >= *TotalPayments.
type RecurringPlan struct {
	ID              uint      `gorm:"primaryKey"`
	SaleID          uint      `gorm:"not null;uniqueIndex"`
	Frequency       string    `gorm:"not null"`
	NextPaymentDate time.Time `gorm:"not null;index"`
	PaymentsMade    int       `gorm:"not null;default:0"`
	TotalPayments   *int      // nil means unbounded
	Status          string    `gorm:"not null;default:'active';index"`
	Version         int64     `gorm:"not null;default:0"` // optimistic lock
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Settled reports whether the plan accepts no further occurrences.
func (p *RecurringPlan) Settled() bool {
	return p.Status == RecurringCompleted || p.Status == RecurringCancelled
}

// Bounded reports whether the plan has a fixed number of occurrences.
func (p *RecurringPlan) Bounded() bool { return p.TotalPayments != nil }
