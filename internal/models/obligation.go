package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Obligation statuses.
const (
	ObligationPending   = "pending"
	ObligationPaid      = "paid"
	ObligationOverdue   = "overdue"
	ObligationCancelled = "cancelled"
)

// PaymentObligation is one scheduled payment: an installment or a
// materialized recurring occurrence. Created once by the schedule
// generator, thereafter mutated only by the settlement processor.
//
// Invariants: PaidAmount <= Amount; status paid iff PaidAmount >= Amount.
type PaymentObligation struct {
	ID             uint            `gorm:"primaryKey"`
	SaleID         uint            `gorm:"not null;index:idx_obligation_sale_seq,unique,priority:1"`
	SequenceNumber int             `gorm:"not null;index:idx_obligation_sale_seq,unique,priority:2"` // 1-based
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DueDate        time.Time       `gorm:"not null;index"`
	PaidAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status         string          `gorm:"not null;default:'pending';index"`
	Notes          string
	Version        int64 `gorm:"not null;default:0"` // optimistic lock
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Settled reports whether no further money may be applied to this obligation.
func (o *PaymentObligation) Settled() bool {
	return o.Status == ObligationPaid || o.Status == ObligationCancelled
}

// Outstanding is the amount still owed on this obligation.
func (o *PaymentObligation) Outstanding() decimal.Decimal {
	return o.Amount.Sub(o.PaidAmount)
}
