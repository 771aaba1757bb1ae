package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment plan types supported on a sale.
const (
	PaymentTypeOneTime      = "one_time"
	PaymentTypeInstallments = "installments"
	PaymentTypeRecurring    = "recurring"
)

// Sale holds the immutable economic terms of a closed deal. The schedule
// derived from these terms lives in PaymentObligation / RecurringPlan rows
// and is generated once at creation time.
type Sale struct {
	ID             uint            `gorm:"primaryKey"`
	CustomerID     *uint           `gorm:"index"` // nil while a lead conversion is pending
	Customer       *Customer       `gorm:"foreignKey:CustomerID"`
	LeadID         *uint           `gorm:"index"`
	Services       []SaleService   `gorm:"foreignKey:SaleID"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CashIn         decimal.Decimal `gorm:"type:numeric(12,2);not null"` // money received so far
	PaymentType    string          `gorm:"not null"`                    // one_time, installments, recurring
	PaymentSource  string
	PaymentCompany string
	Brand          string `gorm:"index"`
	AgreementRef   string // opaque reference into agreement storage
	CreatedByID    uint   `gorm:"not null;index"`
	CreatedBy      User   `gorm:"foreignKey:CreatedByID"`
	Version        int64  `gorm:"not null;default:0"` // optimistic lock for cash_in updates
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GetUserID reports the creating user for ownership policies.
func (s *Sale) GetUserID() uint { return s.CreatedByID }

// SaleService is one sold line item; order is preserved via Position.
type SaleService struct {
	ID       uint   `gorm:"primaryKey"`
	SaleID   uint   `gorm:"not null;index"`
	Position int    `gorm:"not null"`
	Name     string `gorm:"not null"`
	Details  string
}
