package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/auth"
	"github.com/tidecrm/tidecrm/internal/errs"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/schedule"
	"github.com/tidecrm/tidecrm/validation"
)

// RoleClass drives the customer/lead selection policy. Which class a
// caller belongs to is decided outside the engine (role administration);
// the builder only enforces the selection rule for the class it is given.
type RoleClass int

const (
	SelectEither RoleClass = iota
	SelectCustomerOnly
	SelectLeadOnly
)

type ServiceInput struct {
	Name    string
	Details string
}

// PlanInput carries the schedule parameters for installment and
// recurring sales. Custom entries are an explicit ordered array, one per
// index, never loose per-index form fields.
type PlanInput struct {
	Mode          string
	Count         int
	Frequency     string
	StartDate     time.Time
	TotalPayments *int
	Entries       []schedule.CustomEntry
}

type SaleInput struct {
	CustomerID *uint
	LeadID     *uint
	Services   []ServiceInput
	// CurrentService is an in-progress form row the user never explicitly
	// added. It is committed on submit when it has a name; dropping it
	// silently would lose typed-in work.
	CurrentService *ServiceInput
	UnitPrice      decimal.Decimal
	CashIn         decimal.Decimal
	PaymentType    string
	PaymentSource  string
	PaymentCompany string
	Brand          string
	AgreementRef   string
	Plan           PlanInput
}

// ConvertLeadIntent asks the external customer subsystem to convert a
// lead; the builder never materializes customers itself.
type ConvertLeadIntent struct {
	LeadID uint
}

type BuildResult struct {
	Sale        *models.Sale
	ConvertLead *ConvertLeadIntent
}

// SaleService assembles and persists sale records together with their
// generated payment schedule.
type SaleService struct {
	db *gorm.DB
}

func NewSaleService(db *gorm.DB) *SaleService { return &SaleService{db: db} }

// Build validates the input, generates the payment schedule and persists
// sale, services and obligations in one transaction. Schedule generation
// is all-or-nothing: a validation failure aborts before anything is written.
func (s *SaleService) Build(ctx context.Context, actor auth.Actor, class RoleClass, in SaleInput) (*BuildResult, error) {
	v := validation.Violations{}
	checkSelection(class, in, v)

	services := commitServices(in)
	if len(services) == 0 {
		v["services"] = "at_least_one_required"
	}
	validation.Required("payment_type", in.PaymentType, v)
	validation.OneOf("payment_type", in.PaymentType,
		[]string{models.PaymentTypeOneTime, models.PaymentTypeInstallments, models.PaymentTypeRecurring}, v)
	validation.PositiveDecimal("unit_price", in.UnitPrice, v)
	validation.NonNegativeDecimal("cash_in", in.CashIn, v)
	if !v.Empty() {
		return nil, &errs.ValidationError{Violations: v}
	}
	if in.CashIn.GreaterThan(in.UnitPrice) {
		return nil, &errs.InvalidAmountError{Field: "cash_in", Amount: in.CashIn, Max: in.UnitPrice}
	}

	sale := &models.Sale{
		CustomerID:     in.CustomerID,
		LeadID:         in.LeadID,
		UnitPrice:      in.UnitPrice,
		CashIn:         in.CashIn,
		PaymentType:    in.PaymentType,
		PaymentSource:  in.PaymentSource,
		PaymentCompany: in.PaymentCompany,
		Brand:          in.Brand,
		AgreementRef:   in.AgreementRef,
		CreatedByID:    actor.UserID,
	}

	// Generate before opening the transaction so nothing is persisted on
	// a schedule validation failure.
	var entries []schedule.Entry
	var plan *models.RecurringPlan
	var err error
	switch in.PaymentType {
	case models.PaymentTypeInstallments:
		entries, err = schedule.BuildInstallments(schedule.InstallmentParams{
			UnitPrice: in.UnitPrice,
			CashIn:    in.CashIn,
			Count:     in.Plan.Count,
			Mode:      in.Plan.Mode,
			Frequency: in.Plan.Frequency,
			StartDate: in.Plan.StartDate,
			Entries:   in.Plan.Entries,
		})
	case models.PaymentTypeRecurring:
		plan, entries, err = schedule.BuildRecurring(0, schedule.RecurringParams{
			CashIn:        in.CashIn,
			Mode:          in.Plan.Mode,
			Frequency:     in.Plan.Frequency,
			StartDate:     in.Plan.StartDate,
			TotalPayments: in.Plan.TotalPayments,
			Entries:       in.Plan.Entries,
		})
	}
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sale).Error; err != nil {
			return err
		}
		rows := make([]models.SaleService, len(services))
		for i, svc := range services {
			rows[i] = models.SaleService{SaleID: sale.ID, Position: i + 1, Name: svc.Name, Details: svc.Details}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			obligations := schedule.Obligations(sale.ID, entries)
			if err := tx.Create(&obligations).Error; err != nil {
				return err
			}
		}
		if plan != nil {
			plan.SaleID = sale.ID
			if err := tx.Create(plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &BuildResult{Sale: sale}
	if in.LeadID != nil && in.CustomerID == nil {
		result.ConvertLead = &ConvertLeadIntent{LeadID: *in.LeadID}
	}
	return result, nil
}

// UpdateEconomics edits a sale's price and cash_in. The existing schedule
// is deliberately left untouched; regenerating obligations on edit is a
// product decision that has not been taken.
func (s *SaleService) UpdateEconomics(ctx context.Context, actor auth.Actor, saleID uint, unitPrice, cashIn decimal.Decimal) (*models.Sale, error) {
	v := validation.Violations{}
	validation.PositiveDecimal("unit_price", unitPrice, v)
	validation.NonNegativeDecimal("cash_in", cashIn, v)
	if !v.Empty() {
		return nil, &errs.ValidationError{Violations: v}
	}
	if cashIn.GreaterThan(unitPrice) {
		return nil, &errs.InvalidAmountError{Field: "cash_in", Amount: cashIn, Max: unitPrice}
	}
	var sale models.Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sale, saleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &errs.ObligationNotFoundError{Kind: "sale", ID: saleID}
			}
			return err
		}
		res := tx.Model(&models.Sale{}).
			Where("id = ? AND version = ?", sale.ID, sale.Version).
			Updates(map[string]any{
				"unit_price": unitPrice,
				"cash_in":    cashIn,
				"version":    sale.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &errs.ConcurrentModificationError{Kind: "sale", ID: sale.ID}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sale.UnitPrice = unitPrice
	sale.CashIn = cashIn
	sale.Version++
	return &sale, nil
}

func checkSelection(class RoleClass, in SaleInput, v validation.Violations) {
	hasCustomer := in.CustomerID != nil
	hasLead := in.LeadID != nil
	switch class {
	case SelectCustomerOnly:
		if !hasCustomer || hasLead {
			v["customer_id"] = "customer_required"
		}
	case SelectLeadOnly:
		if !hasLead || hasCustomer {
			v["lead_id"] = "lead_required"
		}
	default:
		if hasCustomer == hasLead { // both or neither
			v["selection"] = "exactly_one_of_customer_or_lead"
		}
	}
}

// commitServices returns the explicitly added services plus the
// in-progress row when it carries a name, dropping empty-name entries.
func commitServices(in SaleInput) []ServiceInput {
	var out []ServiceInput
	for _, svc := range in.Services {
		if strings.TrimSpace(svc.Name) != "" {
			out = append(out, svc)
		}
	}
	if in.CurrentService != nil && strings.TrimSpace(in.CurrentService.Name) != "" {
		out = append(out, *in.CurrentService)
	}
	return out
}
