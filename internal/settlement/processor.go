// Package settlement applies incoming payments against a sale's payment
// plan. Every operation pairs its ledger append with the obligation
// mutation in one transaction; a failure leaves no partial state.
//
// Operations here are NOT safely retryable: the layer performs no
// deduplication, and resubmitting a lost request can double-settle.
package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/auth"
	"github.com/tidecrm/tidecrm/internal/errs"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/schedule"
)

type Processor struct {
	db *gorm.DB
}

func NewProcessor(db *gorm.DB) *Processor { return &Processor{db: db} }

// Apply routes a settlement request to its pathway and returns the
// appended ledger entry. The caller's context bounds all storage calls.
func (p *Processor) Apply(ctx context.Context, actor auth.Actor, req Request) (*models.Payment, error) {
	if req.Amount.Sign() <= 0 {
		return nil, &errs.InvalidAmountError{Field: "amount", Amount: req.Amount, Max: decimal.Zero}
	}
	var entry *models.Payment
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch req.Kind {
		case KindRemaining:
			entry, err = p.applyRemaining(tx, actor, req)
		case KindInstallment:
			entry, err = p.applyInstallment(tx, actor, req)
		case KindRecurring:
			entry, err = p.applyRecurring(tx, actor, req)
		default:
			err = errs.Invalid("kind", "unknown_settlement_kind")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// applyRemaining pays down a one_time sale's remaining balance and bumps
// its cash_in.
func (p *Processor) applyRemaining(tx *gorm.DB, actor auth.Actor, req Request) (*models.Payment, error) {
	var sale models.Sale
	if err := tx.First(&sale, req.SaleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.ObligationNotFoundError{Kind: "sale", ID: req.SaleID}
		}
		return nil, err
	}
	if sale.PaymentType != models.PaymentTypeOneTime {
		return nil, errs.Invalid("sale", "not_a_one_time_sale")
	}
	remaining := sale.UnitPrice.Sub(sale.CashIn)
	if req.Amount.GreaterThan(remaining) {
		return nil, &errs.AmountExceedsRemainingError{Kind: "sale", ID: sale.ID, Amount: req.Amount, Remaining: remaining}
	}
	res := tx.Model(&models.Sale{}).
		Where("id = ? AND version = ?", sale.ID, sale.Version).
		Updates(map[string]any{
			"cash_in": sale.CashIn.Add(req.Amount),
			"version": sale.Version + 1,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &errs.ConcurrentModificationError{Kind: "sale", ID: sale.ID}
	}
	return p.appendLedger(tx, actor, req, sale.ID, nil, nil)
}

// applyInstallment pays one installment; fully covering it flips the
// status to paid.
func (p *Processor) applyInstallment(tx *gorm.DB, actor auth.Actor, req Request) (*models.Payment, error) {
	var ob models.PaymentObligation
	if err := tx.First(&ob, req.ObligationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.ObligationNotFoundError{Kind: "installment", ID: req.ObligationID}
		}
		return nil, err
	}
	if ob.Settled() {
		return nil, &errs.ObligationAlreadySettledError{Kind: "installment", ID: ob.ID, Status: ob.Status}
	}
	outstanding := ob.Outstanding()
	if req.Amount.GreaterThan(outstanding) {
		return nil, &errs.AmountExceedsRemainingError{Kind: "installment", ID: ob.ID, Amount: req.Amount, Remaining: outstanding}
	}
	newPaid := ob.PaidAmount.Add(req.Amount)
	status := ob.Status
	if newPaid.GreaterThanOrEqual(ob.Amount) {
		status = models.ObligationPaid
	}
	res := tx.Model(&models.PaymentObligation{}).
		Where("id = ? AND version = ?", ob.ID, ob.Version).
		Updates(map[string]any{
			"paid_amount": newPaid,
			"status":      status,
			"version":     ob.Version + 1,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &errs.ConcurrentModificationError{Kind: "installment", ID: ob.ID}
	}
	obID := ob.ID
	return p.appendLedger(tx, actor, req, ob.SaleID, &obID, nil)
}

// applyRecurring settles one occurrence: ledger append, payments_made++,
// next_payment_date advanced by one period, completion when the bound is
// reached. Unbounded plans never complete.
func (p *Processor) applyRecurring(tx *gorm.DB, actor auth.Actor, req Request) (*models.Payment, error) {
	var plan models.RecurringPlan
	if err := tx.First(&plan, req.RecurringPlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.ObligationNotFoundError{Kind: "recurring", ID: req.RecurringPlanID}
		}
		return nil, err
	}
	if plan.Settled() {
		return nil, &errs.ObligationAlreadySettledError{Kind: "recurring", ID: plan.ID, Status: plan.Status}
	}
	newMade := plan.PaymentsMade + 1
	status := plan.Status
	if plan.TotalPayments != nil && newMade >= *plan.TotalPayments {
		status = models.RecurringCompleted
	}
	res := tx.Model(&models.RecurringPlan{}).
		Where("id = ? AND version = ?", plan.ID, plan.Version).
		Updates(map[string]any{
			"payments_made":     newMade,
			"next_payment_date": schedule.AddPeriod(plan.NextPaymentDate, plan.Frequency),
			"status":            status,
			"version":           plan.Version + 1,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &errs.ConcurrentModificationError{Kind: "recurring", ID: plan.ID}
	}
	// Bounded/custom plans have materialized occurrence rows; keep the
	// matching row in step with the plan counter.
	if err := tx.Model(&models.PaymentObligation{}).
		Where("sale_id = ? AND sequence_number = ? AND status = ?", plan.SaleID, newMade, models.ObligationPending).
		Updates(map[string]any{
			"paid_amount": gorm.Expr("amount"),
			"status":      models.ObligationPaid,
			"version":     gorm.Expr("version + 1"),
		}).Error; err != nil {
		return nil, err
	}
	planID := plan.ID
	return p.appendLedger(tx, actor, req, plan.SaleID, nil, &planID)
}

func (p *Processor) appendLedger(tx *gorm.DB, actor auth.Actor, req Request, saleID uint, obligationID, planID *uint) (*models.Payment, error) {
	entry := &models.Payment{
		Reference:       uuid.NewString(),
		SaleID:          saleID,
		ObligationID:    obligationID,
		RecurringPlanID: planID,
		Amount:          req.Amount,
		Source:          req.Source,
		Notes:           req.Notes,
		ProcessedByID:   actor.UserID,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}
