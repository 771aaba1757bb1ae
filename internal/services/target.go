package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/auth"
	"github.com/tidecrm/tidecrm/internal/errs"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/reconcile"
	"github.com/tidecrm/tidecrm/validation"
)

// TargetService tracks monthly cash-in targets per upseller. It is a
// thin consumer of the ledger: actuals are summed from payment rows,
// never stored.
type TargetService struct {
	db *gorm.DB
}

func NewTargetService(db *gorm.DB) *TargetService { return &TargetService{db: db} }

// TargetProgress is the derived monthly picture for one user.
type TargetProgress struct {
	Target             models.UpsellerTarget
	ActualCashIn       decimal.Decimal
	ProgressPercentage int
}

// Set creates or updates the target for a user and period.
func (s *TargetService) Set(ctx context.Context, actor auth.Actor, userID uint, period string, target decimal.Decimal) (*models.UpsellerTarget, error) {
	v := validation.Violations{}
	validation.Period("period", period, v)
	validation.PositiveDecimal("target_value", target, v)
	if !v.Empty() {
		return nil, &errs.ValidationError{Violations: v}
	}
	var row models.UpsellerTarget
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND period = ?", userID, period).First(&row).Error
		switch {
		case err == nil:
			return tx.Model(&row).Update("target_value", target).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.UpsellerTarget{UserID: userID, Period: period, TargetValue: target}
			return tx.Create(&row).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	row.TargetValue = target
	return &row, nil
}

// Progress derives actual cash-in and progress percentage for a user's
// target in the given period from the ledger's aggregate cash flow.
func (s *TargetService) Progress(ctx context.Context, userID uint, period string) (*TargetProgress, error) {
	v := validation.Violations{}
	validation.Period("period", period, v)
	if !v.Empty() {
		return nil, &errs.ValidationError{Violations: v}
	}
	var target models.UpsellerTarget
	if err := s.db.WithContext(ctx).Where("user_id = ? AND period = ?", userID, period).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &errs.ObligationNotFoundError{Kind: "target", ID: userID}
		}
		return nil, err
	}
	start, _ := time.Parse("2006-01", period)
	end := start.AddDate(0, 1, 0)

	var actual decimal.Decimal
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("processed_by_id = ? AND created_at >= ? AND created_at < ?", userID, start, end).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&actual).Error; err != nil {
		return nil, err
	}
	return &TargetProgress{
		Target:             target,
		ActualCashIn:       actual,
		ProgressPercentage: reconcile.ProgressPercentage(target.TargetValue, actual),
	}, nil
}
