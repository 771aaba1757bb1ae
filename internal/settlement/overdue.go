package settlement

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/internal/models"
)

// MarkOverdue is the explicit caller-invoked batch that flips pending
// obligations whose due date has passed to overdue. There is no internal
// timer; reporting surfaces trigger this when they need fresh state.
func (p *Processor) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	res := p.db.WithContext(ctx).Model(&models.PaymentObligation{}).
		Where("status = ? AND due_date < ?", models.ObligationPending, day).
		Updates(map[string]any{
			"status":  models.ObligationOverdue,
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}
