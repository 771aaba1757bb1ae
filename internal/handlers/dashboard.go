package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/reconcile"
)

// DashboardHandler aggregates the reporting figures shown on the home
// screen. Read-only; everything is derived on request.
type DashboardHandler struct {
	DB   *gorm.DB
	Gate *gate.Gate[uint]
}

func NewDashboardHandler(db *gorm.DB, g *gate.Gate[uint]) *DashboardHandler {
	return &DashboardHandler{DB: db, Gate: g}
}

// Summary: GET /dashboard
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModuleSales, gate.ActionView) {
		return
	}
	ctx := r.Context()
	today := time.Now()
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	var saleCount int64
	h.DB.WithContext(ctx).Model(&models.Sale{}).Count(&saleCount)

	var upcoming int64
	h.DB.WithContext(ctx).Model(&models.PaymentObligation{}).
		Where("status = ? AND due_date >= ? AND due_date <= ?",
			models.ObligationPending, day, day.AddDate(0, 0, reconcile.DueSoonDays)).
		Count(&upcoming)

	var overdue int64
	h.DB.WithContext(ctx).Model(&models.PaymentObligation{}).
		Where("status = ?", models.ObligationOverdue).Count(&overdue)

	var monthCashIn decimal.Decimal
	h.DB.WithContext(ctx).Model(&models.Payment{}).
		Where("created_at >= ?", monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&monthCashIn)

	var outstanding decimal.Decimal
	h.DB.WithContext(ctx).Model(&models.PaymentObligation{}).
		Where("status NOT IN ?", []string{models.ObligationPaid, models.ObligationCancelled}).
		Select("COALESCE(SUM(amount - paid_amount), 0)").Scan(&outstanding)

	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":             saleCount,
		"upcoming_payments": upcoming,
		"overdue_payments":  overdue,
		"month_cash_in":     monthCashIn,
		"outstanding":       outstanding,
	})
}
