package handlers

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/reconcile"
	"github.com/tidecrm/tidecrm/internal/settlement"
)

// ObligationHandler serves the upcoming/overdue payment widgets and the
// explicit mark-overdue batch.
type ObligationHandler struct {
	DB   *gorm.DB
	Proc *settlement.Processor
	Gate *gate.Gate[uint]
}

func NewObligationHandler(db *gorm.DB, proc *settlement.Processor, g *gate.Gate[uint]) *ObligationHandler {
	return &ObligationHandler{DB: db, Proc: proc, Gate: g}
}

// Upcoming: GET /obligations/upcoming lists pending obligations inside the
// due-soon window, oldest first.
func (h *ObligationHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModulePayments, gate.ActionView) {
		return
	}
	today := time.Now()
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	horizon := day.AddDate(0, 0, reconcile.DueSoonDays)
	var obligations []models.PaymentObligation
	if err := h.DB.WithContext(r.Context()).
		Where("status = ? AND due_date >= ? AND due_date <= ?", models.ObligationPending, day, horizon).
		Order("due_date, sale_id").Find(&obligations).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_obligations", nil)
		return
	}
	views := make([]obligationView, len(obligations))
	for i, o := range obligations {
		views[i] = obligationView{
			PaymentObligation: o,
			DaysUntilDue:      reconcile.DaysUntilDue(o.DueDate, today),
			DueSoon:           true,
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "total": len(views)})
}

// Overdue: GET /obligations/overdue lists obligations already flipped by the
// mark-overdue batch, most overdue first.
func (h *ObligationHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModulePayments, gate.ActionView) {
		return
	}
	var obligations []models.PaymentObligation
	if err := h.DB.WithContext(r.Context()).
		Where("status = ?", models.ObligationOverdue).
		Order("due_date").Find(&obligations).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_obligations", nil)
		return
	}
	today := time.Now()
	views := make([]obligationView, len(obligations))
	for i, o := range obligations {
		views[i] = obligationView{
			PaymentObligation: o,
			DaysUntilDue:      reconcile.DaysUntilDue(o.DueDate, today),
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "total": len(views)})
}

// MarkOverdue: POST /obligations/mark-overdue runs the caller-invoked batch; no
// internal timer ever runs this.
func (h *ObligationHandler) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModulePayments, gate.ActionUpdate) {
		return
	}
	count, err := h.Proc.MarkOverdue(r.Context(), time.Now())
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_mark_overdue", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"marked": count})
}
