package handlers

import (
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/reconcile"
)

// RecurringHandler reads recurring plan state.
type RecurringHandler struct {
	DB   *gorm.DB
	Gate *gate.Gate[uint]
}

func NewRecurringHandler(db *gorm.DB, g *gate.Gate[uint]) *RecurringHandler {
	return &RecurringHandler{DB: db, Gate: g}
}

// Get: GET /recurring/get?id= returns the plan with its next-occurrence countdown.
func (h *RecurringHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModulePayments, gate.ActionView) {
		return
	}
	id := httpx.QueryUint(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var plan models.RecurringPlan
	if err := h.DB.WithContext(r.Context()).First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_plan", nil)
		return
	}
	resp := map[string]any{
		"plan":    plan,
		"settled": plan.Settled(),
	}
	if !plan.Settled() {
		resp["days_until_next_payment"] = reconcile.DaysUntilDue(plan.NextPaymentDate, time.Now())
	}
	httpx.JSON(w, http.StatusOK, resp)
}
