package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/services"
)

// TargetHandler manages monthly upseller targets and their derived progress.
type TargetHandler struct {
	Svc  *services.TargetService
	Gate *gate.Gate[uint]
}

func NewTargetHandler(svc *services.TargetService, g *gate.Gate[uint]) *TargetHandler {
	return &TargetHandler{Svc: svc, Gate: g}
}

// Set: POST /targets creates or updates a user's target for a period.
func (h *TargetHandler) Set(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModuleTargets, gate.ActionUpdate) {
		return
	}
	var req struct {
		UserID      uint            `json:"user_id"`
		Period      string          `json:"period"`
		TargetValue decimal.Decimal `json:"target_value"`
	}
	if !httpx.Decode(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		req.UserID = actor.UserID
	}
	target, err := h.Svc.Set(r.Context(), actor, req.UserID, req.Period, req.TargetValue)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, target)
}

// Progress: GET /targets/progress?user_id=&period= reports target vs. actual
// cash-in out of the ledger.
func (h *TargetHandler) Progress(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModuleTargets, gate.ActionView) {
		return
	}
	userID := httpx.QueryUint(r, "user_id")
	if userID == 0 {
		userID = actor.UserID
	}
	period := r.URL.Query().Get("period")
	progress, err := h.Svc.Progress(r.Context(), userID, period)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":             progress.Target.UserID,
		"period":              progress.Target.Period,
		"target_value":        progress.Target.TargetValue,
		"actual_cash_in":      progress.ActualCashIn,
		"progress_percentage": progress.ProgressPercentage,
	})
}
