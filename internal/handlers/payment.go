package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/settlement"
)

// PaymentHandler receives settlement requests and reads the ledger.
type PaymentHandler struct {
	DB   *gorm.DB
	Proc *settlement.Processor
	Gate *gate.Gate[uint]
}

func NewPaymentHandler(db *gorm.DB, proc *settlement.Processor, g *gate.Gate[uint]) *PaymentHandler {
	return &PaymentHandler{DB: db, Proc: proc, Gate: g}
}

type settleReq struct {
	Kind            string          `json:"kind"` // remaining, installment, recurring
	SaleID          uint            `json:"sale_id"`
	ObligationID    uint            `json:"obligation_id"`
	RecurringPlanID uint            `json:"recurring_plan_id"`
	Amount          decimal.Decimal `json:"amount"`
	Source          string          `json:"source"`
	Notes           string          `json:"notes"`
}

func (r settleReq) kind() settlement.Kind {
	switch r.Kind {
	case "remaining":
		return settlement.KindRemaining
	case "installment":
		return settlement.KindInstallment
	case "recurring":
		return settlement.KindRecurring
	default:
		return 0
	}
}

// Apply: POST /payments applies one settlement via any of the three pathways.
func (h *PaymentHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModulePayments, gate.ActionUpdate) {
		return
	}
	var req settleReq
	if !httpx.Decode(w, r, &req) {
		return
	}
	kind := req.kind()
	if kind == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_kind", map[string]string{"kind": "one_of remaining|installment|recurring"})
		return
	}
	entry, err := h.Proc.Apply(r.Context(), actor, settlement.Request{
		Kind:            kind,
		SaleID:          req.SaleID,
		ObligationID:    req.ObligationID,
		RecurringPlanID: req.RecurringPlanID,
		Amount:          req.Amount,
		Source:          req.Source,
		Notes:           req.Notes,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"reference": entry.Reference,
		"sale_id":   entry.SaleID,
		"amount":    entry.Amount,
	})
}

// List: GET /payments?sale_id=... returns the immutable ledger for one sale.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModulePayments, gate.ActionView) {
		return
	}
	saleID := httpx.QueryUint(r, "sale_id")
	if saleID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_sale_id", nil)
		return
	}
	var entries []models.Payment
	if err := h.DB.WithContext(r.Context()).Where("sale_id = ?", saleID).Order("id").Find(&entries).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_payments", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": entries, "total": len(entries)})
}
