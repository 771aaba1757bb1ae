package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/gate"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/reconcile"
	"github.com/tidecrm/tidecrm/internal/schedule"
	"github.com/tidecrm/tidecrm/internal/services"
)

const dateLayout = "2006-01-02"

// SaleHandler exposes sale creation and reporting reads.
type SaleHandler struct {
	DB        *gorm.DB
	Svc       *services.SaleService
	Gate      *gate.Gate[uint]
	RoleClass func(roleName string) services.RoleClass
}

func NewSaleHandler(db *gorm.DB, svc *services.SaleService, g *gate.Gate[uint], roleClass func(string) services.RoleClass) *SaleHandler {
	return &SaleHandler{DB: db, Svc: svc, Gate: g, RoleClass: roleClass}
}

type serviceReq struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

type scheduleEntryReq struct {
	Index   int    `json:"index"`
	DueDate string `json:"due_date"`
	Notes   string `json:"notes"`
}

type planReq struct {
	Mode          string             `json:"mode"`
	Count         int                `json:"count"`
	Frequency     string             `json:"frequency"`
	StartDate     string             `json:"start_date"`
	TotalPayments *int               `json:"total_payments"`
	Entries       []scheduleEntryReq `json:"entries"`
}

type createSaleReq struct {
	CustomerID     *uint           `json:"customer_id"`
	LeadID         *uint           `json:"lead_id"`
	Services       []serviceReq    `json:"services"`
	CurrentService *serviceReq     `json:"current_service"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	CashIn         decimal.Decimal `json:"cash_in"`
	PaymentType    string          `json:"payment_type"`
	PaymentSource  string          `json:"payment_source"`
	PaymentCompany string          `json:"payment_company"`
	Brand          string          `json:"brand"`
	AgreementRef   string          `json:"agreement_ref"`
	Plan           planReq         `json:"plan"`
}

// Create: POST /sales
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModuleSales, gate.ActionCreate) {
		return
	}
	var req createSaleReq
	if !httpx.Decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_date", map[string]string{"format": dateLayout})
		return
	}
	class := h.RoleClass(actor.Profile.Name())
	result, err := h.Svc.Build(r.Context(), actor, class, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := map[string]any{
		"id":           result.Sale.ID,
		"payment_type": result.Sale.PaymentType,
		"unit_price":   result.Sale.UnitPrice,
		"cash_in":      result.Sale.CashIn,
	}
	if result.ConvertLead != nil {
		resp["convert_lead"] = map[string]any{"lead_id": result.ConvertLead.LeadID}
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (req createSaleReq) toInput() (services.SaleInput, error) {
	in := services.SaleInput{
		CustomerID:     req.CustomerID,
		LeadID:         req.LeadID,
		UnitPrice:      req.UnitPrice,
		CashIn:         req.CashIn,
		PaymentType:    req.PaymentType,
		PaymentSource:  req.PaymentSource,
		PaymentCompany: req.PaymentCompany,
		Brand:          req.Brand,
		AgreementRef:   req.AgreementRef,
	}
	for _, s := range req.Services {
		in.Services = append(in.Services, services.ServiceInput{Name: s.Name, Details: s.Details})
	}
	if req.CurrentService != nil {
		in.CurrentService = &services.ServiceInput{Name: req.CurrentService.Name, Details: req.CurrentService.Details}
	}
	plan := services.PlanInput{
		Mode:          req.Plan.Mode,
		Count:         req.Plan.Count,
		Frequency:     req.Plan.Frequency,
		TotalPayments: req.Plan.TotalPayments,
	}
	if req.Plan.StartDate != "" {
		t, err := time.Parse(dateLayout, req.Plan.StartDate)
		if err != nil {
			return in, err
		}
		plan.StartDate = t
	}
	for _, e := range req.Plan.Entries {
		entry := schedule.CustomEntry{Index: e.Index, Notes: e.Notes}
		if e.DueDate != "" {
			t, err := time.Parse(dateLayout, e.DueDate)
			if err != nil {
				return in, err
			}
			entry.DueDate = t
		}
		plan.Entries = append(plan.Entries, entry)
	}
	in.Plan = plan
	return in, nil
}

// List: GET /sales with pagination and brand filter.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModuleSales, gate.ActionList) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	dbq := h.DB.WithContext(r.Context()).Model(&models.Sale{})
	if q := strings.TrimSpace(r.URL.Query().Get("brand")); q != "" {
		dbq = dbq.Where("brand = ?", q)
	}
	var total int64
	dbq.Count(&total)
	var sales []models.Sale
	if err := dbq.Preload("Services").Order("id desc").Limit(limit).Offset(offset).Find(&sales).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_sales", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": sales, "total": total, "limit": limit, "offset": offset})
}

type obligationView struct {
	models.PaymentObligation
	DaysUntilDue int  `json:"days_until_due"`
	DueSoon      bool `json:"due_soon"`
}

// Get: GET /sales/get?id=... returns the sale with schedule state and derived figures.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	if !requirePermission(w, actor, gate.ModuleSales, gate.ActionView) {
		return
	}
	id := httpx.QueryUint(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var sale models.Sale
	if err := h.DB.WithContext(r.Context()).Preload("Services").First(&sale, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_sale", nil)
		return
	}
	var obligations []models.PaymentObligation
	if err := h.DB.WithContext(r.Context()).Where("sale_id = ?", sale.ID).Order("sequence_number").Find(&obligations).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_schedule", nil)
		return
	}
	today := time.Now()
	views := make([]obligationView, len(obligations))
	for i, o := range obligations {
		views[i] = obligationView{
			PaymentObligation: o,
			DaysUntilDue:      reconcile.DaysUntilDue(o.DueDate, today),
			DueSoon:           reconcile.IsDueSoon(&o, today),
		}
	}
	resp := map[string]any{
		"sale":        sale,
		"obligations": views,
		"remaining":   reconcile.Remaining(&sale, obligations),
	}
	if sale.PaymentType == models.PaymentTypeRecurring {
		var plan models.RecurringPlan
		if err := h.DB.WithContext(r.Context()).Where("sale_id = ?", sale.ID).First(&plan).Error; err == nil {
			resp["recurring_plan"] = plan
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// Update: POST /sales/update edits price/cash_in; the schedule is not
// regenerated.
func (h *SaleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Gate)
	if !ok {
		return
	}
	var req struct {
		ID        uint            `json:"id"`
		UnitPrice decimal.Decimal `json:"unit_price"`
		CashIn    decimal.Decimal `json:"cash_in"`
	}
	if !httpx.Decode(w, r, &req) {
		return
	}
	if req.ID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var sale models.Sale
	if err := h.DB.WithContext(r.Context()).First(&sale, req.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_sale", nil)
		return
	}
	// Ownership: upsellers may only edit their own sales.
	if err := h.Gate.Authorize(r.Context(), actor.UserID, gate.ActionUpdate, gate.ModuleSales, &sale); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	updated, err := h.Svc.UpdateEconomics(r.Context(), actor, req.ID, req.UnitPrice, req.CashIn)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": updated.ID, "unit_price": updated.UnitPrice, "cash_in": updated.CashIn})
}
