package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/auth"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/policy"
	"github.com/tidecrm/tidecrm/internal/services"
	"github.com/tidecrm/tidecrm/internal/settlement"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Role{}, &models.User{}, &models.Customer{}, &models.Lead{}, &models.Sale{}, &models.SaleService{}, &models.PaymentObligation{}, &models.RecurringPlan{}, &models.Payment{}, &models.UpsellerTarget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// upsellerPerms mirrors the production seed: explicit grants, no
// wildcard, so the sales:manage_all bypass stays out of reach.
const upsellerPerms = "sales:create,sales:view,sales:list,sales:update,payments:update,payments:view,targets:view,targets:update"

const managerPerms = "sales:*,payments:*,targets:*"

func seedRoleUser(t *testing.T, db *gorm.DB, roleName, perms, email string) models.User {
	t.Helper()
	var role models.Role
	err := db.Where("name = ?", roleName).First(&role).Error
	if err != nil {
		role = models.Role{Name: roleName, Permissions: perms}
		if err := db.Create(&role).Error; err != nil {
			t.Fatalf("role: %v", err)
		}
	}
	user := models.User{Email: email, Password: "x", RoleID: role.ID}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	return user
}

func seedCustomer(t *testing.T, db *gorm.DB) models.Customer {
	t.Helper()
	customer := models.Customer{Name: "Acme Corp"}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("customer: %v", err)
	}
	return customer
}

func authedRequest(method, target string, body string, userID uint) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func newSaleHandler(db *gorm.DB) *SaleHandler {
	g, _ := policy.NewAuthGate(db, 0) // no caching in tests
	return NewSaleHandler(db, services.NewSaleService(db), g, policy.RoleClassFor)
}

func createBody(customerID uint) string {
	return fmt.Sprintf(`{
		"customer_id": %d,
		"services": [{"name": "SEO retainer", "details": "monthly"}],
		"unit_price": "1200.00",
		"cash_in": "200.00",
		"payment_type": "installments",
		"brand": "tide",
		"plan": {"mode": "automatic", "count": 4, "frequency": "monthly", "start_date": "2024-01-01"}
	}`, customerID)
}

func TestSaleCreateAndGet(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "upseller", upsellerPerms, "seller@test")
	customer := seedCustomer(t, db)
	h := newSaleHandler(db)

	req := authedRequest(http.MethodPost, "/sales", createBody(customer.ID), user.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("missing sale id in response")
	}

	req = authedRequest(http.MethodGet, fmt.Sprintf("/sales/get?id=%d", created.ID), "", user.ID)
	w = httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var got struct {
		Obligations []struct {
			Amount decimal.Decimal `json:"Amount"`
			Status string          `json:"Status"`
		} `json:"obligations"`
		Remaining decimal.Decimal `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Obligations) != 4 {
		t.Fatalf("expected 4 obligations, got %d", len(got.Obligations))
	}
	if !got.Remaining.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("expected remaining 1000.00, got %s", got.Remaining)
	}
}

func TestSaleCreate_Unauthenticated(t *testing.T) {
	db := setupHandlerTestDB(t)
	customer := seedCustomer(t, db)
	h := newSaleHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(createBody(customer.ID)))
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSaleCreate_MissingPermission(t *testing.T) {
	db := setupHandlerTestDB(t)
	// A viewer role can read sales but not create them.
	user := seedRoleUser(t, db, "viewer", "sales:view,sales:list", "viewer@test")
	customer := seedCustomer(t, db)
	h := newSaleHandler(db)

	req := authedRequest(http.MethodPost, "/sales", createBody(customer.ID), user.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSaleCreate_UpsellerCannotUseLead(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "upseller", upsellerPerms, "seller@test")
	lead := models.Lead{Name: "Warm Lead"}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatalf("lead: %v", err)
	}
	h := newSaleHandler(db)

	body := fmt.Sprintf(`{
		"lead_id": %d,
		"services": [{"name": "SEO"}],
		"unit_price": "100.00",
		"cash_in": "0",
		"payment_type": "one_time"
	}`, lead.ID)
	req := authedRequest(http.MethodPost, "/sales", body, user.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "validation_failed") {
		t.Errorf("expected validation_failed, got %s", w.Body.String())
	}
}

func TestSaleCreate_CloserLeadEmitsConversion(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "closer", upsellerPerms, "closer@test")
	lead := models.Lead{Name: "Warm Lead"}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatalf("lead: %v", err)
	}
	h := newSaleHandler(db)

	body := fmt.Sprintf(`{
		"lead_id": %d,
		"services": [{"name": "SEO"}],
		"unit_price": "100.00",
		"cash_in": "0",
		"payment_type": "one_time"
	}`, lead.ID)
	req := authedRequest(http.MethodPost, "/sales", body, user.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		ConvertLead *struct {
			LeadID uint `json:"lead_id"`
		} `json:"convert_lead"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ConvertLead == nil || resp.ConvertLead.LeadID != lead.ID {
		t.Fatalf("expected convert_lead intent, got %s", w.Body.String())
	}
}

func TestSaleCreate_BadDate(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "upseller", upsellerPerms, "seller@test")
	customer := seedCustomer(t, db)
	h := newSaleHandler(db)

	body := fmt.Sprintf(`{
		"customer_id": %d,
		"services": [{"name": "SEO"}],
		"unit_price": "100.00",
		"cash_in": "0",
		"payment_type": "installments",
		"plan": {"mode": "automatic", "count": 2, "frequency": "monthly", "start_date": "01/02/2024"}
	}`, customer.ID)
	req := authedRequest(http.MethodPost, "/sales", body, user.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_date") {
		t.Errorf("expected invalid_date, got %s", w.Body.String())
	}
}

func TestSaleListFiltersAndPaginates(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "upseller", upsellerPerms, "seller@test")
	customer := seedCustomer(t, db)
	h := newSaleHandler(db)

	for _, brand := range []string{"tide", "tide", "wave"} {
		sale := models.Sale{
			CustomerID:  &customer.ID,
			UnitPrice:   decimal.RequireFromString("100.00"),
			CashIn:      decimal.Zero,
			PaymentType: models.PaymentTypeOneTime,
			Brand:       brand,
			CreatedByID: user.ID,
		}
		if err := db.Create(&sale).Error; err != nil {
			t.Fatalf("sale: %v", err)
		}
	}

	req := authedRequest(http.MethodGet, "/sales?brand=tide", "", user.ID)
	w := httptest.NewRecorder()
	h.List(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("expected 2 tide sales, got %d", resp.Total)
	}
}

func TestSaleUpdate_OwnershipEnforced(t *testing.T) {
	db := setupHandlerTestDB(t)
	owner := seedRoleUser(t, db, "upseller", upsellerPerms, "owner@test")
	intruder := seedRoleUser(t, db, "upseller", upsellerPerms, "intruder@test")
	manager := seedRoleUser(t, db, "manager", managerPerms, "boss@test")
	customer := seedCustomer(t, db)
	h := newSaleHandler(db)

	req := authedRequest(http.MethodPost, "/sales", createBody(customer.ID), owner.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	update := fmt.Sprintf(`{"id": %d, "unit_price": "1500.00", "cash_in": "200.00"}`, created.ID)

	// Another upseller is rejected.
	w = httptest.NewRecorder()
	h.Update(w, authedRequest(http.MethodPost, "/sales/update", update, intruder.ID))
	if w.Code != http.StatusForbidden {
		t.Fatalf("intruder: expected 403, got %d body=%s", w.Code, w.Body.String())
	}

	// The owner may edit.
	w = httptest.NewRecorder()
	h.Update(w, authedRequest(http.MethodPost, "/sales/update", update, owner.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	// A manager bypasses ownership.
	update = fmt.Sprintf(`{"id": %d, "unit_price": "1600.00", "cash_in": "200.00"}`, created.ID)
	w = httptest.NewRecorder()
	h.Update(w, authedRequest(http.MethodPost, "/sales/update", update, manager.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("manager: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var sale models.Sale
	if err := db.First(&sale, created.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !sale.UnitPrice.Equal(decimal.RequireFromString("1600.00")) {
		t.Errorf("expected 1600.00, got %s", sale.UnitPrice)
	}
}

func TestSettleThroughHandlers(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "upseller", upsellerPerms, "seller@test")
	customer := seedCustomer(t, db)
	sh := newSaleHandler(db)
	ph := NewPaymentHandler(db, settlement.NewProcessor(db), sh.Gate)

	req := authedRequest(http.MethodPost, "/sales", createBody(customer.ID), user.ID)
	w := httptest.NewRecorder()
	sh.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var first models.PaymentObligation
	if err := db.Where("sale_id = ? AND sequence_number = 1", created.ID).First(&first).Error; err != nil {
		t.Fatalf("load obligation: %v", err)
	}

	body := fmt.Sprintf(`{"kind": "installment", "obligation_id": %d, "amount": "250.00", "source": "wire"}`, first.ID)
	w = httptest.NewRecorder()
	ph.Apply(w, authedRequest(http.MethodPost, "/payments", body, user.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("settle: expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	// Settling the same installment again maps to 409 already_settled.
	w = httptest.NewRecorder()
	ph.Apply(w, authedRequest(http.MethodPost, "/payments", body, user.ID))
	if w.Code != http.StatusConflict {
		t.Fatalf("resettle: expected 409, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "already_settled") {
		t.Errorf("expected already_settled, got %s", w.Body.String())
	}

	// Overpaying another installment maps to 400 amount_exceeds_remaining.
	var second models.PaymentObligation
	if err := db.Where("sale_id = ? AND sequence_number = 2", created.ID).First(&second).Error; err != nil {
		t.Fatalf("load obligation: %v", err)
	}
	body = fmt.Sprintf(`{"kind": "installment", "obligation_id": %d, "amount": "250.01"}`, second.ID)
	w = httptest.NewRecorder()
	ph.Apply(w, authedRequest(http.MethodPost, "/payments", body, user.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("overpay: expected 400, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "amount_exceeds_remaining") {
		t.Errorf("expected amount_exceeds_remaining, got %s", w.Body.String())
	}

	// An unknown kind is rejected before reaching the engine.
	body = fmt.Sprintf(`{"kind": "partial", "obligation_id": %d, "amount": "10.00"}`, second.ID)
	w = httptest.NewRecorder()
	ph.Apply(w, authedRequest(http.MethodPost, "/payments", body, user.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: expected 400, got %d", w.Code)
	}

	// The ledger lists the single successful settlement.
	w = httptest.NewRecorder()
	ph.List(w, authedRequest(http.MethodGet, fmt.Sprintf("/payments?sale_id=%d", created.ID), "", user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var ledger struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ledger); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ledger.Total != 1 {
		t.Errorf("expected 1 ledger entry, got %d", ledger.Total)
	}
}

func TestRecurringGet(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "upseller", upsellerPerms, "seller@test")
	customer := seedCustomer(t, db)
	sh := newSaleHandler(db)
	rh := NewRecurringHandler(db, sh.Gate)

	body := fmt.Sprintf(`{
		"customer_id": %d,
		"services": [{"name": "Hosting"}],
		"unit_price": "50.00",
		"cash_in": "50.00",
		"payment_type": "recurring",
		"plan": {"mode": "automatic", "frequency": "monthly", "start_date": "2030-01-01"}
	}`, customer.ID)
	w := httptest.NewRecorder()
	sh.Create(w, authedRequest(http.MethodPost, "/sales", body, user.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var plan models.RecurringPlan
	if err := db.Where("sale_id = ?", created.ID).First(&plan).Error; err != nil {
		t.Fatalf("load plan: %v", err)
	}

	w = httptest.NewRecorder()
	rh.Get(w, authedRequest(http.MethodGet, fmt.Sprintf("/recurring/get?id=%d", plan.ID), "", user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Settled bool `json:"settled"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Settled {
		t.Error("fresh plan must not be settled")
	}

	w = httptest.NewRecorder()
	rh.Get(w, authedRequest(http.MethodGet, "/recurring/get?id=9999", "", user.ID))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing plan: expected 404, got %d", w.Code)
	}
}

func TestTargetHandlers(t *testing.T) {
	db := setupHandlerTestDB(t)
	user := seedRoleUser(t, db, "upseller", upsellerPerms, "seller@test")
	h := NewTargetHandler(services.NewTargetService(db), newSaleHandler(db).Gate)

	period := time.Now().UTC().Format("2006-01")
	body := fmt.Sprintf(`{"period": %q, "target_value": "10000.00"}`, period)
	w := httptest.NewRecorder()
	h.Set(w, authedRequest(http.MethodPost, "/targets", body, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("set: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	// Seed cash flow for this month and read back progress.
	sale := models.Sale{UnitPrice: decimal.RequireFromString("10000.00"), CashIn: decimal.Zero, PaymentType: models.PaymentTypeOneTime, CreatedByID: user.ID}
	if err := db.Create(&sale).Error; err != nil {
		t.Fatalf("sale: %v", err)
	}
	payment := models.Payment{Reference: "ref-1", SaleID: sale.ID, Amount: decimal.RequireFromString("2500.00"), ProcessedByID: user.ID}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}

	w = httptest.NewRecorder()
	h.Progress(w, authedRequest(http.MethodGet, "/targets/progress?period="+period, "", user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("progress: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		ActualCashIn       decimal.Decimal `json:"actual_cash_in"`
		ProgressPercentage int             `json:"progress_percentage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.ActualCashIn.Equal(decimal.RequireFromString("2500.00")) {
		t.Errorf("expected actual 2500.00, got %s", resp.ActualCashIn)
	}
	if resp.ProgressPercentage != 25 {
		t.Errorf("expected 25%%, got %d", resp.ProgressPercentage)
	}
}
