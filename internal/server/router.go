package server

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/auth"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/handlers"
	"github.com/tidecrm/tidecrm/internal/models"
	"github.com/tidecrm/tidecrm/internal/policy"
	"github.com/tidecrm/tidecrm/internal/services"
	"github.com/tidecrm/tidecrm/internal/settlement"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB) http.Handler {
	mux := http.NewServeMux()

	// Configure a user verifier so RequireAuth can ensure the user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		// Lightweight DB check (SELECT 1); detailed errors stay out of the body.
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, "degraded", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authGate, _ := policy.NewAuthGate(db, 5*time.Minute)

	// Auth endpoints
	authHandler := handlers.NewAuthHandler(db)
	authHandler.Register(mux)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(auth.RequireAuth(h))
	}

	// Sale endpoints
	saleSvc := services.NewSaleService(db)
	sh := handlers.NewSaleHandler(db, saleSvc, authGate, policy.RoleClassFor)
	mux.Handle("/sales", protect(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sh.List(w, r)
		case http.MethodPost:
			sh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/sales/get", protect(sh.Get))
	mux.Handle("/sales/update", protect(sh.Update))

	// Settlement + ledger endpoints
	proc := settlement.NewProcessor(db)
	ph := handlers.NewPaymentHandler(db, proc, authGate)
	mux.Handle("/payments", protect(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ph.List(w, r)
		case http.MethodPost:
			ph.Apply(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))

	// Recurring plan reads
	rh := handlers.NewRecurringHandler(db, authGate)
	mux.Handle("/recurring/get", protect(rh.Get))

	// Obligation widgets + explicit overdue batch
	oh := handlers.NewObligationHandler(db, proc, authGate)
	mux.Handle("/obligations/upcoming", protect(oh.Upcoming))
	mux.Handle("/obligations/overdue", protect(oh.Overdue))
	mux.Handle("/obligations/mark-overdue", protect(oh.MarkOverdue))

	// Monthly targets
	targetSvc := services.NewTargetService(db)
	th := handlers.NewTargetHandler(targetSvc, authGate)
	mux.Handle("/targets", protect(th.Set))
	mux.Handle("/targets/progress", protect(th.Progress))

	// Dashboard
	dh := handlers.NewDashboardHandler(db, authGate)
	mux.Handle("/dashboard", protect(dh.Summary))

	return withRecover(mux)
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
