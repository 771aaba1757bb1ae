package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tidecrm/tidecrm/auth"
	"github.com/tidecrm/tidecrm/httpx"
	"github.com/tidecrm/tidecrm/internal/models"
)

// ensureDefaultRole fetches or creates the base "upseller" role.
func ensureDefaultRole(db *gorm.DB) (*models.Role, error) {
	var role models.Role
	if err := db.Where("name = ?", "upseller").First(&role).Error; err == nil {
		return &role, nil
	}
	role = models.Role{
		Name:        "upseller",
		Description: "Default sales role",
		Permissions: "sales:create,sales:view,sales:list,sales:update,payments:update,payments:view,targets:view,leads:view",
	}
	if err := db.Create(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

type AuthHandler struct{ DB *gorm.DB }

func NewAuthHandler(db *gorm.DB) *AuthHandler { return &AuthHandler{DB: db} }

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/signup", h.signup)
	mux.HandleFunc("/login", h.login)
	mux.HandleFunc("/logout", h.logout)
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if !httpx.Decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"email": "required", "password": "required"})
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	role, err := ensureDefaultRole(h.DB)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "could_not_ensure_role", nil)
		return
	}
	user := models.User{Email: req.Email, Password: string(hash), FirstName: req.FirstName, LastName: req.LastName, RoleID: role.ID}
	if err := h.DB.Create(&user).Error; err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "could_not_create_user", nil)
		return
	}
	auth.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httpx.Decode(w, r, &req) {
		return
	}
	var user models.User
	if err := h.DB.Where("email = ?", strings.TrimSpace(req.Email)).First(&user).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	auth.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusOK, map[string]any{"id": user.ID, "email": user.Email})
}

func (h *AuthHandler) logout(w http.ResponseWriter, _ *http.Request) {
	auth.ClearSession(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
