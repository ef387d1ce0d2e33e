package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/service"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterCompanyRequest is the body of POST /api/auth/register-company
type RegisterCompanyRequest struct {
	CompanyName string `json:"companyName" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by both registration and login
type AuthResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	CompanyID     string    `json:"companyId"`
	MonthlyBudget float64   `json:"monthlyBudget"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func newAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		ID:            res.User.ID,
		Name:          res.User.Name,
		Email:         res.User.Email,
		Role:          string(res.User.Role),
		CompanyID:     res.User.CompanyID,
		MonthlyBudget: res.User.Budget(domain.DefaultMonthlyBudget),
		Token:         res.Token,
		ExpiresAt:     res.ExpiresAt,
	}
}

// RegisterCompany handles POST /api/auth/register-company
func (h *AuthHandler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req RegisterCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Debug("invalid register request", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	result, err := h.authService.RegisterCompany(r.Context(), service.RegisterCompanyInput{
		CompanyName: req.CompanyName,
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		h.logger.Info("registration failed", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAuthResponse(result))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(result))
}
