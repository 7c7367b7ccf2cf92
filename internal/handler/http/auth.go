package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// AuthHandler handles registration, login, session and password reset.
type AuthHandler struct {
	sessions *service.SessionManager
	accounts *service.AccountService
	reset    *service.ResetService
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(sessions *service.SessionManager, accounts *service.AccountService, reset *service.ResetService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, accounts: accounts, reset: reset, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email      string `json:"email" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// ForgotPasswordRequest is the JSON request body for a reset request.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResetPasswordRequest is the JSON request body for redeeming a token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword"`
}

// --- Response types ---

// SessionResponse describes the tab's authentication state.
type SessionResponse struct {
	Authenticated   bool   `json:"authenticated"`
	User            any    `json:"user,omitempty"`
	RememberedEmail string `json:"rememberedEmail,omitempty"`
}

// ResetTokenResponse carries a freshly issued reset token.
type ResetTokenResponse struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if _, err := h.accounts.Register(r.Context(), req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteCreated(w, "Registration successful", h.sessions.CurrentUser())
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.sessions.SetRememberMe(r.Context(), req.RememberMe); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	s, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteOK(w, "Welcome back, "+s.Name, s)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, "Logged out", nil)
}

// Session handles GET /api/v1/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, r, h.sessions.IsAuthenticated(r.Context()))
}

// Resume handles POST /api/v1/auth/session/resume
func (h *AuthHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, r, h.sessions.Resume(r.Context()))
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, authenticated bool) {
	remembered, err := h.sessions.RememberedEmail(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := SessionResponse{Authenticated: authenticated, RememberedEmail: remembered}
	if authenticated {
		resp.User = h.sessions.CurrentUser()
	}
	httputil.WriteOK(w, "", resp)
}

// ForgotPassword handles POST /api/v1/auth/password/forgot
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	t, err := h.reset.RequestReset(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteOK(w, "Password reset token issued", ResetTokenResponse{
		Email:     t.Email,
		Token:     t.Token,
		ExpiresAt: t.Expiry,
	})
}

// ValidateResetToken handles GET /api/v1/auth/password/reset/{token}
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	email, err := h.reset.ValidateToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, "", map[string]string{"email": email})
}

// ResetPassword handles POST /api/v1/auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.reset.ResetWithToken(r.Context(), req.Token, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, "Password has been reset", nil)
}
