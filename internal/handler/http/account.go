package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/ui"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// AccountHandler serves the signed-in identity's profile, addresses, orders
// and password. Every route runs behind RequireAuth.
type AccountHandler struct {
	sessions *service.SessionManager
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(sessions *service.SessionManager, accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{sessions: sessions, accounts: accounts, logger: logger}
}

// --- Request DTOs ---

// UpdateProfileRequest is the JSON request body for a profile update.
type UpdateProfileRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=2"`
	Email       *string        `json:"email" validate:"omitempty,loose_email"`
	Phone       *string        `json:"phone" validate:"omitempty,mobile"`
	Preferences map[string]any `json:"preferences"`
}

// ChangePasswordRequest is the JSON request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"`
}

// --- Response types ---

// AccountResponse is an identity without its password.
type AccountResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	CreatedAt time.Time      `json:"createdAt"`
	Profile   domain.Profile `json:"profile"`
}

func toAccountResponse(id *domain.Identity) AccountResponse {
	return AccountResponse{
		ID:        id.ID,
		Name:      id.Name,
		Email:     id.Email,
		Phone:     id.Phone,
		CreatedAt: id.CreatedAt,
		Profile:   id.Profile.Normalized(),
	}
}

func (r UpdateProfileRequest) toUpdate() domain.ProfileUpdate {
	u := domain.ProfileUpdate{
		Name:        r.Name,
		Phone:       r.Phone,
		Preferences: r.Preferences,
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		u.Name = &name
	}
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		u.Email = &email
	}
	return u
}

// guarded runs action behind RequireAuth. An anonymous caller gets a 401
// whose Location header is the login page RequireAuth navigated to.
func (h *AccountHandler) guarded(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, s *domain.Session) error) {
	nav := &ui.Recorder{}
	ctx := ui.WithNavigator(r.Context(), nav)

	err := h.sessions.RequireAuth(ctx, action, "")
	if err == nil {
		return
	}
	if target := nav.Target(); target != "" {
		w.Header().Set("Location", target)
	}
	httputil.WriteError(w, r, err, h.logger)
}

// --- Handlers ---

// GetProfile handles GET /api/v1/account/profile
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.guarded(w, r, func(ctx context.Context, s *domain.Session) error {
		identity, err := h.accounts.GetIdentity(ctx, s.ID)
		if err != nil {
			return err
		}
		httputil.WriteOK(w, "", toAccountResponse(identity))
		return nil
	})
}

// UpdateProfile handles PATCH /api/v1/account/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	h.guarded(w, r, func(ctx context.Context, s *domain.Session) error {
		u := req.toUpdate()
		if u.IsEmpty() {
			return apperrors.Validation("no fields to update")
		}
		updated, err := h.accounts.UpdateProfile(ctx, s.ID, u)
		if err != nil {
			return err
		}
		httputil.WriteOK(w, "Profile updated", toAccountResponse(updated))
		return nil
	})
}

// ListAddresses handles GET /api/v1/account/addresses
func (h *AccountHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	h.guarded(w, r, func(ctx context.Context, s *domain.Session) error {
		addresses, err := h.accounts.GetAddresses(ctx, s.ID)
		if err != nil {
			return err
		}
		httputil.WriteOK(w, "", addresses)
		return nil
	})
}

// AddAddress handles POST /api/v1/account/addresses
func (h *AccountHandler) AddAddress(w http.ResponseWriter, r *http.Request) {
	var req domain.AddressInput
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	h.guarded(w, r, func(ctx context.Context, s *domain.Session) error {
		addr, err := h.accounts.AddAddress(ctx, s.ID, req)
		if err != nil {
			return err
		}
		httputil.WriteCreated(w, "Address saved", addr)
		return nil
	})
}

// ListOrders handles GET /api/v1/account/orders
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.guarded(w, r, func(ctx context.Context, s *domain.Session) error {
		orders, err := h.accounts.GetOrders(ctx, s.ID)
		if err != nil {
			return err
		}
		httputil.WriteOK(w, "", orders)
		return nil
	})
}

// AddOrder handles POST /api/v1/account/orders. The body is stored as given.
func (h *AccountHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var order json.RawMessage
	if !httputil.DecodeJSON(w, r, &order) {
		return
	}
	if !strings.HasPrefix(strings.TrimSpace(string(order)), "{") {
		httputil.WriteError(w, r, apperrors.Validation("order must be a JSON object"), h.logger)
		return
	}

	h.guarded(w, r, func(ctx context.Context, s *domain.Session) error {
		if err := h.accounts.AddOrder(ctx, s.ID, order); err != nil {
			return err
		}
		httputil.WriteCreated(w, "Order recorded", order)
		return nil
	})
}

// ChangePassword handles PUT /api/v1/account/password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	h.guarded(w, r, func(ctx context.Context, s *domain.Session) error {
		if err := h.accounts.ChangePassword(ctx, s.ID, req.CurrentPassword, req.NewPassword); err != nil {
			return err
		}
		httputil.WriteOK(w, "Password changed", nil)
		return nil
	})
}
