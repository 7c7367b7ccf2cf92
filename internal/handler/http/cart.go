package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for the active cart.
type CartHandler struct {
	carts  *service.CartService
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(carts *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product.
type AddItemRequest struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	Image string  `json:"image"`
}

// UpdateQuantityRequest is the JSON request body for setting a quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// --- Response types ---

// CartResponse is a cart with its totals.
type CartResponse struct {
	Items     domain.Cart `json:"items"`
	ItemCount int         `json:"itemCount"`
	Total     float64     `json:"total"`
}

func toCartResponse(c domain.Cart) CartResponse {
	if c == nil {
		c = domain.Cart{}
	}
	return CartResponse{Items: c, ItemCount: c.ItemCount(), Total: c.Total()}
}

func itemName(r *http.Request) (string, error) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		return "", apperrors.InvalidInput("invalid item name")
	}
	return name, nil
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, "", toCartResponse(cart))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.ClearCart(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, "Cart cleared", toCartResponse(nil))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	conf, err := h.carts.AddToCart(r.Context(), req.Name, req.Price, req.Image)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, conf.Message, toCartResponse(conf.Cart))
}

// UpdateItem handles PUT /api/v1/cart/items/{name}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	name, err := itemName(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateQuantityRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), name, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, "Cart updated", toCartResponse(cart))
}

// RemoveItem handles DELETE /api/v1/cart/items/{name}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	name, err := itemName(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.carts.RemoveFromCart(r.Context(), name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteOK(w, name+" removed from cart", toCartResponse(cart))
}
