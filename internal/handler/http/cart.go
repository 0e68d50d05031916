package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	carts  *service.CartService
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(carts *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// SetPaymentRequest is the JSON request body for choosing a payment method.
type SetPaymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.carts.Get(r.Context(), actorFrom(r).UserID))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := httputil.Decode(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.respond(w, r)(h.carts.AddItem(r.Context(), actorFrom(r).UserID, req))
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.carts.RemoveItem(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "productId")))
}

// SetShipping handles PUT /api/v1/cart/shipping
func (h *CartHandler) SetShipping(w http.ResponseWriter, r *http.Request) {
	var req domain.ShippingAddress
	if err := httputil.Decode(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.respond(w, r)(h.carts.SetShippingAddress(r.Context(), actorFrom(r).UserID, req))
}

// SetPayment handles PUT /api/v1/cart/payment
func (h *CartHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req SetPaymentRequest
	if err := httputil.Decode(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.respond(w, r)(h.carts.SetPaymentMethod(r.Context(), actorFrom(r).UserID, req.PaymentMethod))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.carts.Clear(r.Context(), actorFrom(r).UserID))
}

func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request) func(*service.CartView, error) {
	return func(cart *service.CartView, err error) {
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, cart)
	}
}
