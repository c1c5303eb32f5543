package handler

import (
	"net/http"

	"github.com/mmeshcher/hazirhay-backend/internal/service"
)

type cartItemRequest struct {
	ProviderID  string `json:"providerId" validate:"required"`
	Category    string `json:"category" validate:"required"`
	SubCategory string `json:"subCategory" validate:"required"`
}

// SaveCartItem добавляет услугу магазина в корзину клиента.
func (h *Handler) SaveCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if !decode(w, r, &req) {
		return
	}

	cart, err := h.service.SaveCartItem(r.Context(), id, service.CartItemInput{
		ProviderID:  req.ProviderID,
		Category:    req.Category,
		SubCategory: req.SubCategory,
	})
	if err != nil {
		h.writeError(w, r, "save cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// GetCart возвращает корзину клиента.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// ClearCart очищает корзину клиента.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearCart(r.Context(), id); err != nil {
		h.writeError(w, r, "clear cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
