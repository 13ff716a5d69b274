package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-promo/internal/domain/order"
)

// PlaceOrder prices the posted items, or the saved cart named by cartToken
// when no items are posted, and persists the order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCartRequest(w, r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	res, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Items:     req.orderItems(),
		CartToken: req.CartToken,
		Locale:    req.Locale,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeOrder(e, res)
	})
}
