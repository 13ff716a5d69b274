package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-promo/internal/domain/order"
)

// CalculateCart prices the posted items and applies the best promotion
// without storing anything.
func (h *Handler) CalculateCart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCartRequest(w, r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	q, err := h.orders.Quote(r.Context(), order.QuoteRequest{
		Items:  req.orderItems(),
		Locale: req.Locale,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeQuote(e, q)
	})
}

// SaveCart stores the posted items under the path token and returns the
// calculated cart.
func (h *Handler) SaveCart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCartRequest(w, r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	q, err := h.orders.SaveCart(r.Context(), chi.URLParam(r, "token"), order.QuoteRequest{
		Items:  req.orderItems(),
		Locale: req.Locale,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeQuote(e, q)
	})
}

// GetCart recalculates a saved cart. The optional locale query parameter
// selects the label language.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	locale := r.URL.Query().Get("locale")
	if err := validate.Var(locale, "omitempty,bcp47_language_tag"); err != nil {
		handleError(w, r, &requestError{msg: "invalid locale"})
		return
	}
	q, err := h.orders.LoadCart(r.Context(), chi.URLParam(r, "token"), locale)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeQuote(e, q)
	})
}
