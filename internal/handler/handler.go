// Package handler serves the kart HTTP API: the product catalog, cart
// calculation with promotions, saved carts and order placement.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-promo/internal/domain/auth"
	"github.com/xenking/kart-promo/internal/domain/order"
	"github.com/xenking/kart-promo/internal/domain/product"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler translates HTTP requests into calls to the order service and the
// product repository.
type Handler struct {
	products     product.Repository
	orders       *order.Service
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	orders *order.Service,
) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes returns the API router. Writes are guarded by sec.
func (h *Handler) Routes(sec *SecurityHandler) chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/product", h.ListProducts)
		r.Get("/product/{productId}", h.GetProduct)

		r.Post("/cart/calculate", h.CalculateCart)
		r.Get("/cart/{token}", h.GetCart)
		r.With(sec.Require(auth.ScopeCartWrite)).Put("/cart/{token}", h.SaveCart)

		r.With(sec.Require(auth.ScopeCreateOrder)).Post("/order", h.PlaceOrder)
	})
	return r
}
