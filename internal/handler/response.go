package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/order"
	"github.com/xenking/kart-promo/internal/domain/price"
	"github.com/xenking/kart-promo/internal/domain/product"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// handleError maps domain errors to responses. Anything unknown is logged
// and reported as 500 without details.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr *requestError
		qtyErr *order.InvalidQuantityError
		pnfErr *order.ProductNotFoundError
	)
	switch {
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, reqErr.Error())
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, order.ErrEmptyItems.Error())
	case errors.Is(err, order.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, order.ErrInvalidToken.Error())
	case errors.Is(err, order.ErrCartNotFound):
		writeError(w, http.StatusNotFound, order.ErrCartNotFound.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, product.ErrNotFound.Error())
	case errors.As(err, &qtyErr):
		writeError(w, http.StatusUnprocessableEntity, qtyErr.Error())
	case errors.As(err, &pnfErr):
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

// encodeProduct writes a catalog product. Image paths are prefixed with the
// configured imageBaseURL.
func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	base := h.imageBaseURL
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("image", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("thumbnail", func(e *jx.Encoder) { e.Str(base + p.Image.Thumbnail) })
				e.Field("mobile", func(e *jx.Encoder) { e.Str(base + p.Image.Mobile) })
				e.Field("tablet", func(e *jx.Encoder) { e.Str(base + p.Image.Tablet) })
				e.Field("desktop", func(e *jx.Encoder) { e.Str(base + p.Image.Desktop) })
			})
		})
	})
}

func (h *Handler) encodeProducts(e *jx.Encoder, products []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			h.encodeProduct(e, p)
		}
	})
}

func encodeTaxes(e *jx.Encoder, taxes []price.CalculatedTax) {
	e.Arr(func(e *jx.Encoder) {
		for _, t := range taxes {
			e.Obj(func(e *jx.Encoder) {
				e.Field("taxRate", func(e *jx.Encoder) { encodeMoney(e, t.TaxRate) })
				e.Field("tax", func(e *jx.Encoder) { encodeMoney(e, t.Tax) })
				e.Field("price", func(e *jx.Encoder) { encodeMoney(e, t.Price) })
			})
		}
	})
}

func encodeLineItem(e *jx.Encoder, li *cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(li.ID) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(li.Type)) })
		e.Field("referencedId", func(e *jx.Encoder) { e.Str(li.ReferencedID) })
		e.Field("label", func(e *jx.Encoder) { e.Str(li.Label) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		if li.Price == nil {
			return
		}
		e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, li.Price.UnitPrice) })
		e.Field("totalPrice", func(e *jx.Encoder) { encodeMoney(e, li.Price.TotalPrice) })
		e.Field("taxes", func(e *jx.Encoder) { encodeTaxes(e, li.Price.Taxes) })
	})
}

// encodeQuote writes a calculated cart with its products and the applied
// promotion, if any.
func (h *Handler) encodeQuote(e *jx.Encoder, q *order.Quote) {
	c := q.Cart
	discount, promotion := discountOf(c)
	e.Obj(func(e *jx.Encoder) {
		e.Field("token", func(e *jx.Encoder) { e.Str(c.Token) })
		e.Field("lineItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range c.LineItems {
					encodeLineItem(e, li)
				}
			})
		})
		e.Field("price", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("netPrice", func(e *jx.Encoder) { encodeMoney(e, c.Price.NetPrice) })
				e.Field("totalPrice", func(e *jx.Encoder) { encodeMoney(e, c.Price.TotalPrice) })
				e.Field("positionPrice", func(e *jx.Encoder) { encodeMoney(e, c.Price.PositionPrice) })
				e.Field("taxStatus", func(e *jx.Encoder) { e.Str(string(c.Price.TaxStatus)) })
				e.Field("taxes", func(e *jx.Encoder) { encodeTaxes(e, c.Price.Taxes) })
			})
		})
		e.Field("discounts", func(e *jx.Encoder) { encodeMoney(e, discount) })
		if promotion != "" {
			e.Field("promotion", func(e *jx.Encoder) { e.Str(promotion) })
		}
		e.Field("products", func(e *jx.Encoder) { h.encodeProducts(e, q.Products) })
	})
}

func (h *Handler) encodeOrder(e *jx.Encoder, res *order.PlaceOrderResult) {
	o := res.Order
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("discounts", func(e *jx.Encoder) { encodeMoney(e, o.Discounts) })
		if o.Promotion != "" {
			e.Field("promotion", func(e *jx.Encoder) { e.Str(o.Promotion) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
					})
				}
			})
		})
		e.Field("products", func(e *jx.Encoder) { h.encodeProducts(e, res.Products) })
		e.Field("lineItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range res.Cart.LineItems {
					encodeLineItem(e, li)
				}
			})
		})
	})
}

func discountOf(c *cart.Cart) (decimal.Decimal, string) {
	total := decimal.Zero
	var code string
	for _, li := range c.LineItems.OfType(cart.TypeDiscount) {
		if li.Price != nil {
			total = total.Add(li.Price.TotalPrice)
		}
		code = li.ReferencedID
	}
	return total, code
}
