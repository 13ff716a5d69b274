// Package promotion selects the single most valuable automatic discount for a
// cart and attaches it as a discount line item.
//
// A Strategy reports the discount it would grant without touching the cart and
// builds the discount line item on request. The Evaluator asks every
// registered strategy for its value, keeps the first strategy with the
// strictly greatest one and appends that strategy's line item to the cart.
package promotion

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
)

// Strategy is a self-contained discount algorithm.
//
// Both methods return nil, nil when the cart is not eligible. Errors come from
// collaborators and abort the evaluation pass. Materialize must report the
// same price Evaluate does for unchanged inputs. Implementations never mutate
// the cart. A discount price is the positive amount taken off the cart.
type Strategy interface {
	Evaluate(c *cart.Cart, sc price.SalesContext) (*price.CalculatedPrice, error)
	Materialize(c *cart.Cart, sc price.SalesContext) (*cart.LineItem, error)
}

// AbsolutePriceCalculator prices a fixed amount spread over the given prices.
type AbsolutePriceCalculator interface {
	Calculate(amount decimal.Decimal, prices []price.CalculatedPrice, sc price.SalesContext) (price.CalculatedPrice, error)
}

// PercentagePriceCalculator prices a percentage of the given prices' total.
type PercentagePriceCalculator interface {
	Calculate(percentage decimal.Decimal, prices []price.CalculatedPrice, sc price.SalesContext) (price.CalculatedPrice, error)
}

// Translator resolves display labels.
type Translator interface {
	Translate(locale, key string) string
}

// newDiscount returns an unpriced discount line item referencing the
// promotion code. The label doubles as the item identifier.
func newDiscount(code, label string) *cart.LineItem {
	return &cart.LineItem{
		ID:           label,
		Type:         cart.TypeDiscount,
		ReferencedID: code,
		Label:        label,
		Quantity:     1,
		Good:         false,
		Stackable:    false,
		Removable:    false,
	}
}

func unitPrice(li *cart.LineItem) decimal.Decimal {
	if li.Price != nil {
		return li.Price.UnitPrice
	}
	if def, ok := li.PriceDefinition.(price.QuantityDefinition); ok {
		return def.UnitPrice
	}
	return decimal.Zero
}
