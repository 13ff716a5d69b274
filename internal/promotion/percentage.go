package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
)

// PercentageCode is the translation key of the percentage discount.
const PercentageCode = "percentage_promotion"

var (
	// PercentageThreshold is the cart total from which the discount applies.
	PercentageThreshold = decimal.NewFromInt(100)
	// PercentageDiscount is the share of the product total taken off.
	PercentageDiscount = decimal.NewFromInt(10)
)

// PercentageStrategy takes PercentageDiscount percent off every product once
// the cart total reaches PercentageThreshold.
type PercentageStrategy struct {
	calc PercentagePriceCalculator
	tr   Translator
}

var _ Strategy = (*PercentageStrategy)(nil)

// NewPercentageStrategy returns a PercentageStrategy.
func NewPercentageStrategy(calc PercentagePriceCalculator, tr Translator) *PercentageStrategy {
	return &PercentageStrategy{calc: calc, tr: tr}
}

// Evaluate implements Strategy.
func (s *PercentageStrategy) Evaluate(c *cart.Cart, sc price.SalesContext) (*price.CalculatedPrice, error) {
	_, p, err := s.calculate(c, sc)
	return p, err
}

// Materialize implements Strategy.
func (s *PercentageStrategy) Materialize(c *cart.Cart, sc price.SalesContext) (*cart.LineItem, error) {
	def, p, err := s.calculate(c, sc)
	if err != nil || p == nil {
		return nil, err
	}

	item := newDiscount(PercentageCode, s.tr.Translate(sc.Locale, PercentageCode))
	item.PriceDefinition = def
	item.Price = p
	return item, nil
}

func (s *PercentageStrategy) calculate(c *cart.Cart, sc price.SalesContext) (price.PercentageDefinition, *price.CalculatedPrice, error) {
	products := c.Products()
	if len(products) == 0 || c.Price.TotalPrice.LessThan(PercentageThreshold) {
		return price.PercentageDefinition{}, nil, nil
	}

	def := price.PercentageDefinition{
		Percentage: PercentageDiscount.Neg(),
		Filter:     price.NewKeyRule(products.Keys()),
	}
	p, err := s.calc.Calculate(def.Percentage, products.Match(def.Filter).Prices(), sc)
	if err != nil {
		return def, nil, errors.Wrap(err, "calculate percentage discount")
	}
	return def, &p, nil
}
