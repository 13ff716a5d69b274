package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
)

const (
	// BulkQuantityThreshold is the quantity of a single product that earns
	// one free unit.
	BulkQuantityThreshold = 5
	// BulkQuantityCode is the translation key of the bulk quantity discount.
	BulkQuantityCode = "free_item_promotion"
)

// BulkQuantityStrategy grants one free unit for every complete batch of
// BulkQuantityThreshold units of the same product.
type BulkQuantityStrategy struct {
	calc AbsolutePriceCalculator
	tr   Translator
}

var _ Strategy = (*BulkQuantityStrategy)(nil)

// NewBulkQuantityStrategy returns a BulkQuantityStrategy.
func NewBulkQuantityStrategy(calc AbsolutePriceCalculator, tr Translator) *BulkQuantityStrategy {
	return &BulkQuantityStrategy{calc: calc, tr: tr}
}

// Evaluate implements Strategy.
func (s *BulkQuantityStrategy) Evaluate(c *cart.Cart, sc price.SalesContext) (*price.CalculatedPrice, error) {
	_, p, err := s.calculate(c, sc)
	return p, err
}

// Materialize implements Strategy.
func (s *BulkQuantityStrategy) Materialize(c *cart.Cart, sc price.SalesContext) (*cart.LineItem, error) {
	def, p, err := s.calculate(c, sc)
	if err != nil || p == nil {
		return nil, err
	}

	item := newDiscount(BulkQuantityCode, s.tr.Translate(sc.Locale, BulkQuantityCode))
	item.PriceDefinition = def
	item.Price = p
	return item, nil
}

func (s *BulkQuantityStrategy) calculate(c *cart.Cart, sc price.SalesContext) (price.AbsoluteDefinition, *price.CalculatedPrice, error) {
	eligible := c.Products().Filter(func(li *cart.LineItem) bool {
		return li.Quantity >= BulkQuantityThreshold
	})
	if len(eligible) == 0 {
		return price.AbsoluteDefinition{}, nil, nil
	}

	discount := decimal.Zero
	for _, li := range eligible {
		batches := decimal.NewFromInt(int64(li.Quantity / BulkQuantityThreshold))
		discount = discount.Add(unitPrice(li).Mul(batches))
	}

	def := price.AbsoluteDefinition{
		Amount: discount,
		Filter: price.NewKeyRule(eligible.Keys()),
	}
	p, err := s.calc.Calculate(def.Amount, c.Products().Match(def.Filter).Prices(), sc)
	if err != nil {
		return def, nil, errors.Wrap(err, "calculate bulk quantity discount")
	}
	return def, &p, nil
}
