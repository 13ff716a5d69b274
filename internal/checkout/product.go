package checkout

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
)

// QuantityCalculator prices a product line item.
type QuantityCalculator interface {
	Calculate(def price.QuantityDefinition, sc price.SalesContext) (price.CalculatedPrice, error)
}

// ProductProcessor copies product line items into the cart being calculated
// and prices them. Discounts of earlier passes are dropped, other items are
// carried over unchanged.
type ProductProcessor struct {
	calc QuantityCalculator
}

// NewProductProcessor creates a ProductProcessor.
func NewProductProcessor(calc QuantityCalculator) *ProductProcessor {
	return &ProductProcessor{calc: calc}
}

// Process implements Processor.
func (p *ProductProcessor) Process(_ context.Context, original, toCalculate *cart.Cart, sc price.SalesContext) error {
	for _, item := range original.LineItems {
		switch item.Type {
		case cart.TypeDiscount:
			continue
		case cart.TypeProduct:
			priced, err := p.price(item, sc)
			if err != nil {
				return err
			}
			toCalculate.Add(priced)
		default:
			toCalculate.Add(item.Clone())
		}
	}
	return nil
}

func (p *ProductProcessor) price(item *cart.LineItem, sc price.SalesContext) (*cart.LineItem, error) {
	def, ok := item.PriceDefinition.(price.QuantityDefinition)
	if !ok {
		return nil, errors.Errorf("product %s has no quantity price definition", item.ID)
	}
	def.Quantity = item.Quantity

	calculated, err := p.calc.Calculate(def, sc)
	if err != nil {
		return nil, errors.Wrapf(err, "price product %s", item.ID)
	}

	out := item.Clone()
	out.PriceDefinition = def
	out.Price = &calculated
	return out, nil
}
