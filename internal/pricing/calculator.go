package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/price"
)

// QuantityCalculator prices product line items.
type QuantityCalculator struct {
	tax TaxCalculator
}

// NewQuantityCalculator returns a QuantityCalculator.
func NewQuantityCalculator() *QuantityCalculator {
	return &QuantityCalculator{}
}

// Calculate multiplies the rounded unit price by the quantity and computes
// the taxes of the total.
func (c *QuantityCalculator) Calculate(def price.QuantityDefinition, sc price.SalesContext) (price.CalculatedPrice, error) {
	if err := validateContext(sc); err != nil {
		return price.CalculatedPrice{}, err
	}
	if def.Quantity <= 0 {
		return price.CalculatedPrice{}, errors.Errorf("quantity must be positive, got %d", def.Quantity)
	}

	unit := def.UnitPrice.Round(sc.Decimals)
	total := unit.Mul(decimal.NewFromInt(int64(def.Quantity))).Round(sc.Decimals)

	return price.CalculatedPrice{
		UnitPrice:  unit,
		Quantity:   def.Quantity,
		TotalPrice: total,
		Taxes:      c.tax.Calculate(total, def.TaxRules, sc),
		TaxRules:   def.TaxRules,
	}, nil
}

// AbsoluteCalculator resolves a fixed amount against the prices it is
// attributed to. Taxes of the amount follow the tax rates of those prices.
type AbsoluteCalculator struct {
	tax TaxCalculator
}

// NewAbsoluteCalculator returns an AbsoluteCalculator.
func NewAbsoluteCalculator() *AbsoluteCalculator {
	return &AbsoluteCalculator{}
}

// Calculate returns the price of amount distributed over prices.
func (c *AbsoluteCalculator) Calculate(amount decimal.Decimal, prices []price.CalculatedPrice, sc price.SalesContext) (price.CalculatedPrice, error) {
	if err := validateContext(sc); err != nil {
		return price.CalculatedPrice{}, err
	}

	total := amount.Round(sc.Decimals)
	rules := BuildTaxRules(prices)

	return price.CalculatedPrice{
		UnitPrice:  total,
		Quantity:   1,
		TotalPrice: total,
		Taxes:      c.tax.Calculate(total, rules, sc),
		TaxRules:   rules,
	}, nil
}

// PercentageCalculator resolves a discount percentage of the combined total of
// prices into the amount it takes off. -10 on a total of 120 yields 12.
type PercentageCalculator struct {
	absolute *AbsoluteCalculator
}

// NewPercentageCalculator returns a PercentageCalculator.
func NewPercentageCalculator() *PercentageCalculator {
	return &PercentageCalculator{absolute: NewAbsoluteCalculator()}
}

// Calculate computes the amount percentage takes off the prices' total and
// prices it like an absolute one. Positive percentages yield negative amounts.
func (c *PercentageCalculator) Calculate(percentage decimal.Decimal, prices []price.CalculatedPrice, sc price.SalesContext) (price.CalculatedPrice, error) {
	if err := validateContext(sc); err != nil {
		return price.CalculatedPrice{}, err
	}

	amount := sumTotals(prices).Mul(percentage.Neg()).Div(hundred).Round(sc.Decimals)
	return c.absolute.Calculate(amount, prices, sc)
}

// AmountCalculator aggregates line item prices into a cart price.
type AmountCalculator struct{}

// NewAmountCalculator returns an AmountCalculator.
func NewAmountCalculator() *AmountCalculator {
	return &AmountCalculator{}
}

// Calculate sums the positions and their taxes. Gross carts report taxes
// included in the total, net carts add them.
func (c *AmountCalculator) Calculate(prices []price.CalculatedPrice, sc price.SalesContext) (price.CartPrice, error) {
	if err := validateContext(sc); err != nil {
		return price.CartPrice{}, err
	}

	groups := make([][]price.CalculatedTax, len(prices))
	for i, p := range prices {
		groups[i] = p.Taxes
	}
	taxes := price.MergeTaxes(groups...)

	tax := decimal.Zero
	for i := range taxes {
		taxes[i].Tax = taxes[i].Tax.Round(sc.Decimals)
		tax = tax.Add(taxes[i].Tax)
	}

	position := sumTotals(prices).Round(sc.Decimals)
	cp := price.CartPrice{
		PositionPrice: position,
		Taxes:         taxes,
		TaxStatus:     sc.TaxStatus,
	}
	if sc.TaxStatus == price.TaxStatusNet {
		cp.NetPrice = position
		cp.TotalPrice = position.Add(tax)
	} else {
		cp.NetPrice = position.Sub(tax)
		cp.TotalPrice = position
	}
	return cp, nil
}
