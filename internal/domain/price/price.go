// Package price holds the immutable price values produced by the pricing
// calculators and the definitions that describe how a price should be computed.
package price

import (
	"github.com/shopspring/decimal"
)

// TaxStatus tells whether line item prices include taxes.
type TaxStatus string

const (
	// TaxStatusGross means prices already include taxes.
	TaxStatusGross TaxStatus = "gross"
	// TaxStatusNet means taxes are added on top of prices.
	TaxStatusNet TaxStatus = "net"
)

// TaxRule assigns a tax rate to a share of a price. Percentage is the share of
// the price (0-100) the rate applies to.
type TaxRule struct {
	TaxRate    decimal.Decimal
	Percentage decimal.Decimal
}

// CalculatedTax is the tax amount computed for one rate.
type CalculatedTax struct {
	Tax     decimal.Decimal
	TaxRate decimal.Decimal
	Price   decimal.Decimal
}

// CalculatedPrice is a tax-resolved price of a line item.
type CalculatedPrice struct {
	UnitPrice  decimal.Decimal
	Quantity   int
	TotalPrice decimal.Decimal
	Taxes      []CalculatedTax
	TaxRules   []TaxRule
}

// Tax returns the sum of all calculated taxes.
func (p CalculatedPrice) Tax() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range p.Taxes {
		sum = sum.Add(t.Tax)
	}
	return sum
}

// Negate returns the price with its amounts and taxes sign-flipped.
func (p CalculatedPrice) Negate() CalculatedPrice {
	taxes := make([]CalculatedTax, len(p.Taxes))
	for i, t := range p.Taxes {
		taxes[i] = CalculatedTax{Tax: t.Tax.Neg(), TaxRate: t.TaxRate, Price: t.Price.Neg()}
	}
	p.UnitPrice = p.UnitPrice.Neg()
	p.TotalPrice = p.TotalPrice.Neg()
	p.Taxes = taxes
	return p
}

// CartPrice is the aggregate price of a cart.
type CartPrice struct {
	NetPrice      decimal.Decimal
	TotalPrice    decimal.Decimal
	PositionPrice decimal.Decimal
	Taxes         []CalculatedTax
	TaxStatus     TaxStatus
}

// MergeTaxes folds taxes with the same rate together, keeping the order in
// which rates first appear.
func MergeTaxes(taxes ...[]CalculatedTax) []CalculatedTax {
	var (
		out   []CalculatedTax
		index = make(map[string]int)
	)
	for _, group := range taxes {
		for _, t := range group {
			key := t.TaxRate.String()
			i, ok := index[key]
			if !ok {
				index[key] = len(out)
				out = append(out, t)
				continue
			}
			out[i].Tax = out[i].Tax.Add(t.Tax)
			out[i].Price = out[i].Price.Add(t.Price)
		}
	}
	return out
}

// SalesContext carries the channel settings every price calculation depends
// on. It is passed through the promotion engine untouched.
type SalesContext struct {
	ChannelID string
	Currency  string
	Locale    string
	TaxStatus TaxStatus
	// Decimals is the number of fraction digits totals are rounded to.
	Decimals int32
}
