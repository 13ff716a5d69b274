// Package pricing turns price definitions into tax-aware calculated prices.
//
// All calculators are stateless and safe for concurrent use. Amounts are
// rounded to the number of decimals configured in the sales context.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/price"
)

// ErrInvalidContext is returned when a sales context cannot be used for
// calculation.
var ErrInvalidContext = errors.New("invalid sales context")

const maxDecimals = 8

var hundred = decimal.NewFromInt(100)

func validateContext(sc price.SalesContext) error {
	if sc.Decimals < 0 || sc.Decimals > maxDecimals {
		return errors.Wrapf(ErrInvalidContext, "decimals %d out of range", sc.Decimals)
	}
	switch sc.TaxStatus {
	case price.TaxStatusGross, price.TaxStatusNet:
		return nil
	default:
		return errors.Wrapf(ErrInvalidContext, "unsupported tax status %q", sc.TaxStatus)
	}
}

// TaxCalculator computes taxes for a price split by tax rules.
type TaxCalculator struct{}

// Calculate returns one CalculatedTax per rule. Gross prices contain the tax,
// net prices get it added on top.
func (TaxCalculator) Calculate(total decimal.Decimal, rules []price.TaxRule, sc price.SalesContext) []price.CalculatedTax {
	taxes := make([]price.CalculatedTax, 0, len(rules))
	for _, rule := range rules {
		share := total.Mul(rule.Percentage).Div(hundred)

		var tax decimal.Decimal
		if sc.TaxStatus == price.TaxStatusNet {
			tax = share.Mul(rule.TaxRate).Div(hundred)
		} else {
			tax = share.Mul(rule.TaxRate).Div(hundred.Add(rule.TaxRate))
		}

		taxes = append(taxes, price.CalculatedTax{
			Tax:     tax.Round(sc.Decimals),
			TaxRate: rule.TaxRate,
			Price:   share.Round(sc.Decimals),
		})
	}
	return taxes
}

// BuildTaxRules derives the tax rules of a set of prices: every tax rate gets
// the share of the combined total its taxed prices represent.
func BuildTaxRules(prices []price.CalculatedPrice) []price.TaxRule {
	total := sumTotals(prices)
	if total.IsZero() {
		return nil
	}

	var (
		rules []price.TaxRule
		index = make(map[string]int)
	)
	for _, p := range prices {
		for _, tax := range p.Taxes {
			key := tax.TaxRate.String()
			i, ok := index[key]
			if !ok {
				index[key] = len(rules)
				rules = append(rules, price.TaxRule{TaxRate: tax.TaxRate, Percentage: decimal.Zero})
				i = len(rules) - 1
			}
			rules[i].Percentage = rules[i].Percentage.Add(tax.Price)
		}
	}
	for i := range rules {
		rules[i].Percentage = rules[i].Percentage.Div(total).Mul(hundred)
	}
	return rules
}

func sumTotals(prices []price.CalculatedPrice) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p.TotalPrice)
	}
	return sum
}
