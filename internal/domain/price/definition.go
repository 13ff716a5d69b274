package price

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Operator is the comparison a KeyRule applies to line item keys.
type Operator string

// OperatorEq matches keys contained in the rule.
const OperatorEq Operator = "="

// KeyRule selects line items by their identifier.
type KeyRule struct {
	Operator Operator
	Keys     []string
}

// NewKeyRule returns an equality rule over a copy of keys.
func NewKeyRule(keys []string) *KeyRule {
	return &KeyRule{Operator: OperatorEq, Keys: slices.Clone(keys)}
}

// Match reports whether key is one of the rule keys. A nil rule matches
// everything.
func (r *KeyRule) Match(key string) bool {
	if r == nil {
		return true
	}
	return slices.Contains(r.Keys, key)
}

// Definition describes how a calculator should compute a price.
type Definition interface {
	definition()
}

// QuantityDefinition prices a product line item.
type QuantityDefinition struct {
	UnitPrice decimal.Decimal
	Quantity  int
	TaxRules  []TaxRule
}

// AbsoluteDefinition spreads a fixed amount over the items matched by Filter.
// For discounts Amount is the positive value taken off.
type AbsoluteDefinition struct {
	Amount decimal.Decimal
	Filter *KeyRule
}

// PercentageDefinition applies a percentage of the matched items' total.
// Negative percentages are discounts: -10 takes 10% off.
type PercentageDefinition struct {
	Percentage decimal.Decimal
	Filter     *KeyRule
}

func (QuantityDefinition) definition()   {}
func (AbsoluteDefinition) definition()   {}
func (PercentageDefinition) definition() {}
