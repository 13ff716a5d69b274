// Package cart defines the cart and line item structures the checkout
// pipeline calculates and the promotion engine extends.
package cart

import (
	"github.com/xenking/kart-promo/internal/domain/price"
)

// LineItemType tags what a line item represents.
type LineItemType string

const (
	// TypeProduct is a catalog product.
	TypeProduct LineItemType = "product"
	// TypeDiscount is a system generated promotion discount.
	TypeDiscount LineItemType = "custom_discount"
)

// LineItem is a single priced entry of a cart.
type LineItem struct {
	ID           string
	Type         LineItemType
	ReferencedID string
	Label        string
	Quantity     int

	// Good marks real merchandise.
	Good bool
	// Stackable allows combining the item with other discounts.
	Stackable bool
	// Removable allows the customer to remove the item.
	Removable bool

	PriceDefinition price.Definition
	Price           *price.CalculatedPrice
}

// Clone returns a shallow copy of the line item.
func (li *LineItem) Clone() *LineItem {
	c := *li
	return &c
}

// LineItems is an ordered line item collection.
type LineItems []*LineItem

// Filter returns the items for which keep returns true.
func (items LineItems) Filter(keep func(*LineItem) bool) LineItems {
	var out LineItems
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// OfType returns the items with the given type.
func (items LineItems) OfType(t LineItemType) LineItems {
	return items.Filter(func(item *LineItem) bool {
		return item.Type == t
	})
}

// Match returns the items whose identifier satisfies rule.
func (items LineItems) Match(rule *price.KeyRule) LineItems {
	return items.Filter(func(item *LineItem) bool {
		return rule.Match(item.ID)
	})
}

// Keys returns the identifiers of all items in order.
func (items LineItems) Keys() []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.ID
	}
	return keys
}

// Prices returns the calculated prices of all priced items.
func (items LineItems) Prices() []price.CalculatedPrice {
	prices := make([]price.CalculatedPrice, 0, len(items))
	for _, item := range items {
		if item.Price != nil {
			prices = append(prices, *item.Price)
		}
	}
	return prices
}

// CartPrices returns the prices of all priced items as they count towards
// the cart total. Discount prices hold the amount taken off and are deducted.
func (items LineItems) CartPrices() []price.CalculatedPrice {
	prices := make([]price.CalculatedPrice, 0, len(items))
	for _, item := range items {
		switch {
		case item.Price == nil:
		case item.Type == TypeDiscount:
			prices = append(prices, item.Price.Negate())
		default:
			prices = append(prices, *item.Price)
		}
	}
	return prices
}

// Cart is a mutable collection of line items with an aggregate price.
type Cart struct {
	Token     string
	LineItems LineItems
	Price     price.CartPrice
}

// New returns an empty cart with the given token.
func New(token string) *Cart {
	return &Cart{Token: token}
}

// Add appends a line item.
func (c *Cart) Add(item *LineItem) {
	c.LineItems = append(c.LineItems, item)
}

// Products returns the product line items.
func (c *Cart) Products() LineItems {
	return c.LineItems.OfType(TypeProduct)
}
