package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func salesContext() price.SalesContext {
	return price.SalesContext{
		ChannelID: "web",
		Currency:  "USD",
		Locale:    "en",
		TaxStatus: price.TaxStatusGross,
		Decimals:  2,
	}
}

func productItem(id, unit string, qty int) *cart.LineItem {
	u := d(unit)
	total := u.Mul(decimal.NewFromInt(int64(qty)))
	return &cart.LineItem{
		ID:              id,
		Type:            cart.TypeProduct,
		ReferencedID:    id,
		Label:           id,
		Quantity:        qty,
		Good:            true,
		Stackable:       true,
		Removable:       true,
		PriceDefinition: price.QuantityDefinition{UnitPrice: u, Quantity: qty},
		Price: &price.CalculatedPrice{
			UnitPrice:  u,
			Quantity:   qty,
			TotalPrice: total,
			Taxes:      []price.CalculatedTax{{TaxRate: d("10"), Price: total}},
		},
	}
}

// newCart builds a cart whose aggregate total is the sum of its items.
func newCart(items ...*cart.LineItem) *cart.Cart {
	c := cart.New("token")
	total := decimal.Zero
	for _, item := range items {
		c.Add(item)
		if item.Price != nil {
			total = total.Add(item.Price.TotalPrice)
		}
	}
	c.Price = price.CartPrice{TotalPrice: total, PositionPrice: total, TaxStatus: price.TaxStatusGross}
	return c
}

type calculation struct {
	value  decimal.Decimal
	prices []price.CalculatedPrice
}

// echoCalculator returns the amount it was asked for as the total price.
type echoCalculator struct {
	calls []calculation
	err   error
}

func (c *echoCalculator) Calculate(amount decimal.Decimal, prices []price.CalculatedPrice, _ price.SalesContext) (price.CalculatedPrice, error) {
	c.calls = append(c.calls, calculation{value: amount, prices: prices})
	if c.err != nil {
		return price.CalculatedPrice{}, c.err
	}
	return price.CalculatedPrice{UnitPrice: amount, Quantity: 1, TotalPrice: amount}, nil
}

// fixedCalculator always returns the same total.
type fixedCalculator struct {
	total decimal.Decimal
	calls []calculation
}

func (c *fixedCalculator) Calculate(percentage decimal.Decimal, prices []price.CalculatedPrice, _ price.SalesContext) (price.CalculatedPrice, error) {
	c.calls = append(c.calls, calculation{value: percentage, prices: prices})
	return price.CalculatedPrice{UnitPrice: c.total, Quantity: 1, TotalPrice: c.total}, nil
}

type keyTranslator struct{}

func (keyTranslator) Translate(locale, key string) string {
	return locale + ":" + key
}

func assertDiscountItem(t *testing.T, item *cart.LineItem, code string) {
	t.Helper()
	label := "en:" + code
	require.NotNil(t, item)
	assert.Equal(t, cart.TypeDiscount, item.Type)
	assert.Equal(t, code, item.ReferencedID)
	assert.Equal(t, label, item.ID)
	assert.Equal(t, label, item.Label)
	assert.Equal(t, 1, item.Quantity)
	assert.False(t, item.Good)
	assert.False(t, item.Stackable)
	assert.False(t, item.Removable)
	require.NotNil(t, item.Price)
}
