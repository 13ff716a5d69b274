package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/price"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Price is the unit
// price in the tax status of the sales channel.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	TaxRate  decimal.Decimal
	Category string
	Image    Image
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Repository defines read operations for the product catalog.
//
// GetByIDs returns the products found in any order; missing ids are not an
// error.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// TaxRules returns the tax rules of a single product line.
func (p Product) TaxRules() []price.TaxRule {
	return []price.TaxRule{{TaxRate: p.TaxRate, Percentage: decimal.NewFromInt(100)}}
}
