package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrCartNotFound is returned when a saved cart token is unknown or expired.
var ErrCartNotFound = errors.New("cart not found")

// Order represents a completed customer order with pricing and promotion details.
type Order struct {
	ID        string
	Items     []OrderItem
	Total     decimal.Decimal
	Discounts decimal.Decimal
	// Promotion is the code of the applied promotion, empty if none.
	Promotion string
	CreatedAt time.Time
}

// OrderItem represents a single line item in an order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}

// CartStore keeps the items of carts that are recalculated on every read.
type CartStore interface {
	Save(ctx context.Context, token string, items []OrderItem) error
	// Load returns ErrCartNotFound for unknown tokens.
	Load(ctx context.Context, token string) ([]OrderItem, error)
	Delete(ctx context.Context, token string) error
}
