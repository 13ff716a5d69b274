package order

import (
	"context"
	"fmt"
	"math"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
	"github.com/xenking/kart-promo/internal/domain/product"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems   = errors.New("items required")
	ErrInvalidToken = errors.New("invalid cart token")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity, or
// repeated entries of one product sum past the int range.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// CartCalculator computes a calculated copy of a cart.
type CartCalculator interface {
	Calculate(ctx context.Context, original *cart.Cart, sc price.SalesContext) (*cart.Cart, error)
}

// QuoteRequest holds the input for pricing a set of items.
type QuoteRequest struct {
	Items []OrderItem
	// Locale overrides the sales channel locale for labels.
	Locale string
}

// Quote is a calculated cart together with the products it references.
type Quote struct {
	Cart     *cart.Cart
	Products []product.Product
}

// PlaceOrderRequest holds the input for placing an order. Items take
// precedence over CartToken.
type PlaceOrderRequest struct {
	Items     []OrderItem
	CartToken string
	Locale    string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Cart     *cart.Cart
	Products []product.Product
}

// Service encapsulates quoting and order placement.
type Service struct {
	products product.Repository
	calc     CartCalculator
	orders   Repository
	carts    CartStore
	sales    price.SalesContext
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	calc CartCalculator,
	orders Repository,
	carts CartStore,
	sales price.SalesContext,
) *Service {
	return &Service{
		products: products,
		calc:     calc,
		orders:   orders,
		carts:    carts,
		sales:    sales,
	}
}

// Quote prices items without persisting anything.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	return s.quote(ctx, uuid.NewString(), req)
}

// SaveCart prices items and stores them under token.
func (s *Service) SaveCart(ctx context.Context, token string, req QuoteRequest) (*Quote, error) {
	if err := validateToken(token); err != nil {
		return nil, err
	}
	q, err := s.quote(ctx, token, req)
	if err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, token, mergeItems(req.Items)); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return q, nil
}

// LoadCart recalculates the cart stored under token.
func (s *Service) LoadCart(ctx context.Context, token, locale string) (*Quote, error) {
	if err := validateToken(token); err != nil {
		return nil, err
	}
	items, err := s.carts.Load(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return s.quote(ctx, token, QuoteRequest{Items: items, Locale: locale})
}

// PlaceOrder prices the requested items, persists the order, and removes
// the saved cart it was placed from.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	items := req.Items
	fromCart := len(items) == 0 && req.CartToken != ""
	if fromCart {
		if err := validateToken(req.CartToken); err != nil {
			return nil, err
		}
		loaded, err := s.carts.Load(ctx, req.CartToken)
		if err != nil {
			return nil, errors.Wrap(err, "load cart")
		}
		items = loaded
	}

	q, err := s.quote(ctx, uuid.NewString(), QuoteRequest{Items: items, Locale: req.Locale})
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:        q.Cart.Token,
		Items:     mergeItems(items),
		Total:     q.Cart.Price.TotalPrice,
		Discounts: decimal.Zero,
	}
	for _, d := range q.Cart.LineItems.OfType(cart.TypeDiscount) {
		if d.Price != nil {
			o.Discounts = o.Discounts.Add(d.Price.TotalPrice)
		}
		o.Promotion = d.ReferencedID
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if fromCart {
		if err := s.carts.Delete(ctx, req.CartToken); err != nil {
			zctx.From(ctx).Warn("Delete ordered cart", zap.String("token", req.CartToken), zap.Error(err))
		}
	}

	return &PlaceOrderResult{
		Order:    o,
		Cart:     q.Cart,
		Products: q.Products,
	}, nil
}

func (s *Service) quote(ctx context.Context, token string, req QuoteRequest) (*Quote, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	merged := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		// Repeated products are summed below, so the running total must fit in an int.
		if item.Quantity <= 0 || merged[item.ProductID] > math.MaxInt-item.Quantity {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		merged[item.ProductID] += item.Quantity
	}
	items := mergeItems(req.Items)
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	c := cart.New(token)
	products := make([]product.Product, 0, len(items))
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)
		c.Add(productLineItem(p, item.Quantity))
	}

	sc := s.sales
	if req.Locale != "" {
		sc.Locale = req.Locale
	}
	calculated, err := s.calc.Calculate(ctx, c, sc)
	if err != nil {
		return nil, errors.Wrap(err, "calculate cart")
	}
	return &Quote{Cart: calculated, Products: products}, nil
}

func productLineItem(p product.Product, quantity int) *cart.LineItem {
	return &cart.LineItem{
		ID:           p.ID,
		Type:         cart.TypeProduct,
		ReferencedID: p.ID,
		Label:        p.Name,
		Quantity:     quantity,
		Good:         true,
		Stackable:    true,
		Removable:    true,
		PriceDefinition: price.QuantityDefinition{
			UnitPrice: p.Price,
			Quantity:  quantity,
			TaxRules:  p.TaxRules(),
		},
	}
}

// mergeItems sums the quantities of repeated products, keeping the position
// of their first occurrence.
func mergeItems(items []OrderItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}

func validateToken(token string) error {
	if err := uuid.Validate(token); err != nil {
		return errors.Wrapf(ErrInvalidToken, "%q", token)
	}
	return nil
}
