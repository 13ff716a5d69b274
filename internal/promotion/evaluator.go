package promotion

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
)

// Evaluator applies the most valuable eligible strategy to a cart.
//
// Strategies are considered in registration order. A strategy wins only with
// a discount strictly greater than zero and every earlier one, so the first of
// equally valuable strategies is kept.
type Evaluator struct {
	lg            *zap.Logger
	registrations []any
}

// NewEvaluator returns an Evaluator over the given strategies.
func NewEvaluator(lg *zap.Logger, strategies ...Strategy) *Evaluator {
	registrations := make([]any, len(strategies))
	for i, s := range strategies {
		registrations[i] = s
	}
	return NewEvaluatorFrom(lg, registrations)
}

// NewEvaluatorFrom returns an Evaluator over registrations resolved at run
// time. Registrations that do not implement Strategy are reported and skipped
// on every pass.
func NewEvaluatorFrom(lg *zap.Logger, registrations []any) *Evaluator {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Evaluator{
		lg:            lg,
		registrations: append([]any(nil), registrations...),
	}
}

// Apply evaluates every strategy against c and appends the winner's discount
// line item. It returns the appended item, or nil when no strategy is
// eligible. Strategy errors abort the pass before c is modified.
func (e *Evaluator) Apply(c *cart.Cart, sc price.SalesContext) (*cart.LineItem, error) {
	var (
		best      Strategy
		bestValue = decimal.Zero
	)
	for _, r := range e.registrations {
		s, ok := r.(Strategy)
		if !ok {
			e.lg.Warn(fmt.Sprintf("%T not an instance of promotion.Strategy", r))
			continue
		}

		value, err := s.Evaluate(c, sc)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		if value.TotalPrice.GreaterThan(bestValue) {
			best = s
			bestValue = value.TotalPrice
		}
	}
	if best == nil {
		return nil, nil
	}

	item, err := best.Materialize(c, sc)
	if err != nil || item == nil {
		return nil, err
	}
	c.Add(item)
	return item, nil
}

// Process applies the best promotion to the cart being calculated.
func (e *Evaluator) Process(_ context.Context, _, toCalculate *cart.Cart, sc price.SalesContext) error {
	_, err := e.Apply(toCalculate, sc)
	return err
}
