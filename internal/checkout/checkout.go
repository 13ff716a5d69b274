// Package checkout runs the cart calculation pipeline.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/price"
)

const instrumentationName = "github.com/xenking/kart-promo/internal/checkout"

// Processor contributes line items to the cart being calculated. original is
// the cart as submitted and must not be modified.
type Processor interface {
	Process(ctx context.Context, original, toCalculate *cart.Cart, sc price.SalesContext) error
}

// AmountCalculator aggregates line item prices into a cart price.
type AmountCalculator interface {
	Calculate(prices []price.CalculatedPrice, sc price.SalesContext) (price.CartPrice, error)
}

// Calculator runs processors in order over a fresh cart and recalculates the
// cart price after each of them.
type Calculator struct {
	amount     AmountCalculator
	processors []Processor

	tracer  trace.Tracer
	applied metric.Int64Counter
}

// NewCalculator creates a Calculator.
func NewCalculator(
	amount AmountCalculator,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	processors ...Processor,
) (*Calculator, error) {
	applied, err := mp.Meter(instrumentationName).Int64Counter("kart.promotion.applied",
		metric.WithDescription("Number of calculated carts a promotion was applied to"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applied counter")
	}
	return &Calculator{
		amount:     amount,
		processors: processors,
		tracer:     tp.Tracer(instrumentationName),
		applied:    applied,
	}, nil
}

// Calculate returns the calculated copy of original.
func (c *Calculator) Calculate(ctx context.Context, original *cart.Cart, sc price.SalesContext) (_ *cart.Cart, rerr error) {
	ctx, span := c.tracer.Start(ctx, "checkout.Calculate",
		trace.WithAttributes(
			attribute.Int("kart.cart.line_items", len(original.LineItems)),
			attribute.String("kart.sales.currency", sc.Currency),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	toCalculate := cart.New(original.Token)
	for _, p := range c.processors {
		if err := p.Process(ctx, original, toCalculate, sc); err != nil {
			return nil, errors.Wrapf(err, "process %T", p)
		}
		cp, err := c.amount.Calculate(toCalculate.LineItems.CartPrices(), sc)
		if err != nil {
			return nil, errors.Wrap(err, "calculate amount")
		}
		toCalculate.Price = cp
	}

	for _, d := range toCalculate.LineItems.OfType(cart.TypeDiscount) {
		c.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("promotion", d.ReferencedID)))
		span.SetAttributes(attribute.String("kart.promotion", d.ReferencedID))
	}

	zctx.From(ctx).Debug("Cart calculated",
		zap.String("token", toCalculate.Token),
		zap.Int("line_items", len(toCalculate.LineItems)),
		zap.Stringer("total", toCalculate.Price.TotalPrice),
	)
	return toCalculate, nil
}
