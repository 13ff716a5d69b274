package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kart-promo/internal/app"
	"github.com/xenking/kart-promo/internal/domain/order"
	"github.com/xenking/kart-promo/internal/domain/price"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/promotion"
)

type catalog map[string]product.Product

func (c catalog) List(context.Context) ([]product.Product, error) { return nil, nil }

func (c catalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (c catalog) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) *order.Service {
	t.Helper()

	calc, err := app.NewCalculator(zaptest.NewLogger(t),
		tracenoop.NewTracerProvider(),
		metricnoop.NewMeterProvider(),
		app.PromotionsConfig{Enabled: []string{"bulk_quantity", "percentage"}},
		app.TranslationsConfig{DefaultLocale: "en"},
	)
	require.NoError(t, err)

	products := catalog{
		"1": {ID: "1", Name: "Waffle", Price: decimal.RequireFromString("6.50"), TaxRate: decimal.NewFromInt(7)},
		"3": {ID: "3", Name: "Cake", Price: decimal.NewFromInt(120), TaxRate: decimal.NewFromInt(19)},
	}
	sc := price.SalesContext{ChannelID: "replay", Currency: "USD", Locale: "en", TaxStatus: price.TaxStatusGross, Decimals: 2}
	return order.NewService(products, calc, nil, nil, sc)
}

func writeDump(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeDump(t, dir, "a.jsonl.gz",
			`{"token":"a","items":[{"product_id":"1","quantity":5}]}`,
			`{"token":"b","locale":"de","items":[{"product_id":"3","quantity":1}]}`,
			``,
			`not json`,
		),
		writeDump(t, dir, "b.jsonl.gz",
			`{"token":"a","items":[{"product_id":"1","quantity":5}]}`,
			`{"token":"c","items":[{"product_id":"1","quantity":1}]}`,
			`{"token":"d","items":[{"product_id":"404","quantity":1}]}`,
			`{"token":"e","items":[]}`,
			`{"token":"f","items":[{"product_id":"1","quantity":0}]}`,
		),
	}

	r := newReplayer(newTestService(t))
	require.NoError(t, r.replay(context.Background(), files, 2))

	assert.Equal(t, 3, r.sum.carts)
	assert.Equal(t, map[string]int{
		promotion.BulkQuantityCode: 1,
		promotion.PercentageCode:   1,
	}, r.sum.wins)
	assert.Equal(t, map[string]int{
		"decode":           1,
		"duplicate":        1,
		"unknown_product":  1,
		"empty":            1,
		"invalid_quantity": 1,
	}, r.sum.skipped)
	assert.Equal(t, "18.5", r.sum.discount.String())

	// Tokens a to f were added once each.
	assert.Equal(t, uint(6), r.tokens)
	fpr := r.duplicateFPR()
	assert.Greater(t, fpr, 0.0)
	assert.Less(t, fpr, bloomFPR)
}

func TestReplayer_DuplicateFPR(t *testing.T) {
	r := newReplayer(newTestService(t))
	assert.Zero(t, r.duplicateFPR())

	assert.False(t, r.duplicate("a"))
	assert.True(t, r.duplicate("a"))
	assert.Equal(t, uint(1), r.tokens)

	// Filling the filter to its sizing capacity approaches the configured rate.
	r.tokens = bloomCapacity
	assert.InDelta(t, bloomFPR, r.duplicateFPR(), bloomFPR/10)
}

func TestReplay_MissingFile(t *testing.T) {
	r := newReplayer(newTestService(t))
	err := r.replay(context.Background(), []string{filepath.Join(t.TempDir(), "missing.jsonl.gz")}, 1)
	require.Error(t, err)
}

func TestReplay_Canceled(t *testing.T) {
	path := writeDump(t, t.TempDir(), "a.jsonl.gz", `{"token":"a","items":[{"product_id":"1","quantity":1}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newReplayer(newTestService(t))
	require.ErrorIs(t, r.replay(ctx, []string{path}, 1), context.Canceled)
}

func TestDecodeCart(t *testing.T) {
	c, err := decodeCart([]byte(`{"extra":[1,2],"locale":"fr","token":"t1","items":[{"product_id":"1","quantity":2}]}`))
	require.NoError(t, err)
	assert.Equal(t, "t1", c.Token)
	assert.Equal(t, "fr", c.Locale)
	assert.Equal(t, []order.OrderItem{{ProductID: "1", Quantity: 2}}, c.Items)

	for _, input := range []string{`[]`, `{"token":1}`, `{"items":{}}`} {
		_, err := decodeCart([]byte(input))
		assert.Error(t, err, input)
	}
}
