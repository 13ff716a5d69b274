// Command promo-replay prices archived carts through the promotion engine and
// reports which promotion won how often.
//
// Input files are gzip-compressed JSON lines, one saved cart per line:
//
//	{"token":"…","locale":"de","items":[{"product_id":"1","quantity":5}]}
//
// Carts are deduplicated by token across all files with a bloom filter. A
// false positive drops a new cart as a duplicate, so the duplicate count is an
// upper bound; the summary logs the estimated false positive rate.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"maps"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-promo/internal/app"
	"github.com/xenking/kart-promo/internal/domain/cart"
	"github.com/xenking/kart-promo/internal/domain/order"
	"github.com/xenking/kart-promo/internal/domain/price"
	"github.com/xenking/kart-promo/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineSize   = 1 << 20
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		workers     int
		promotions  string
		locale      string
		currency    string
		taxStatus   string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing cart dumps")
	flag.StringVar(&pattern, "pattern", "*.jsonl.gz", "glob of cart dump files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "files processed concurrently")
	flag.StringVar(&promotions, "promotions", "bulk_quantity,percentage", "ordered promotion strategy names")
	flag.StringVar(&locale, "locale", "en", "default label locale")
	flag.StringVar(&currency, "currency", "USD", "sales channel currency")
	flag.StringVar(&taxStatus, "tax-status", string(price.TaxStatusGross), "gross or net")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		slog.Error("invalid pattern", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Error("no cart dumps found", slog.String("data_dir", dataDir), slog.String("pattern", pattern))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sc := price.SalesContext{
		ChannelID: "replay",
		Currency:  currency,
		Locale:    locale,
		TaxStatus: price.TaxStatus(taxStatus),
		Decimals:  2,
	}
	enabled := strings.Split(promotions, ",")

	if err := run(ctx, databaseURL, files, workers, enabled, sc); err != nil {
		slog.Error("promo replay failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, files []string, workers int, enabled []string, sc price.SalesContext) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	calc, err := app.NewCalculator(zap.NewNop(),
		tracenoop.NewTracerProvider(),
		metricnoop.NewMeterProvider(),
		app.PromotionsConfig{Enabled: enabled},
		app.TranslationsConfig{DefaultLocale: sc.Locale},
	)
	if err != nil {
		return errors.Wrap(err, "create checkout")
	}
	svc := order.NewService(postgres.NewProductRepository(pool), calc, nil, nil, sc)

	r := newReplayer(svc)
	if err := r.replay(ctx, files, workers); err != nil {
		return err
	}
	r.sum.log(r.duplicateFPR())
	return nil
}

// quoter prices a set of items.
type quoter interface {
	Quote(ctx context.Context, req order.QuoteRequest) (*order.Quote, error)
}

type replayer struct {
	quotes quoter

	mu     sync.Mutex
	seen   *bloom.BloomFilter
	tokens uint
	sum    *summary
}

func newReplayer(q quoter) *replayer {
	return &replayer{
		quotes: q,
		seen:   bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		sum:    newSummary(),
	}
}

func (r *replayer) replay(ctx context.Context, files []string, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, f := range files {
		g.Go(func() error {
			return r.replayFile(ctx, f)
		})
	}
	return g.Wait()
}

func (r *replayer) replayFile(ctx context.Context, path string) error {
	var count int
	if err := streamGzLines(ctx, path, func(line []byte) error {
		count++
		if count%progressEvery == 0 {
			slog.Info("replay progress", slog.String("file", path), slog.Int("carts", count))
		}
		return r.replayLine(ctx, line)
	}); err != nil {
		return errors.Wrapf(err, "replay %s", path)
	}
	slog.Info("replay complete", slog.String("file", path), slog.Int("carts", count))
	return nil
}

func (r *replayer) replayLine(ctx context.Context, line []byte) error {
	dump, err := decodeCart(line)
	if err != nil {
		r.sum.skip("decode")
		return nil
	}
	if dump.Token != "" && r.duplicate(dump.Token) {
		r.sum.skip("duplicate")
		return nil
	}

	q, err := r.quotes.Quote(ctx, order.QuoteRequest{Items: dump.Items, Locale: dump.Locale})
	var (
		notFound *order.ProductNotFoundError
		quantity *order.InvalidQuantityError
	)
	switch {
	case err == nil:
		r.sum.record(q.Cart)
		return nil
	case errors.Is(err, order.ErrEmptyItems):
		r.sum.skip("empty")
		return nil
	case errors.As(err, &notFound):
		r.sum.skip("unknown_product")
		return nil
	case errors.As(err, &quantity):
		r.sum.skip("invalid_quantity")
		return nil
	default:
		return err
	}
}

func (r *replayer) duplicate(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen.TestAndAddString(token) {
		return true
	}
	r.tokens++
	return false
}

// duplicateFPR estimates the chance that a new token was reported as a
// duplicate, given the tokens added so far.
func (r *replayer) duplicateFPR() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := float64(r.seen.K())
	m := float64(r.seen.Cap())
	return math.Pow(1-math.Exp(-k*float64(r.tokens)/m), k)
}

type cartDump struct {
	Token  string
	Locale string
	Items  []order.OrderItem
}

func decodeCart(data []byte) (cartDump, error) {
	var c cartDump
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "token":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "token")
			}
			c.Token = v
		case "locale":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "locale")
			}
			c.Locale = v
		case "items":
			items, err := order.DecodeItems(d)
			if err != nil {
				return err
			}
			c.Items = items
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return cartDump{}, errors.Wrap(err, "decode cart")
	}
	return c, nil
}

// summary aggregates replay outcomes across workers.
type summary struct {
	mu       sync.Mutex
	carts    int
	wins     map[string]int
	skipped  map[string]int
	discount decimal.Decimal
}

func newSummary() *summary {
	return &summary{
		wins:     make(map[string]int),
		skipped:  make(map[string]int),
		discount: decimal.Zero,
	}
}

func (s *summary) record(c *cart.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts++
	for _, li := range c.LineItems.OfType(cart.TypeDiscount) {
		s.wins[li.ReferencedID]++
		if li.Price != nil {
			s.discount = s.discount.Add(li.Price.TotalPrice)
		}
	}
}

func (s *summary) skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped[reason]++
}

func (s *summary) log(duplicateFPR float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var applied int
	for _, code := range slices.Sorted(maps.Keys(s.wins)) {
		applied += s.wins[code]
		slog.Info("promotion wins", slog.String("promotion", code), slog.Int("carts", s.wins[code]))
	}
	for _, reason := range slices.Sorted(maps.Keys(s.skipped)) {
		slog.Info("carts skipped", slog.String("reason", reason), slog.Int("carts", s.skipped[reason]))
	}
	slog.Info("promo replay completed",
		slog.Int("carts", s.carts),
		slog.Int("discounted", applied),
		slog.String("total_discount", s.discount.StringFixed(2)),
		slog.Float64("duplicate_fpr", duplicateFPR),
	)
}

// streamGzLines opens a gzip-compressed file and calls fn for each non-empty
// line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
