// Command seed-db loads the product catalog and an API key into PostgreSQL.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/auth"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file, optionally gzipped (.gz)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or KART_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KART_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("KART_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or KART_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("KART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	products, err := readProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)
	slog.Info("upserting products", slog.Int("count", len(products)))
	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product",
			slog.String("id", p.ID),
			slog.String("name", p.Name),
			slog.String("tax_rate", p.TaxRate.String()),
		)
	}

	key := defaultKey(apiKey, pepper)
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}
	slog.Info("upserted API key", slog.String("id", key.ID), slog.Any("scopes", key.Scopes))

	return nil
}

func defaultKey(apiKey, pepper string) auth.APIKeyInfo {
	return auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashHex(apiKey, []byte(pepper)),
		Name:    "Default test key",
		Scopes:  []string{auth.ScopeCartWrite, auth.ScopeCreateOrder},
	}
}

// readProducts reads a JSON array of products from path. Files ending in
// .gz are decompressed.
func readProducts(path string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return decodeProducts(r)
}

func decodeProducts(r io.Reader) ([]product.Product, error) {
	var products []product.Product
	d := jx.Decode(r, 32*1024)
	if err := d.Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				return str(d, &p.ID)
			case "name":
				return str(d, &p.Name)
			case "category":
				return str(d, &p.Category)
			case "price":
				return num(d, &p.Price)
			case "taxRate":
				return num(d, &p.TaxRate)
			case "image":
				return d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "thumbnail":
						return str(d, &p.Image.Thumbnail)
					case "mobile":
						return str(d, &p.Image.Mobile)
					case "tablet":
						return str(d, &p.Image.Tablet)
					case "desktop":
						return str(d, &p.Image.Desktop)
					default:
						return d.Skip()
					}
				})
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if p.ID == "" {
			return errors.Errorf("product %d: missing id", len(products))
		}
		if p.Price.IsNegative() {
			return errors.Errorf("product %s: negative price", p.ID)
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

func str(d *jx.Decoder, dst *string) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func num(d *jx.Decoder, dst *decimal.Decimal) error {
	v, err := d.Num()
	if err != nil {
		return err
	}
	dec, err := decimal.NewFromString(v.String())
	if err != nil {
		return errors.Wrap(err, "parse decimal")
	}
	*dst = dec
	return nil
}
