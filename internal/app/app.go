// Package app wires the kart API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/checkout"
	"github.com/xenking/kart-promo/internal/domain/order"
	"github.com/xenking/kart-promo/internal/handler"
	"github.com/xenking/kart-promo/internal/i18n"
	"github.com/xenking/kart-promo/internal/pricing"
	"github.com/xenking/kart-promo/internal/promotion"
	"github.com/xenking/kart-promo/internal/storage/postgres"
	redisstore "github.com/xenking/kart-promo/internal/storage/redis"
	"github.com/xenking/kart-promo/pkg/health"
	"github.com/xenking/kart-promo/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Strings("promotions", cfg.Promotions.Enabled),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rdb, err := newRedis(cfg.RedisURL, m)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer func() { _ = rdb.Close() }()

	calc, err := NewCalculator(lg, m.TracerProvider(), m.MeterProvider(), cfg.Promotions, cfg.Translations)
	if err != nil {
		return errors.Wrap(err, "create checkout")
	}

	// Health check service.
	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, pool.Ping)
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(rdb.Ping))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	cartStore := redisstore.NewCartStore(rdb, cfg.CartTTL)

	orderService := order.NewService(productRepo, calc, orderRepo, cartStore, cfg.SalesContext())

	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		orderService,
	)
	mux := h.Routes(handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper)))
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RateLimit(redisstore.NewRateLimiter(rdb), httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("kart-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newRedis(url string, m *app.Telemetry) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client, redisotel.WithTracerProvider(m.TracerProvider())); err != nil {
		return nil, errors.Wrap(err, "instrument tracing")
	}
	if err := redisotel.InstrumentMetrics(client, redisotel.WithMeterProvider(m.MeterProvider())); err != nil {
		return nil, errors.Wrap(err, "instrument metrics")
	}
	return client, nil
}

// NewCalculator builds the checkout pipeline: products are priced first,
// then the enabled promotions compete for the single discount line.
func NewCalculator(
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	promotions PromotionsConfig,
	translations TranslationsConfig,
) (*checkout.Calculator, error) {
	var overrides []i18n.Catalog
	if translations.File != "" {
		c, err := i18n.LoadFile(translations.File)
		if err != nil {
			return nil, errors.Wrap(err, "load translations")
		}
		overrides = append(overrides, c)
	}
	tr, err := i18n.NewTranslator(translations.DefaultLocale, overrides...)
	if err != nil {
		return nil, errors.Wrap(err, "create translator")
	}

	registrations, err := promotion.DefaultRegistry().Resolve(promotions.Enabled, promotion.Collaborators{
		Absolute:   pricing.NewAbsoluteCalculator(),
		Percentage: pricing.NewPercentageCalculator(),
		Translator: tr,
	})
	if err != nil {
		return nil, errors.Wrap(err, "resolve promotions")
	}

	return checkout.NewCalculator(
		pricing.NewAmountCalculator(),
		tp,
		mp,
		checkout.NewProductProcessor(pricing.NewQuantityCalculator()),
		promotion.NewEvaluatorFrom(lg.Named("promotion"), registrations),
	)
}
