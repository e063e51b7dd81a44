package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/nordstil-checkout/api/routes"
	"github.com/angelmondragon/nordstil-checkout/internal/address"
	"github.com/angelmondragon/nordstil-checkout/internal/cart"
	"github.com/angelmondragon/nordstil-checkout/internal/checkout"
	"github.com/angelmondragon/nordstil-checkout/internal/orders"
	"github.com/angelmondragon/nordstil-checkout/internal/payments"
	"github.com/angelmondragon/nordstil-checkout/internal/reconciliation"
	"github.com/angelmondragon/nordstil-checkout/pkg/config"
	"github.com/angelmondragon/nordstil-checkout/pkg/db"
	"github.com/angelmondragon/nordstil-checkout/pkg/env"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/metrics"
	"github.com/angelmondragon/nordstil-checkout/pkg/migrate"
	"github.com/angelmondragon/nordstil-checkout/pkg/redis"
	"github.com/angelmondragon/nordstil-checkout/pkg/storefrontapi"
	pkgstripe "github.com/angelmondragon/nordstil-checkout/pkg/stripe"
)

const (
	cartMemoEntries = 512
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	backend, err := storefrontapi.NewClient(cfg.Backend)
	requireResource(ctx, logg, "storefront backend client", err)

	var stripeClient *pkgstripe.Client
	if cfg.Stripe.Enabled() {
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	threshold, fee, rate, err := cfg.Checkout.Pricing()
	requireResource(ctx, logg, "checkout pricing", err)

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Cache:    redisClient,
		CacheTTL: cfg.Checkout.CartCacheTTL,
		Rules: cart.Rules{
			FreeShippingThreshold: threshold,
			FlatShippingFee:       fee,
			TaxRate:               rate,
			Currency:              cfg.Checkout.Currency,
		},
		Memo:   cart.NewMemo(cartMemoEntries),
		Logger: logg,
	})
	requireResource(ctx, logg, "cart service", err)

	reconciliationService, err := reconciliation.NewService(reconciliation.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "reconciliation service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Orders:         backend,
		Cart:           cartService,
		Reconciliation: reconciliationService,
		Metrics:        checkoutMetrics,
		Logger:         logg,
	})
	requireResource(ctx, logg, "orders service", err)

	resolver, err := address.NewResolver(backend, logg)
	requireResource(ctx, logg, "address resolver", err)

	intents, confirmer, err := paymentStack(cfg, backend, stripeClient)
	requireResource(ctx, logg, "payment stack", err)

	sessions, err := checkout.NewRedisSessionStore(redisClient, cfg.Checkout.SessionTTL, cfg.Checkout.LockTTL)
	requireResource(ctx, logg, "checkout session store", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Sessions:         sessions,
		Cart:             cartService,
		Addresses:        resolver,
		Intents:          intents,
		Confirmer:        confirmer,
		PayPal:           payments.PayPalDemo{Delay: cfg.Checkout.PayPalDemoDelay},
		Orders:           ordersService,
		Metrics:          checkoutMetrics,
		Logger:           logg,
		ShippingEstimate: cfg.Checkout.ShippingEstimate,
	})
	requireResource(ctx, logg, "checkout service", err)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"intent_source": intents.Source(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:             dbClient,
			Redis:          redisClient,
			Idempotency:    redisClient,
			Cart:           cartService,
			Checkout:       checkoutService,
			Reconciliation: reconciliationService,
			HTTPMetrics:    metrics.NewHTTPMetrics(reg),
			Gatherer:       reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		server.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if err != nil {
		logg.Error(shutdownCtx, "shutdown finished with errors", err)
		os.Exit(1)
	}
	logg.Info(shutdownCtx, "api server stopped")
}

// paymentStack picks where intents are created and how card payments are confirmed.
// A configured Stripe key enables server-side confirmation; otherwise the widget's own
// result is trusted.
func paymentStack(cfg *config.Config, backend *storefrontapi.Client, stripeClient *pkgstripe.Client) (payments.IntentCreator, payments.Confirmer, error) {
	var confirmer payments.Confirmer = payments.WidgetConfirmer{}
	var stripeAPI payments.StripeIntentAPI
	if stripeClient != nil {
		stripeAPI = payments.NewStripeIntentAPI(stripeClient)
		c, err := payments.NewStripeConfirmer(stripeAPI)
		if err != nil {
			return nil, nil, err
		}
		confirmer = c
	}

	switch cfg.Checkout.IntentSource {
	case config.IntentSourceStripe:
		if stripeAPI == nil {
			return nil, nil, fmt.Errorf("intent source %q needs a stripe api key", config.IntentSourceStripe)
		}
		intents, err := payments.NewStripeIntents(stripeAPI)
		if err != nil {
			return nil, nil, err
		}
		return intents, confirmer, nil
	default:
		intents, err := payments.NewBackendIntents(backend)
		if err != nil {
			return nil, nil, err
		}
		return intents, confirmer, nil
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
