// Package app wires the checkout service together: configuration, database,
// gateways, handlers, and the HTTP server lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/verdantlabs/checkout/internal/domain/checkout"
	"github.com/verdantlabs/checkout/internal/domain/order"
	"github.com/verdantlabs/checkout/internal/domain/payment"
	"github.com/verdantlabs/checkout/internal/gateway/bkash"
	"github.com/verdantlabs/checkout/internal/gateway/sslcommerz"
	"github.com/verdantlabs/checkout/internal/handler"
	"github.com/verdantlabs/checkout/internal/repository"
	"github.com/verdantlabs/checkout/pkg/health"
	"github.com/verdantlabs/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(500*time.Millisecond))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	addressRepo := repository.NewAddressRepository(pool)
	shippingRepo := repository.NewShippingRateRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Payment provider registry. Adding a provider is one Register call.
	registry := payment.NewRegistry()
	registry.Register(payment.MethodSSLCommerz, sslcommerz.New(sslcommerz.Config{
		BaseURL:       cfg.SSLCommerz.BaseURL,
		StoreID:       cfg.SSLCommerz.StoreID,
		StorePassword: cfg.SSLCommerz.StorePassword,
		Timeout:       cfg.SSLCommerz.Timeout,
	}))
	registry.Register(payment.MethodBkash, bkash.New(bkash.Config{
		BaseURL: cfg.Bkash.BaseURL,
		AppKey:  cfg.Bkash.AppKey,
		Token:   cfg.Bkash.Token,
		Timeout: cfg.Bkash.Timeout,
	}))

	// Domain services.
	checkoutSvc := checkout.NewService(registry, productRepo, addressRepo,
		shippingRepo, discountRepo, orderRepo, attemptRepo, lg)
	lifecycle := order.NewLifecycle(orderRepo)

	// HTTP handlers.
	h := handler.NewHandler(checkoutSvc, lifecycle, discountRepo, lg)
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", handler.Routes(h, securityHandler))

	instrumented := otelhttp.NewHandler(mux, "checkout-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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
