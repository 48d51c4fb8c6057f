// Package app wires the storefront server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/render"
	"github.com/xenking/kart-storefront/internal/handler"
	"github.com/xenking/kart-storefront/internal/payment"
	"github.com/xenking/kart-storefront/internal/storage/memory"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/internal/storefront"
	"github.com/xenking/kart-storefront/pkg/health"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// catalog is what the server needs from a product store.
type catalog interface {
	product.Repository
	product.Pinger
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("payment_url", cfg.Payment.URL),
		zap.Stringer("currency", cfg.CurrencyUnit()),
	)

	products, closeCatalog, err := openCatalog(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer closeCatalog()

	payments, err := payment.NewClient(cfg.PaymentClientConfig(),
		payment.WithTracerProvider(m.TracerProvider()),
		payment.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create payment client")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("catalog", 5*time.Second, health.PingCheck(products))
	healthSvc.Add(health.Check{
		Name:             "payment",
		Kind:             health.Readiness,
		Func:             health.CircuitCheck("payment", payments.Open),
		FailureThreshold: 1,
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	projector := render.NewProjector(cfg.CurrencyUnit())
	sessions := storefront.NewRegistry(func(id string) *storefront.Session {
		return storefront.NewSession(id, storefront.Deps{
			Gateway:              payments,
			Projector:            projector,
			NotificationLifetime: cfg.Notification.Lifetime,
			Logger:               lg,
			TracerProvider:       m.TracerProvider(),
			MeterProvider:        m.MeterProvider(),
		})
	}, cfg.Session.IdleTimeout, lg)
	defer sessions.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, products, sessions).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Leaves room for a payment call that runs into its own timeout.
		WriteTimeout:   cfg.Payment.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("storefront", m),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.HeaderSession, httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{handler.HeaderSession, httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.HeaderKey(handler.HeaderSession),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.LogRequests(),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	sessions.StartSweeper(gCtx, cfg.Session.SweepInterval)

	// Graceful shutdown: flip readiness, let load balancers drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		err := server.Shutdown(shutdownCtx)
		healthSvc.Stop()
		return errors.Wrap(err, "shutdown")
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// openCatalog returns the PostgreSQL catalog when a database URL is set and
// the JSON file catalog otherwise.
func openCatalog(ctx context.Context, lg *zap.Logger, cfg *Config) (catalog, func(), error) {
	if cfg.DatabaseURL == "" {
		lg.Info("Using file catalog", zap.String("file", cfg.Catalog.File))
		repo, err := memory.LoadProductFile(cfg.Catalog.File)
		if err != nil {
			return nil, nil, errors.Wrap(err, "load catalog")
		}
		return repo, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	return postgres.NewProductRepository(pool), pool.Close, nil
}
