package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-basket/internal/repository"
	"github.com/xenking/kart-basket/internal/sweeper"
	"github.com/xenking/kart-basket/pkg/health"
	"github.com/xenking/kart-basket/pkg/httpmiddleware"
)

// Run starts the maintenance daemon: it migrates the schema, sweeps stale
// baskets and serves health probes until ctx is cancelled.
func Run(ctx context.Context, lg *zap.Logger, t Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL,
		repository.WithApplicationName("basket-sweeper"),
		repository.WithMaxConns(cfg.MaxConns),
	)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Fails when the catalog cannot be loaded.
	if _, err := NewServices(zctx.Base(ctx, lg), pool, cfg.Catalog, t); err != nil {
		return errors.Wrap(err, "wire services")
	}

	sw, err := sweeper.New(repository.NewBasketRepository(pool),
		sweeper.WithInterval(cfg.Sweeper.Interval),
		sweeper.WithMaxAge(cfg.Sweeper.MaxAge),
		sweeper.WithBatchSize(cfg.Sweeper.BatchSize),
		sweeper.WithMeterProvider(t.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "sweeper")
	}

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))
	healthSvc.Add(health.Readiness, "sweeper",
		health.StalenessCheck(sw.LastRun, 3*cfg.Sweeper.Interval, cfg.Sweeper.Interval),
	)
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))

	mux := http.NewServeMux()
	healthSvc.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(lg),
				httpmiddleware.LogRequests(),
				httpmiddleware.Recovery(),
			),
			"basket-sweeper",
			otelhttp.WithMeterProvider(t.MeterProvider()),
			otelhttp.WithTracerProvider(t.TracerProvider()),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		healthSvc.Start(gCtx, 10*time.Second)
		healthSvc.SetReady(true)
		return sw.Run(zctx.Base(gCtx, lg))
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		defer healthSvc.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
