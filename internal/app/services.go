package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-basket/internal/domain/basket"
	"github.com/xenking/kart-basket/internal/domain/coupon"
	"github.com/xenking/kart-basket/internal/domain/method"
	"github.com/xenking/kart-basket/internal/domain/order"
	"github.com/xenking/kart-basket/internal/domain/product"
	"github.com/xenking/kart-basket/internal/repository"
)

// Telemetry provides the OpenTelemetry providers; *app.Telemetry satisfies it.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

// Services are the basket engine and its PostgreSQL backed collaborators.
type Services struct {
	Basket  *basket.Service
	Catalog *product.Catalog
	Records *repository.BasketRepository
}

// NewServices wires the basket service over pool and warms the catalog.
func NewServices(ctx context.Context, pool *pgxpool.Pool, cfg CatalogConfig, t Telemetry) (*Services, error) {
	records := repository.NewBasketRepository(pool)
	catalog := product.NewCatalog(repository.NewProductRepository(pool),
		product.WithCacheTTL(cfg.CacheTTL),
	)

	n, err := catalog.Warm(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "warm catalog")
	}
	zctx.From(ctx).Info("Catalog warmed", zap.Int("products", n))

	env := basket.Env{
		Storage: basket.NewStorage(records),
		Catalog: catalog,
		Pricer:  catalog,
		Methods: method.NewProvider(repository.NewMethodRepository(pool)),
	}
	svc, err := basket.NewService(env,
		coupon.NewRepoValidator(repository.NewCouponRepository(pool)),
		order.NewService(repository.NewOrderRepository(pool)),
		basket.WithMeterProvider(t.MeterProvider()),
		basket.WithTracerProvider(t.TracerProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "basket service")
	}

	return &Services{Basket: svc, Catalog: catalog, Records: records}, nil
}
