// Command seed-db loads a catalog seed file into the database.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-basket/internal/repository"
)

func main() {
	var (
		databaseURL string
		seedFile    string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/catalog.json", "path to the seed JSON file")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, seedFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedFile string) error {
	data, err := os.ReadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	seed, err := parseSeed(data)
	if err != nil {
		return err
	}

	pool, err := repository.NewPool(ctx, databaseURL, repository.WithApplicationName("seed-db"))
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := repository.NewProductRepository(pool)
	// Components reference their children, so every product goes in first.
	for _, p := range seed.Products {
		if err := products.Upsert(ctx, p.Product); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	for _, p := range seed.Products {
		for _, st := range p.Stock {
			if err := products.SetStock(ctx, st); err != nil {
				return errors.Wrapf(err, "stock of %s", p.ID)
			}
		}
		if err := products.SetComponents(ctx, p.ID, p.Components); err != nil {
			return errors.Wrapf(err, "components of %s", p.ID)
		}
	}
	lg.Info("Seeded products", zap.Int("count", len(seed.Products)))

	methods := repository.NewMethodRepository(pool)
	for _, m := range seed.Methods {
		if err := methods.Upsert(ctx, m); err != nil {
			return errors.Wrapf(err, "upsert method %s", m.ID)
		}
	}
	lg.Info("Seeded methods", zap.Int("count", len(seed.Methods)))

	n, err := repository.NewCouponRepository(pool).BulkUpsert(ctx, seed.Coupons)
	if err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	lg.Info("Seeded coupons", zap.Int64("count", n))
	return nil
}
