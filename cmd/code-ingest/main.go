// Command code-ingest imports coupon codes that appear in enough of a set
// of gzip-compressed code lists.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-basket/internal/domain/coupon"
	"github.com/xenking/kart-basket/internal/repository"
)

func main() {
	var (
		pattern     string
		databaseURL string
		shop        string
		description string
		maxUses     int
		batchSize   int
		s           = scanner{progress: 10_000_000}
	)
	flag.StringVar(&pattern, "files", "data/*.gz", "glob matching the gzip code lists")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&shop, "shop", "", "restrict imported codes to a shop")
	flag.StringVar(&description, "description", "Imported promo code", "description stored with each code")
	flag.IntVar(&maxUses, "max-uses", 0, "uses allowed per code, 0 for unlimited")
	flag.IntVar(&batchSize, "batch-size", 50_000, "codes written per transaction")
	flag.IntVar(&s.quorum, "min-files", 2, "files a code must appear in")
	flag.IntVar(&s.minLen, "min-len", 8, "shortest accepted code")
	flag.IntVar(&s.maxLen, "max-len", 10, "longest accepted code")
	flag.UintVar(&s.capacity, "bloom-capacity", 120_000_000, "expected codes per file")
	flag.Float64Var(&s.fpr, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()
	s.lg = lg

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		lg.Fatal("No input files", zap.String("pattern", pattern), zap.Error(err))
	}

	codes, err := s.scan(ctx, files)
	if err != nil {
		lg.Fatal("Scan failed", zap.Error(err))
	}
	lg.Info("Valid codes found", zap.Int("count", len(codes)))

	template := coupon.Rule{ShopID: shop, Description: description, MaxUses: maxUses}
	if err := write(ctx, lg, databaseURL, codes, template, batchSize); err != nil {
		lg.Fatal("Write failed", zap.Error(err))
	}
	lg.Info("Code ingest completed")
}

func write(ctx context.Context, lg *zap.Logger, databaseURL string, codes []string, template coupon.Rule, batchSize int) error {
	if len(codes) == 0 {
		return nil
	}
	pool, err := repository.NewPool(ctx, databaseURL, repository.WithApplicationName("code-ingest"))
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)
	written := 0
	for _, batch := range rules(codes, template, batchSize) {
		if _, err := repo.BulkUpsert(ctx, batch); err != nil {
			return errors.Wrapf(err, "batch at %d", written)
		}
		written += len(batch)
		lg.Info("Write progress", zap.Int("written", written), zap.Int("total", len(codes)))
	}
	return nil
}

// rules expands codes into coupon rules split into batches of at most size.
func rules(codes []string, template coupon.Rule, size int) [][]coupon.Rule {
	size = max(size, 1)
	var out [][]coupon.Rule
	for start := 0; start < len(codes); start += size {
		end := min(start+size, len(codes))
		batch := make([]coupon.Rule, 0, end-start)
		for _, code := range codes[start:end] {
			r := template
			r.Code = code
			batch = append(batch, r)
		}
		out = append(out, batch)
	}
	return out
}
