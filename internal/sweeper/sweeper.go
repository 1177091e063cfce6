// Package sweeper deletes baskets that have not been touched for a while.
package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Store removes stale basket records.
type Store interface {
	DeleteStale(ctx context.Context, before time.Time, limit int) (int, error)
}

// Defaults used when no option overrides them.
const (
	DefaultInterval  = 10 * time.Minute
	DefaultMaxAge    = 14 * 24 * time.Hour
	DefaultBatchSize = 500
)

// Sweeper periodically soft-deletes baskets idle for longer than MaxAge.
type Sweeper struct {
	store     Store
	interval  time.Duration
	maxAge    time.Duration
	batchSize int
	now       func() time.Time

	meterProvider metric.MeterProvider
	lastRun       atomic.Int64
	deleted       metric.Int64Counter
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// WithMaxAge sets how long a basket may stay untouched.
func WithMaxAge(d time.Duration) Option {
	return func(s *Sweeper) { s.maxAge = d }
}

// WithBatchSize limits how many baskets one store call deletes.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) { s.batchSize = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithMeterProvider sets the meter provider for the deleted counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Sweeper) { s.meterProvider = mp }
}

// New creates a Sweeper over store.
func New(store Store, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		store:         store,
		interval:      DefaultInterval,
		maxAge:        DefaultMaxAge,
		batchSize:     DefaultBatchSize,
		now:           time.Now,
		meterProvider: metricnoop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	s.deleted, err = s.meterProvider.Meter("sweeper").Int64Counter("basket.sweeper.deleted",
		metric.WithDescription("Stale baskets deleted"))
	if err != nil {
		return nil, errors.Wrap(err, "deleted counter")
	}
	return s, nil
}

// Sweep deletes every basket older than the max age, one batch at a time,
// and returns how many were deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	total := 0
	for {
		n, err := s.store.DeleteStale(ctx, cutoff, s.batchSize)
		total += n
		if err != nil {
			return total, errors.Wrap(err, "delete stale")
		}
		if s.batchSize <= 0 || n < s.batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	s.lastRun.Store(s.now().UnixNano())
	s.deleted.Add(ctx, int64(total))
	return total, nil
}

// LastRun returns when the last sweep completed, or the zero time.
func (s *Sweeper) LastRun() time.Time {
	ns := s.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run sweeps immediately and then on every interval until ctx is done.
// Failed sweeps are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("sweeper")
	lg.Info("Starting", zap.Duration("interval", s.interval), zap.Duration("max_age", s.maxAge))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		start := s.now()
		n, err := s.Sweep(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			lg.Error("Sweep failed", zap.Int("deleted", n), zap.Error(err))
		case n > 0:
			lg.Info("Swept stale baskets", zap.Int("deleted", n), zap.Duration("took", s.now().Sub(start)))
		}

		select {
		case <-ctx.Done():
			lg.Info("Stopped")
			return nil
		case <-ticker.C:
		}
	}
}
