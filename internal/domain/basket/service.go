package basket

import (
	"context"
	"slices"
	"strings"

	"github.com/alecthomas/types/optional"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// CodeValidator decides whether a coupon code may be attached to a basket
// and consumes codes once an order was placed.
type CodeValidator interface {
	Validate(ctx context.Context, shopID, code string) error
	Redeem(ctx context.Context, codes []string) error
}

// OrderCreator converts a basket into an order and returns the order id.
type OrderCreator interface {
	CreateOrder(ctx context.Context, b *Basket, req CheckoutRequest) (string, error)
}

// Participants are the people a basket is created or opened for.
type Participants struct {
	CustomerID string
	OrdererID  string
	CreatorID  string
}

// CheckoutRequest holds the methods chosen for checkout.
type CheckoutRequest struct {
	ShippingMethodID string
	PaymentMethodID  string
}

// CheckoutResult is the outcome of a successful checkout.
type CheckoutResult struct {
	OrderID string
	Total   decimal.Decimal
}

// Service runs the basket use cases: it opens baskets by key, applies a
// mutation and persists it, and converts baskets into orders.
type Service struct {
	env    Env
	codes  CodeValidator
	orders OrderCreator
	newKey func() string

	tracer      trace.Tracer
	saves       metric.Int64Counter
	conflicts   metric.Int64Counter
	finalized   metric.Int64Counter
	unorderable metric.Int64Counter
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	newKey         func() string
}

// WithMeterProvider sets the meter provider used for basket counters.
func WithMeterProvider(mp metric.MeterProvider) ServiceOption {
	return func(o *serviceOptions) { o.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(o *serviceOptions) { o.tracerProvider = tp }
}

// WithKeys overrides basket key generation.
func WithKeys(next func() string) ServiceOption {
	return func(o *serviceOptions) { o.newKey = next }
}

func newHexKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewService creates a basket Service.
func NewService(env Env, codes CodeValidator, orders OrderCreator, opts ...ServiceOption) (*Service, error) {
	o := serviceOptions{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
		newKey:         newHexKey,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		env:    env,
		codes:  codes,
		orders: orders,
		newKey: o.newKey,
		tracer: o.tracerProvider.Tracer("basket"),
	}

	meter := o.meterProvider.Meter("basket")
	var err error
	if s.saves, err = meter.Int64Counter("basket.saves",
		metric.WithDescription("Basket records written")); err != nil {
		return nil, errors.Wrap(err, "saves counter")
	}
	if s.conflicts, err = meter.Int64Counter("basket.version_conflicts",
		metric.WithDescription("Basket saves rejected because of a concurrent write")); err != nil {
		return nil, errors.Wrap(err, "conflicts counter")
	}
	if s.finalized, err = meter.Int64Counter("basket.finalized",
		metric.WithDescription("Baskets converted into orders")); err != nil {
		return nil, errors.Wrap(err, "finalized counter")
	}
	if s.unorderable, err = meter.Int64Counter("basket.unorderable_lines",
		metric.WithDescription("Unorderable lines found at checkout")); err != nil {
		return nil, errors.Wrap(err, "unorderable counter")
	}
	return s, nil
}

func (s *Service) basket(key string, shop Shop, who Participants) *Basket {
	return New(key, shop, s.env,
		WithCustomer(who.CustomerID),
		WithOrderer(who.OrdererID),
		WithCreator(who.CreatorID),
	)
}

// Create starts and stores an empty basket under a fresh key.
func (s *Service) Create(ctx context.Context, shop Shop, who Participants) (*Basket, error) {
	b := s.basket(s.newKey(), shop, who)
	if err := s.save(ctx, b); err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Basket created",
		zap.String("basket", b.Key()),
		zap.String("shop", shop.ID),
	)
	return b, nil
}

// Open returns the active basket stored under key. It fails with
// ErrNotFound for unknown, deleted and finalized keys, and with
// *ShopMismatchError or *PriceUnitMismatchError when the stored basket does
// not fit shop.
func (s *Service) Open(ctx context.Context, key string, shop Shop, who Participants) (*Basket, error) {
	b := s.basket(key, shop, who)
	active, err := b.IsActive(ctx)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNotFound
	}
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// AddProduct adds a product to b and saves it.
func (s *Service) AddProduct(ctx context.Context, b *Basket, p AddProductParams) (Line, error) {
	line, err := b.AddProduct(ctx, p)
	if err != nil {
		return Line{}, err
	}
	if err := s.save(ctx, b); err != nil {
		return Line{}, err
	}
	return line, nil
}

// UpdateLineQuantity sets the quantity of a line and saves the basket. A
// zero quantity removes the line.
func (s *Service) UpdateLineQuantity(ctx context.Context, b *Basket, lineID string, quantity decimal.Decimal) (Line, error) {
	line, found, err := b.UpdateLine(ctx, lineID, LineUpdate{Quantity: optional.Some(quantity)})
	if err != nil {
		return Line{}, err
	}
	if !found {
		return Line{}, ErrLineNotFound
	}
	if err := s.save(ctx, b); err != nil {
		return Line{}, err
	}
	return line, nil
}

// DeleteLine removes a line with its package children and saves the basket.
func (s *Service) DeleteLine(ctx context.Context, b *Basket, lineID string) error {
	found, err := b.DeleteLine(ctx, lineID)
	if err != nil {
		return err
	}
	if !found {
		return ErrLineNotFound
	}
	return s.save(ctx, b)
}

// AddCode validates and attaches a coupon code, saving the basket when it
// changed.
func (s *Service) AddCode(ctx context.Context, b *Basket, code string) (bool, error) {
	if err := s.codes.Validate(ctx, b.Shop().ID, code); err != nil {
		return false, errors.Wrapf(err, "validate code %q", code)
	}
	modified, err := b.AddCode(ctx, code)
	if err != nil || !modified {
		return false, err
	}
	return true, s.save(ctx, b)
}

// RemoveCode detaches a coupon code, saving the basket when it changed.
func (s *Service) RemoveCode(ctx context.Context, b *Basket, code string) (bool, error) {
	modified, err := b.RemoveCode(ctx, code)
	if err != nil || !modified {
		return false, err
	}
	return true, s.save(ctx, b)
}

// Checkout verifies that b can be ordered with the chosen methods, creates
// the order and finalizes the basket.
func (s *Service) Checkout(ctx context.Context, b *Basket, req CheckoutRequest) (_ *CheckoutResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "basket.Checkout",
		trace.WithAttributes(attribute.String("basket.key", b.Key())),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
		}
		span.End()
	}()

	// Stock may have moved since the partition was cached.
	b.Invalidate()
	unorderable, err := b.UnorderableLines(ctx)
	if err != nil {
		return nil, err
	}
	if len(unorderable) > 0 {
		s.unorderable.Add(ctx, int64(len(unorderable)))
		return nil, ErrUnorderableLines
	}

	count, err := b.ProductCount(ctx)
	if err != nil {
		return nil, err
	}
	if count.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrEmptyBasket
	}

	if err := s.checkMethods(ctx, b, req); err != nil {
		return nil, err
	}

	total, err := b.TotalPrice(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := b.Codes(ctx)
	if err != nil {
		return nil, err
	}

	orderID, err := s.orders.CreateOrder(ctx, b, req)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if err := b.Finalize(ctx); err != nil {
		return nil, err
	}
	s.finalized.Add(ctx, 1)

	lg := zctx.From(ctx)
	if len(codes) > 0 {
		// The order exists at this point; a failed redemption must not undo it.
		if err := s.codes.Redeem(ctx, codes); err != nil {
			lg.Warn("Redeem basket codes", zap.Strings("codes", codes), zap.Error(err))
		}
	}
	lg.Info("Basket finalized",
		zap.String("basket", b.Key()),
		zap.String("order", orderID),
		zap.Stringer("total", total),
	)
	return &CheckoutResult{OrderID: orderID, Total: total}, nil
}

func (s *Service) checkMethods(ctx context.Context, b *Basket, req CheckoutRequest) error {
	shippable, err := b.HasShippableLines(ctx)
	if err != nil {
		return err
	}
	if shippable {
		methods, err := b.AvailableShippingMethods(ctx)
		if err != nil {
			return err
		}
		if !containsMethod(methods, req.ShippingMethodID) {
			return errors.Wrapf(ErrMethodUnavailable, "shipping method %q", req.ShippingMethodID)
		}
	}

	methods, err := b.AvailablePaymentMethods(ctx)
	if err != nil {
		return err
	}
	if !containsMethod(methods, req.PaymentMethodID) {
		return errors.Wrapf(ErrMethodUnavailable, "payment method %q", req.PaymentMethodID)
	}
	return nil
}

func containsMethod(methods []Method, id string) bool {
	return slices.ContainsFunc(methods, func(m Method) bool { return m.MethodID() == id })
}

func (s *Service) save(ctx context.Context, b *Basket) error {
	err := b.Save(ctx)
	if errors.Is(err, ErrVersionConflict) {
		s.conflicts.Add(ctx, 1)
		zctx.From(ctx).Warn("Basket changed concurrently", zap.String("basket", b.Key()))
	}
	if err != nil {
		return err
	}
	s.saves.Add(ctx, 1)
	return nil
}
