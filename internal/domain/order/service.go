package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

// ErrEmptyItems is returned when the basket has no orderable lines.
var ErrEmptyItems = fmt.Errorf("items required")

var _ basket.OrderCreator = (*Service)(nil)

// Service turns baskets into stored orders.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service that persists to orders.
func NewService(orders Repository) *Service {
	return &Service{orders: orders, now: time.Now}
}

// CreateOrder snapshots the orderable lines, total and codes of b together
// with the chosen methods and persists them as a new order.
func (s *Service) CreateOrder(ctx context.Context, b *basket.Basket, req basket.CheckoutRequest) (string, error) {
	lines, err := b.Lines(ctx)
	if err != nil {
		return "", fmt.Errorf("get lines: %w", err)
	}
	if len(lines) == 0 {
		return "", ErrEmptyItems
	}
	total, err := b.TotalPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("get total: %w", err)
	}
	codes, err := b.Codes(ctx)
	if err != nil {
		return "", fmt.Errorf("get codes: %w", err)
	}

	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			LineID:         l.ID,
			ParentLineID:   l.ParentID.Default(""),
			Type:           string(l.Type),
			ProductID:      l.ProductID,
			SupplierID:     l.SupplierID,
			Text:           l.Text,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			DiscountAmount: l.DiscountAmount,
		}
	}

	shop := b.Shop()
	o := &Order{
		ID:               uuid.New().String(),
		BasketKey:        b.Key(),
		ShopID:           shop.ID,
		Currency:         shop.Currency,
		CustomerID:       b.CustomerID(),
		OrdererID:        b.OrdererID(),
		Items:            items,
		Total:            total,
		Codes:            codes,
		ShippingMethodID: req.ShippingMethodID,
		PaymentMethodID:  req.PaymentMethodID,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return o.ID, nil
}
