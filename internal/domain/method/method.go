// Package method provides the shipping and payment methods a basket can be
// checked out with.
package method

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

var _ basket.Method = Method{}

// Method is a shipping or payment method offered by a shop.
type Method struct {
	ID      string
	Kind    basket.MethodKind
	ShopID  string
	Name    string
	Enabled bool
	// MaxWeight limits the total basket weight; zero means no limit.
	MaxWeight decimal.Decimal
	// MinTotal is the smallest basket total the method accepts.
	MinTotal decimal.Decimal
	// ExcludedProductIDs cannot be delivered or paid with this method.
	ExcludedProductIDs []string
}

// Repository lists the methods of a shop.
type Repository interface {
	ListByShop(ctx context.Context, shopID string, kind basket.MethodKind) ([]Method, error)
}

// MethodID returns the method identifier.
func (m Method) MethodID() string { return m.ID }

// IsAvailableFor checks the basket's weight and total against the method
// limits.
func (m Method) IsAvailableFor(ctx context.Context, b *basket.Basket) (bool, error) {
	if m.MaxWeight.IsPositive() {
		weight, err := b.TotalWeight(ctx)
		if err != nil {
			return false, errors.Wrap(err, "total weight")
		}
		if weight.GreaterThan(m.MaxWeight) {
			return false, nil
		}
	}
	if m.MinTotal.IsPositive() {
		total, err := b.TotalPrice(ctx)
		if err != nil {
			return false, errors.Wrap(err, "total price")
		}
		if total.LessThan(m.MinTotal) {
			return false, nil
		}
	}
	return true, nil
}
