package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found, inactive
	// or belongs to another shop.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Rule defines a coupon code's eligibility constraints.
type Rule struct {
	Code string
	// ShopID restricts the code to one shop; empty means every shop.
	ShopID      string
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int
	Uses        int
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	// FindByCode returns ErrInvalidCoupon when no active coupon matches.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
