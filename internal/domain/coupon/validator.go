package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

var _ basket.CodeValidator = (*RepoValidator)(nil)

// RepoValidator checks basket codes against coupon rules from a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for code and checks that it applies to
// the shop, is inside its validity window and has uses left.
func (v *RepoValidator) Validate(ctx context.Context, shopID, code string) error {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return ErrInvalidCoupon
		}
		return errors.Wrap(err, "lookup coupon")
	}

	if rule.ShopID != "" && rule.ShopID != shopID {
		return ErrInvalidCoupon
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return ErrCouponExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return ErrCouponUsageLimitReached
	}
	return nil
}

// Redeem counts one use of every code. It stops at the first failure.
func (v *RepoValidator) Redeem(ctx context.Context, codes []string) error {
	for _, code := range codes {
		if err := v.repo.IncrementUses(ctx, code); err != nil {
			return errors.Wrapf(err, "increment uses of %q", code)
		}
	}
	return nil
}
