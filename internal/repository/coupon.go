package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-basket/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, shop, description, valid_from, valid_until, max_uses, uses
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`

	createCouponStagingSQL = `CREATE TEMP TABLE coupon_staging
		(LIKE coupons INCLUDING DEFAULTS) ON COMMIT DROP`

	mergeCouponStagingSQL = `INSERT INTO coupons (code, shop, description, active, valid_from, valid_until, max_uses)
		SELECT code, shop, description, active, valid_from, valid_until, max_uses FROM coupon_staging
		ON CONFLICT (code) DO UPDATE SET
			shop = EXCLUDED.shop, description = EXCLUDED.description, active = EXCLUDED.active,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given coupon code.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	return nil
}

// BulkUpsert copies rules into a staging table and merges them into coupons
// in one transaction. Existing use counters are kept.
func (r *CouponRepository) BulkUpsert(ctx context.Context, rules []coupon.Rule) (int64, error) {
	var merged int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createCouponStagingSQL); err != nil {
			return fmt.Errorf("creating coupon staging table: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"coupon_staging"},
			[]string{"code", "shop", "description", "active", "valid_from", "valid_until", "max_uses"},
			pgx.CopyFromSlice(len(rules), func(i int) ([]any, error) {
				rule := rules[i]
				return []any{
					rule.Code, rule.ShopID, rule.Description, true,
					rule.ValidFrom, rule.ValidUntil, int32(rule.MaxUses),
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying coupons: %w", err)
		}

		tag, err := tx.Exec(ctx, mergeCouponStagingSQL)
		if err != nil {
			return fmt.Errorf("merging coupons: %w", err)
		}
		merged = tag.RowsAffected()
		return nil
	})
	return merged, err
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule       coupon.Rule
		validFrom  *time.Time
		validUntil *time.Time
		maxUses    int32
		uses       int32
	)
	err := row.Scan(
		&rule.Code, &rule.ShopID, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses,
	)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
