package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

const (
	basketColumns = `key, shop, currency, prices_include_tax, data,
		taxless_total_price, taxful_total_price, product_count, product_ids,
		customer, orderer, creator, deleted, finished, version, updated_at`

	getBasketSQL = `SELECT ` + basketColumns + `
		FROM baskets WHERE key = $1 AND NOT deleted`

	insertBasketSQL = `INSERT INTO baskets (key, shop, currency, prices_include_tax, data,
		taxless_total_price, taxful_total_price, product_count, product_ids,
		customer, orderer, creator)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (key) DO NOTHING
		RETURNING version`

	updateBasketSQL = `UPDATE baskets SET
		shop = $2, currency = $3, prices_include_tax = $4, data = $5,
		taxless_total_price = $6, taxful_total_price = $7, product_count = $8, product_ids = $9,
		customer = $10, orderer = $11, creator = $12,
		version = version + 1, updated_at = now()
		WHERE key = $1 AND version = $13 AND NOT deleted
		RETURNING version`

	basketDeletedSQL = `SELECT deleted FROM baskets WHERE key = $1`

	closeBasketSQL = `UPDATE baskets SET deleted = TRUE, finished = $2, updated_at = now()
		WHERE key = $1 AND NOT deleted`

	deleteStaleBasketsSQL = `UPDATE baskets SET deleted = TRUE
		WHERE key IN (
			SELECT key FROM baskets
			WHERE NOT deleted AND updated_at < $1
			ORDER BY updated_at
			LIMIT NULLIF($2::int, 0)
			FOR UPDATE SKIP LOCKED
		)`
)

var _ basket.RecordStore = (*BasketRepository)(nil)

// BasketRepository implements basket.RecordStore backed by PostgreSQL.
type BasketRepository struct {
	pool *pgxpool.Pool
}

// NewBasketRepository returns a BasketRepository that uses the given pool.
func NewBasketRepository(pool *pgxpool.Pool) *BasketRepository {
	return &BasketRepository{pool: pool}
}

// Get returns the live record stored under key.
func (r *BasketRepository) Get(ctx context.Context, key string) (basket.StoredRecord, bool, error) {
	rows, err := r.pool.Query(ctx, getBasketSQL, key)
	if err != nil {
		return basket.StoredRecord{}, false, fmt.Errorf("getting basket %q: %w", key, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanBasket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return basket.StoredRecord{}, false, nil
		}
		return basket.StoredRecord{}, false, fmt.Errorf("getting basket %q: %w", key, err)
	}
	return rec, true, nil
}

// Put inserts the record when rec.Version is zero and otherwise updates the
// live record that still carries rec.Version.
func (r *BasketRepository) Put(ctx context.Context, rec basket.StoredRecord) (int64, error) {
	args := []any{
		rec.Key, rec.ShopID, rec.Currency, rec.PricesIncludeTax, rec.Data,
		rec.TaxlessTotalPrice, rec.TaxfulTotalPrice, rec.ProductCount, nonNil(rec.ProductIDs),
		rec.CustomerID, rec.OrdererID, rec.CreatorID,
	}
	query := insertBasketSQL
	if rec.Version != 0 {
		query = updateBasketSQL
		args = append(args, rec.Version)
	}

	var version int64
	err := r.pool.QueryRow(ctx, query, args...).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("putting basket %q: %w", rec.Key, err)
	}
	return 0, r.rejection(ctx, rec.Key)
}

// rejection explains why a write to key matched no row.
func (r *BasketRepository) rejection(ctx context.Context, key string) error {
	var deleted bool
	err := r.pool.QueryRow(ctx, basketDeletedSQL, key).Scan(&deleted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return basket.ErrVersionConflict
	case err != nil:
		return fmt.Errorf("checking basket %q: %w", key, err)
	case deleted:
		return basket.ErrBasketClosed
	default:
		return basket.ErrVersionConflict
	}
}

// Close marks the live record of key deleted, and finished when finish is set.
func (r *BasketRepository) Close(ctx context.Context, key string, finish bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, closeBasketSQL, key, finish)
	if err != nil {
		return false, fmt.Errorf("closing basket %q: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteStale soft-deletes up to limit live records not updated since before,
// oldest first. A non-positive limit removes every stale record.
func (r *BasketRepository) DeleteStale(ctx context.Context, before time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, deleteStaleBasketsSQL, before, max(limit, 0))
	if err != nil {
		return 0, fmt.Errorf("deleting stale baskets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanBasket(row pgx.CollectableRow) (basket.StoredRecord, error) {
	var rec basket.StoredRecord
	err := row.Scan(
		&rec.Key, &rec.ShopID, &rec.Currency, &rec.PricesIncludeTax, &rec.Data,
		&rec.TaxlessTotalPrice, &rec.TaxfulTotalPrice, &rec.ProductCount, &rec.ProductIDs,
		&rec.CustomerID, &rec.OrdererID, &rec.CreatorID, &rec.Deleted, &rec.Finished,
		&rec.Version, &rec.UpdatedAt,
	)
	return rec, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
