package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-basket/internal/domain/basket"
	"github.com/xenking/kart-basket/internal/domain/method"
)

const (
	listMethodsSQL = `SELECT m.id, m.kind, m.shop, m.name, m.enabled, m.max_weight, m.min_total,
		COALESCE(array_agg(e.product_id ORDER BY e.product_id) FILTER (WHERE e.product_id IS NOT NULL), '{}')
		FROM methods m
		LEFT JOIN method_excluded_products e ON e.method_id = m.id
		WHERE m.shop = $1 AND m.kind = $2
		GROUP BY m.id
		ORDER BY m.id`

	upsertMethodSQL = `INSERT INTO methods (id, kind, shop, name, enabled, max_weight, min_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, shop = EXCLUDED.shop, name = EXCLUDED.name,
			enabled = EXCLUDED.enabled, max_weight = EXCLUDED.max_weight, min_total = EXCLUDED.min_total`

	deleteMethodExclusionsSQL = `DELETE FROM method_excluded_products WHERE method_id = $1`

	insertMethodExclusionsSQL = `INSERT INTO method_excluded_products (method_id, product_id)
		SELECT $1, unnest($2::text[])`
)

var _ method.Repository = (*MethodRepository)(nil)

// MethodRepository implements method.Repository backed by PostgreSQL.
type MethodRepository struct {
	pool *pgxpool.Pool
}

// NewMethodRepository returns a MethodRepository that uses the given pool.
func NewMethodRepository(pool *pgxpool.Pool) *MethodRepository {
	return &MethodRepository{pool: pool}
}

// ListByShop returns the methods of one kind offered by a shop, including
// disabled ones.
func (r *MethodRepository) ListByShop(ctx context.Context, shopID string, kind basket.MethodKind) ([]method.Method, error) {
	rows, err := r.pool.Query(ctx, listMethodsSQL, shopID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing %s methods of shop %q: %w", kind, shopID, err)
	}
	return pgx.CollectRows(rows, scanMethod)
}

// Upsert creates or replaces a method together with its product exclusions.
func (r *MethodRepository) Upsert(ctx context.Context, m method.Method) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertMethodSQL,
			m.ID, string(m.Kind), m.ShopID, m.Name, m.Enabled, m.MaxWeight, m.MinTotal,
		); err != nil {
			return fmt.Errorf("upserting method %q: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx, deleteMethodExclusionsSQL, m.ID); err != nil {
			return fmt.Errorf("clearing exclusions of method %q: %w", m.ID, err)
		}
		if len(m.ExcludedProductIDs) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, insertMethodExclusionsSQL, m.ID, m.ExcludedProductIDs); err != nil {
			return fmt.Errorf("inserting exclusions of method %q: %w", m.ID, err)
		}
		return nil
	})
}

func scanMethod(row pgx.CollectableRow) (method.Method, error) {
	var (
		m    method.Method
		kind string
	)
	err := row.Scan(&m.ID, &kind, &m.ShopID, &m.Name, &m.Enabled, &m.MaxWeight, &m.MinTotal, &m.ExcludedProductIDs)
	m.Kind = basket.MethodKind(kind)
	return m, err
}
