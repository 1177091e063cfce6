package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-basket/internal/domain/product"
)

const (
	productColumns = `id, sku, name, price, weight, shippable, purchasable, variation_parent,
		minimum_quantity, purchase_multiple`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	getStockSQL = `SELECT product_id, supplier_id, quantity, unlimited
		FROM product_stock WHERE product_id = $1 AND supplier_id = $2`

	getComponentsSQL = `SELECT child_id, quantity
		FROM product_packages WHERE parent_id = $1 ORDER BY child_id`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku, name = EXCLUDED.name, price = EXCLUDED.price,
			weight = EXCLUDED.weight, shippable = EXCLUDED.shippable,
			purchasable = EXCLUDED.purchasable, variation_parent = EXCLUDED.variation_parent,
			minimum_quantity = EXCLUDED.minimum_quantity, purchase_multiple = EXCLUDED.purchase_multiple`

	upsertStockSQL = `INSERT INTO product_stock (product_id, supplier_id, quantity, unlimited)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, supplier_id) DO UPDATE SET
			quantity = EXCLUDED.quantity, unlimited = EXCLUDED.unlimited`

	deleteComponentsSQL = `DELETE FROM product_packages WHERE parent_id = $1`

	insertComponentSQL = `INSERT INTO product_packages (parent_id, child_id, quantity) VALUES ($1, $2, $3)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Stock returns the stock a supplier holds of a product.
func (r *ProductRepository) Stock(ctx context.Context, productID, supplierID string) (*product.Stock, error) {
	rows, err := r.pool.Query(ctx, getStockSQL, productID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("getting stock of %q at %q: %w", productID, supplierID, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (product.Stock, error) {
		var s product.Stock
		err := row.Scan(&s.ProductID, &s.SupplierID, &s.Quantity, &s.Unlimited)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting stock of %q at %q: %w", productID, supplierID, err)
	}
	return &s, nil
}

// Components returns the children of a package product.
func (r *ProductRepository) Components(ctx context.Context, productID string) ([]product.Component, error) {
	rows, err := r.pool.Query(ctx, getComponentsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("getting components of %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Component, error) {
		var c product.Component
		err := row.Scan(&c.ChildID, &c.Quantity)
		return c, err
	})
}

// Upsert creates or replaces a product.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.SKU, p.Name, p.Price, p.Weight, p.Shippable, p.Purchasable, p.VariationParent,
		p.MinimumQuantity, p.PurchaseMultiple,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// SetStock creates or replaces a supplier's stock of a product.
func (r *ProductRepository) SetStock(ctx context.Context, s product.Stock) error {
	_, err := r.pool.Exec(ctx, upsertStockSQL, s.ProductID, s.SupplierID, s.Quantity, s.Unlimited)
	if err != nil {
		return fmt.Errorf("setting stock of %q at %q: %w", s.ProductID, s.SupplierID, err)
	}
	return nil
}

// SetComponents replaces the package composition of a product in one
// transaction. An empty list turns the product into an ordinary one.
func (r *ProductRepository) SetComponents(ctx context.Context, productID string, components []product.Component) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteComponentsSQL, productID); err != nil {
			return fmt.Errorf("clearing components of %q: %w", productID, err)
		}
		if len(components) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, c := range components {
			batch.Queue(insertComponentSQL, productID, c.ChildID, c.Quantity)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting components of %q: %w", productID, err)
		}
		return nil
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Price, &p.Weight, &p.Shippable, &p.Purchasable,
		&p.VariationParent, &p.MinimumQuantity, &p.PurchaseMultiple,
	)
	return p, err
}
