package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-basket/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders (id, basket_key, shop, currency, customer, orderer,
	items, total, codes, shipping_method_id, payment_method_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.BasketKey, o.ShopID, o.Currency, o.CustomerID, o.OrdererID,
		encodeItems(o.Items), o.Total, nonNil(o.Codes),
		o.ShippingMethodID, o.PaymentMethodID, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func encodeItems(items []order.Item) []byte {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			e.Obj(func(e *jx.Encoder) {
				e.Field("line_id", func(e *jx.Encoder) { e.Str(it.LineID) })
				if it.ParentLineID != "" {
					e.Field("parent_line_id", func(e *jx.Encoder) { e.Str(it.ParentLineID) })
				}
				e.Field("type", func(e *jx.Encoder) { e.Str(it.Type) })
				e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
				e.Field("supplier_id", func(e *jx.Encoder) { e.Str(it.SupplierID) })
				e.Field("text", func(e *jx.Encoder) { e.Str(it.Text) })
				e.Field("quantity", func(e *jx.Encoder) { e.Str(it.Quantity.String()) })
				e.Field("unit_price", func(e *jx.Encoder) { e.Str(it.UnitPrice.String()) })
				e.Field("discount_amount", func(e *jx.Encoder) { e.Str(it.DiscountAmount.String()) })
			})
		}
	})
	return e.Bytes()
}
