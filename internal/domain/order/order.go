package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a basket converted at checkout.
type Order struct {
	ID               string
	BasketKey        string
	ShopID           string
	Currency         string
	CustomerID       string
	OrdererID        string
	Items            []Item
	Total            decimal.Decimal
	Codes            []string
	ShippingMethodID string
	PaymentMethodID  string
	CreatedAt        time.Time
}

// Item is one ordered basket line.
type Item struct {
	LineID         string
	ParentLineID   string
	Type           string
	ProductID      string
	SupplierID     string
	Text           string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
