package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID   string
	SKU  string
	Name string
	// Price is the unit price in the shop's price unit.
	Price     decimal.Decimal
	Weight    decimal.Decimal
	Shippable bool
	// Purchasable is false for products that are listed but cannot be ordered.
	Purchasable bool
	// VariationParent products only group variations and are never ordered.
	VariationParent bool
	MinimumQuantity decimal.Decimal
	// PurchaseMultiple, when positive, is the step orders must come in.
	PurchaseMultiple decimal.Decimal
}

// Stock is the quantity a supplier holds of a product.
type Stock struct {
	ProductID  string
	SupplierID string
	Quantity   decimal.Decimal
	// Unlimited suppliers do not track stock for the product.
	Unlimited bool
}

// Component is one child of a package product.
type Component struct {
	ChildID string
	// Quantity of the child per unit of the package.
	Quantity decimal.Decimal
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// Stock returns ErrNotFound when the supplier does not carry the product.
	Stock(ctx context.Context, productID, supplierID string) (*Stock, error)
	Components(ctx context.Context, productID string) ([]Component, error)
}
