package basket

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrVersionConflict is returned when the stored record changed since it
	// was loaded by this basket instance.
	ErrVersionConflict = errors.New("basket was modified concurrently")
	// ErrBasketClosed is returned when saving a deleted or finalized basket.
	ErrBasketClosed = errors.New("basket is closed")
	// ErrNotFound is returned when a basket key does not resolve to an active basket.
	ErrNotFound = errors.New("basket not found")
	// ErrLineNotFound is returned by the Service when a line id is unknown.
	ErrLineNotFound = errors.New("basket line not found")
	// ErrEmptyBasket is returned when checking out a basket without products.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrUnorderableLines is returned when checking out a basket that holds
	// lines which cannot currently be fulfilled.
	ErrUnorderableLines = errors.New("basket has unorderable lines")
	// ErrMethodUnavailable is returned when the selected shipping or payment
	// method cannot be used for the basket.
	ErrMethodUnavailable = errors.New("method is not available for basket")
)

// InvalidQuantityError indicates a non-positive quantity on add, or a
// negative quantity on update.
type InvalidQuantityError struct {
	ProductID string
	Quantity  decimal.Decimal
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %s for product %s", e.Quantity, e.ProductID)
}

// VariationParentError indicates an attempt to order a product that only
// groups variations.
type VariationParentError struct {
	ProductID string
}

func (e *VariationParentError) Error() string {
	return fmt.Sprintf("product %s is a variation parent and cannot be ordered directly", e.ProductID)
}

// ShopMismatchError indicates that the stored basket belongs to another shop.
type ShopMismatchError struct {
	Key         string
	StoredShop  string
	RequestShop string
}

func (e *ShopMismatchError) Error() string {
	return fmt.Sprintf("cannot load basket %s of shop %s into shop %s", e.Key, e.StoredShop, e.RequestShop)
}

// PriceUnitMismatchError indicates that the stored basket was priced in a
// currency or tax mode the shop no longer uses.
type PriceUnitMismatchError struct {
	Key  string
	Diff []string
}

func (e *PriceUnitMismatchError) Error() string {
	return fmt.Sprintf("basket %s: price unit mismatch with shop %v", e.Key, e.Diff)
}
