package basket

import (
	"context"

	"github.com/shopspring/decimal"
)

// Shop is the pricing configuration a basket operates under.
type Shop struct {
	ID               string
	Currency         string
	PricesIncludeTax bool
}

// Catalog answers the product questions the basket needs: availability,
// package composition and whether a product is a variation parent.
type Catalog interface {
	IsOrderable(ctx context.Context, productID, supplierID, customerID string, quantity decimal.Decimal) (bool, error)
	// PackageChildren returns child product id -> units per parent unit.
	// A product with no children is not a package parent.
	PackageChildren(ctx context.Context, productID string) (map[string]decimal.Decimal, error)
	IsVariationParent(ctx context.Context, productID string) (bool, error)
}

// PricingContext identifies who is buying where.
type PricingContext struct {
	Shop       Shop
	CustomerID string
}

// Pricer annotates a line with unit price, discount, weight and shipping
// information.
type Pricer interface {
	Annotate(ctx context.Context, line *Line, pc PricingContext) error
}

// MethodKind selects shipping or payment methods.
type MethodKind string

const (
	MethodShipping MethodKind = "shipping"
	MethodPayment  MethodKind = "payment"
)

// Method is a shipping or payment method with its own eligibility predicate.
type Method interface {
	MethodID() string
	IsAvailableFor(ctx context.Context, b *Basket) (bool, error)
}

// MethodProvider lists the methods a shop offers for a set of products.
type MethodProvider interface {
	Available(ctx context.Context, kind MethodKind, shopID string, productIDs []string) ([]Method, error)
}

// SourceValidator yields validation errors of the generic order source
// (addresses, limits, campaigns). It may be nil.
type SourceValidator interface {
	Validate(ctx context.Context, b *Basket) ([]ValidationError, error)
}

// Env bundles the collaborators a Basket depends on.
type Env struct {
	Storage   *Storage
	Catalog   Catalog
	Pricer    Pricer
	Methods   MethodProvider
	Validator SourceValidator
}
