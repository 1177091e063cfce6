package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

var (
	_ basket.Catalog = (*Catalog)(nil)
	_ basket.Pricer  = (*Catalog)(nil)
)

// DefaultCacheTTL is how long product metadata is reused before it is read
// again from the repository.
const DefaultCacheTTL = time.Minute

// Catalog answers the basket's product questions from a Repository. Product
// metadata and package composition are cached; stock is always read fresh.
type Catalog struct {
	repo       Repository
	products   *ttlcache.Cache[string, Product]
	components *ttlcache.Cache[string, map[string]decimal.Decimal]
}

// CatalogOption configures a Catalog.
type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	ttl time.Duration
}

// WithCacheTTL sets the metadata cache TTL.
func WithCacheTTL(d time.Duration) CatalogOption {
	return func(o *catalogOptions) { o.ttl = d }
}

// NewCatalog creates a Catalog over repo.
func NewCatalog(repo Repository, opts ...CatalogOption) *Catalog {
	o := catalogOptions{ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &Catalog{
		repo: repo,
		products: ttlcache.New[string, Product](
			ttlcache.WithTTL[string, Product](o.ttl),
			ttlcache.WithDisableTouchOnHit[string, Product](),
		),
		components: ttlcache.New[string, map[string]decimal.Decimal](
			ttlcache.WithTTL[string, map[string]decimal.Decimal](o.ttl),
			ttlcache.WithDisableTouchOnHit[string, map[string]decimal.Decimal](),
		),
	}
}

// Warm loads every product into the cache.
func (c *Catalog) Warm(ctx context.Context) (int, error) {
	products, err := c.repo.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list products")
	}
	for _, p := range products {
		c.products.Set(p.ID, p, ttlcache.DefaultTTL)
	}
	return len(products), nil
}

// Invalidate drops the cached metadata of a product.
func (c *Catalog) Invalidate(productID string) {
	c.products.Delete(productID)
	c.components.Delete(productID)
}

// Product returns the product with the given id.
func (c *Catalog) Product(ctx context.Context, id string) (Product, error) {
	if item := c.products.Get(id); item != nil {
		return item.Value(), nil
	}
	p, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	c.products.Set(id, *p, ttlcache.DefaultTTL)
	return *p, nil
}

// IsOrderable reports whether supplierID can deliver quantity units of the
// product. Unknown products and suppliers without the product are not
// orderable.
func (c *Catalog) IsOrderable(
	ctx context.Context,
	productID, supplierID, _ string,
	quantity decimal.Decimal,
) (bool, error) {
	p, err := c.Product(ctx, productID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "get product %s", productID)
	}
	if !p.Purchasable || p.VariationParent {
		return false, nil
	}
	if quantity.LessThan(p.MinimumQuantity) {
		return false, nil
	}
	if p.PurchaseMultiple.IsPositive() && !quantity.Mod(p.PurchaseMultiple).IsZero() {
		return false, nil
	}

	stock, err := c.repo.Stock(ctx, productID, supplierID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "get stock of %s at %s", productID, supplierID)
	}
	return stock.Unlimited || quantity.LessThanOrEqual(stock.Quantity), nil
}

// PackageChildren returns the child quantities per unit of a package
// product, or nil for ordinary products.
func (c *Catalog) PackageChildren(ctx context.Context, productID string) (map[string]decimal.Decimal, error) {
	if item := c.components.Get(productID); item != nil {
		return item.Value(), nil
	}
	components, err := c.repo.Components(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "get components of %s", productID)
	}
	var children map[string]decimal.Decimal
	if len(components) > 0 {
		children = make(map[string]decimal.Decimal, len(components))
		for _, comp := range components {
			children[comp.ChildID] = comp.Quantity
		}
	}
	c.components.Set(productID, children, ttlcache.DefaultTTL)
	return children, nil
}

// IsVariationParent reports whether the product only groups variations.
func (c *Catalog) IsVariationParent(ctx context.Context, productID string) (bool, error) {
	p, err := c.Product(ctx, productID)
	if err != nil {
		return false, err
	}
	return p.VariationParent, nil
}

// Annotate writes the product's name, unit price, weight and shipping
// requirement onto a product line.
func (c *Catalog) Annotate(ctx context.Context, line *basket.Line, _ basket.PricingContext) error {
	p, err := c.Product(ctx, line.ProductID)
	if err != nil {
		return err
	}
	line.Text = p.Name
	line.UnitPrice = p.Price
	line.Weight = p.Weight
	line.Shippable = p.Shippable
	return nil
}
