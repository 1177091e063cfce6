package basket

import (
	"context"
	"maps"
	"slices"

	"github.com/alecthomas/types/optional"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Basket is a customer's in-progress order. It is request scoped: build one
// per operation with New, mutate it and call Save. Its data is loaded from
// storage at most once per instance.
//
// A Basket is not safe for concurrent use.
type Basket struct {
	key        string
	shop       Shop
	customerID string
	ordererID  string
	creatorID  string
	env        Env
	newLineID  func() string

	data   Data
	loaded bool

	partition Partition
	cached    bool
}

// Option configures a Basket.
type Option func(*Basket)

// WithCustomer sets the customer the basket is priced and checked for.
func WithCustomer(id string) Option {
	return func(b *Basket) { b.customerID = id }
}

// WithOrderer sets the person placing the order on behalf of the customer.
func WithOrderer(id string) Option {
	return func(b *Basket) { b.ordererID = id }
}

// WithCreator sets the user that created the basket.
func WithCreator(id string) Option {
	return func(b *Basket) { b.creatorID = id }
}

// WithLineIDs overrides line id generation.
func WithLineIDs(next func() string) Option {
	return func(b *Basket) { b.newLineID = next }
}

// New returns a basket handle for key in shop. Nothing is read from
// storage until the basket data is first needed.
func New(key string, shop Shop, env Env, opts ...Option) *Basket {
	b := &Basket{
		key:       key,
		shop:      shop,
		env:       env,
		newLineID: uuid.NewString,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Key returns the basket identity.
func (b *Basket) Key() string { return b.key }

// Shop returns the shop the basket operates in.
func (b *Basket) Shop() Shop { return b.shop }

// CustomerID returns the customer reference, if any.
func (b *Basket) CustomerID() string { return b.customerID }

// OrdererID returns the orderer reference, if any.
func (b *Basket) OrdererID() string { return b.ordererID }

// CreatorID returns the creator reference, if any.
func (b *Basket) CreatorID() string { return b.creatorID }

// Load pulls the stored data unless this instance already did.
func (b *Basket) Load(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	data, err := b.env.Storage.Load(ctx, b.key, b.shop)
	if err != nil {
		return err
	}
	b.data = data
	b.loaded = true
	b.Invalidate()
	return nil
}

// Invalidate drops the cached orderability partition. Every mutation calls it.
func (b *Basket) Invalidate() {
	b.cached = false
	b.partition = Partition{}
}

// IsStored reports whether the basket has a live stored record.
func (b *Basket) IsStored(ctx context.Context) (bool, error) {
	return b.env.Storage.IsSaved(ctx, b.key)
}

// IsActive reports whether the basket is stored and neither deleted nor
// finished. Storage never surfaces closed records, so this equals IsStored.
func (b *Basket) IsActive(ctx context.Context) (bool, error) {
	return b.IsStored(ctx)
}

// AddProductParams describes a product addition.
type AddProductParams struct {
	SupplierID string
	ShopID     string
	ProductID  string
	Quantity   decimal.Decimal
	// ForceNewLine skips coalescing with an existing equal line.
	ForceNewLine bool
	Extra        Extra
	// Parent makes the line a package child of the given line.
	Parent *Line
}

// AddProduct adds quantity units of a product. Unless ForceNewLine is set,
// the units are merged into an existing line with the same product,
// supplier, shop and extra.
func (b *Basket) AddProduct(ctx context.Context, p AddProductParams) (Line, error) {
	if !p.Quantity.IsPositive() {
		return Line{}, &InvalidQuantityError{ProductID: p.ProductID, Quantity: p.Quantity}
	}
	parent, err := b.env.Catalog.IsVariationParent(ctx, p.ProductID)
	if err != nil {
		return Line{}, errors.Wrapf(err, "check product %s", p.ProductID)
	}
	if parent {
		return Line{}, &VariationParentError{ProductID: p.ProductID}
	}
	if err := b.Load(ctx); err != nil {
		return Line{}, err
	}

	idx := -1
	if !p.ForceNewLine {
		idx = slices.IndexFunc(b.data.Lines, func(l Line) bool {
			return l.Quantity.IsPositive() && l.matches(p.ProductID, p.SupplierID, p.ShopID, p.Extra)
		})
	}

	var line Line
	if idx >= 0 {
		line = b.data.Lines[idx].clone()
	} else {
		line = Line{
			ID:         b.newLineID(),
			Type:       LineTypeProduct,
			ProductID:  p.ProductID,
			SupplierID: p.SupplierID,
			ShopID:     p.ShopID,
		}
	}
	if p.Parent != nil {
		line.ParentID = optional.Some(p.Parent.ID)
	}

	quantity := decimal.Max(decimal.Zero, line.Quantity.Add(p.Quantity))
	return b.replaceLine(ctx, line, idx, optional.Some(quantity), p.Extra)
}

// AddProductWithChild adds a product and a child product as two new lines,
// the second one linked to the first.
func (b *Basket) AddProductWithChild(
	ctx context.Context,
	supplierID, shopID, productID, childProductID string,
	quantity decimal.Decimal,
) (parent, child Line, err error) {
	parent, err = b.AddProduct(ctx, AddProductParams{
		SupplierID:   supplierID,
		ShopID:       shopID,
		ProductID:    productID,
		Quantity:     quantity,
		ForceNewLine: true,
	})
	if err != nil {
		return Line{}, Line{}, err
	}
	child, err = b.AddProduct(ctx, AddProductParams{
		SupplierID:   supplierID,
		ShopID:       shopID,
		ProductID:    childProductID,
		Quantity:     quantity,
		ForceNewLine: true,
		Parent:       &parent,
	})
	if err != nil {
		return Line{}, Line{}, err
	}
	return parent, child, nil
}

// AddLine appends a non-product line such as a discount or a charge.
func (b *Basket) AddLine(ctx context.Context, line Line) (Line, error) {
	if line.IsProduct() {
		return Line{}, errors.Errorf("line %q: product lines are added with AddProduct", line.ID)
	}
	if !line.Quantity.IsPositive() {
		return Line{}, &InvalidQuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	if err := b.Load(ctx); err != nil {
		return Line{}, err
	}
	line = line.clone()
	if line.ID == "" {
		line.ID = b.newLineID()
	}
	if line.Type == "" {
		line.Type = LineTypeOther
	}
	b.data.Lines = append(b.data.Lines, line)
	b.Invalidate()
	return line.clone(), nil
}

// LineUpdate describes changes to an existing line.
type LineUpdate struct {
	Quantity optional.Option[decimal.Decimal]
	// Extra is merged into the line's extra.
	Extra Extra
}

// UpdateLine applies upd to the line with the given id, re-prices it and
// stores it back at its original position. It reports false if no such
// line exists.
func (b *Basket) UpdateLine(ctx context.Context, lineID string, upd LineUpdate) (Line, bool, error) {
	if q, ok := upd.Quantity.Get(); ok && q.IsNegative() {
		return Line{}, false, &InvalidQuantityError{Quantity: q}
	}
	if err := b.Load(ctx); err != nil {
		return Line{}, false, err
	}
	idx := b.indexOf(lineID)
	if idx < 0 {
		return Line{}, false, nil
	}
	line, err := b.replaceLine(ctx, b.data.Lines[idx].clone(), idx, upd.Quantity, upd.Extra)
	if err != nil {
		return Line{}, true, err
	}
	return line, true, nil
}

// replaceLine applies quantity and extra to line, prices it and writes it at
// idx, or appends it when idx is negative. The basket is untouched on error.
func (b *Basket) replaceLine(
	ctx context.Context,
	line Line,
	idx int,
	quantity optional.Option[decimal.Decimal],
	extra Extra,
) (Line, error) {
	if q, ok := quantity.Get(); ok {
		line.Quantity = q
	}
	if len(extra) > 0 {
		if line.Extra == nil {
			line.Extra = make(Extra, len(extra))
		}
		maps.Copy(line.Extra, extra)
	}
	if b.env.Pricer != nil && line.IsProduct() {
		pc := PricingContext{Shop: b.shop, CustomerID: b.customerID}
		if err := b.env.Pricer.Annotate(ctx, &line, pc); err != nil {
			return Line{}, errors.Wrapf(err, "price line %s", line.ID)
		}
	}

	if idx < 0 {
		b.data.Lines = append(b.data.Lines, line)
	} else {
		b.data.Lines[idx] = line
	}
	b.Invalidate()
	return line.clone(), nil
}

// DeleteLine zeroes the line and every package child of it. It reports
// false if no such line exists.
func (b *Basket) DeleteLine(ctx context.Context, lineID string) (bool, error) {
	if err := b.Load(ctx); err != nil {
		return false, err
	}
	idx := b.indexOf(lineID)
	if idx < 0 {
		return false, nil
	}
	for i := range b.data.Lines {
		if i == idx || b.data.Lines[i].IsChildOf(lineID) {
			b.data.Lines[i].Quantity = decimal.Zero
		}
	}
	b.Invalidate()
	return true, nil
}

// CleanEmptyLines drops every line with a non-positive quantity.
func (b *Basket) CleanEmptyLines(ctx context.Context) error {
	if err := b.Load(ctx); err != nil {
		return err
	}
	n := len(b.data.Lines)
	b.data.Lines = slices.DeleteFunc(b.data.Lines, func(l Line) bool {
		return !l.Quantity.IsPositive()
	})
	if len(b.data.Lines) != n {
		b.Invalidate()
	}
	return nil
}

// ClearAll drops all lines and codes.
func (b *Basket) ClearAll(ctx context.Context) error {
	if err := b.Load(ctx); err != nil {
		return err
	}
	b.data = Data{Version: b.data.Version}
	b.Invalidate()
	return nil
}

// FindLine returns a copy of the line with the given id, whatever its
// orderability.
func (b *Basket) FindLine(ctx context.Context, lineID string) (Line, bool, error) {
	if err := b.Load(ctx); err != nil {
		return Line{}, false, err
	}
	idx := b.indexOf(lineID)
	if idx < 0 {
		return Line{}, false, nil
	}
	return b.data.Lines[idx].clone(), true, nil
}

// AllLines returns every stored line, including empty and unorderable ones.
func (b *Basket) AllLines(ctx context.Context) ([]Line, error) {
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return cloneLines(b.data.Lines), nil
}

func (b *Basket) indexOf(lineID string) int {
	return slices.IndexFunc(b.data.Lines, func(l Line) bool { return l.ID == lineID })
}

func (b *Basket) resolve(ctx context.Context) (Partition, error) {
	if err := b.Load(ctx); err != nil {
		return Partition{}, err
	}
	if b.cached {
		return b.partition, nil
	}
	p, err := Resolve(ctx, b.env.Catalog, b.customerID, b.data.Lines)
	if err != nil {
		return Partition{}, err
	}
	b.partition = p
	b.cached = true
	return p, nil
}

// Lines returns the lines that can currently be ordered.
func (b *Basket) Lines(ctx context.Context) ([]Line, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return cloneLines(p.Orderable), nil
}

// UnorderableLines returns the lines that cannot currently be ordered.
func (b *Basket) UnorderableLines(ctx context.Context) ([]Line, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return cloneLines(p.Unorderable), nil
}

// IsEmpty reports whether the basket has no orderable lines.
func (b *Basket) IsEmpty(ctx context.Context) (bool, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return false, err
	}
	return len(p.Orderable) == 0, nil
}

// Orderable reports whether the orderable lines hold any quantity at all.
func (b *Basket) Orderable(ctx context.Context) (bool, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return false, err
	}
	sum := decimal.Zero
	for _, l := range p.Orderable {
		sum = sum.Add(l.Quantity)
	}
	return sum.IsPositive(), nil
}

// ProductQuantities returns the total reserved quantity per concrete
// product, package children included, over orderable lines.
func (b *Basket) ProductQuantities(ctx context.Context) (map[string]decimal.Decimal, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return nil, err
	}
	q := make(reservations)
	for _, l := range p.Orderable {
		if !l.IsProduct() {
			continue
		}
		children, err := b.env.Catalog.PackageChildren(ctx, l.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "package children of %s", l.ProductID)
		}
		for childID, ratio := range children {
			q.add(childID, l.Quantity.Mul(ratio))
		}
		q.add(l.ProductID, l.Quantity)
	}
	return q, nil
}

// ProductIDs returns the sorted distinct product ids of orderable lines.
func (b *Basket) ProductIDs(ctx context.Context) ([]string, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return productIDs(p.Orderable), nil
}

func productIDs(lines []Line) []string {
	var ids []string
	for _, l := range lines {
		if l.IsProduct() {
			ids = append(ids, l.ProductID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// ProductCount is the summed quantity of orderable product lines.
func (b *Basket) ProductCount(ctx context.Context) (decimal.Decimal, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return productCount(p.Orderable), nil
}

func productCount(lines []Line) decimal.Decimal {
	n := decimal.Zero
	for _, l := range lines {
		if l.IsProduct() {
			n = n.Add(l.Quantity)
		}
	}
	return n
}

// TotalPrice is the summed line total of orderable lines, in the shop's
// price unit.
func (b *Basket) TotalPrice(ctx context.Context) (decimal.Decimal, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return totalPrice(p.Orderable), nil
}

func totalPrice(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

// TotalWeight is the summed weight of orderable lines.
func (b *Basket) TotalWeight(ctx context.Context) (decimal.Decimal, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	w := decimal.Zero
	for _, l := range p.Orderable {
		w = w.Add(l.Weight.Mul(l.Quantity))
	}
	return w, nil
}

// HasShippableLines reports whether any orderable line needs shipping.
func (b *Basket) HasShippableLines(ctx context.Context) (bool, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(p.Orderable, func(l Line) bool { return l.Shippable }), nil
}

// AvailableShippingMethods returns the shipping methods offered for the
// basket's products that accept this basket.
func (b *Basket) AvailableShippingMethods(ctx context.Context) ([]Method, error) {
	return b.availableMethods(ctx, MethodShipping)
}

// AvailablePaymentMethods returns the payment methods offered for the
// basket's products that accept this basket.
func (b *Basket) AvailablePaymentMethods(ctx context.Context) ([]Method, error) {
	return b.availableMethods(ctx, MethodPayment)
}

func (b *Basket) availableMethods(ctx context.Context, kind MethodKind) ([]Method, error) {
	ids, err := b.ProductIDs(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := b.env.Methods.Available(ctx, kind, b.shop.ID, ids)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s methods", kind)
	}
	var out []Method
	for _, m := range candidates {
		ok, err := m.IsAvailableFor(ctx, b)
		if err != nil {
			return nil, errors.Wrapf(err, "check %s method %s", kind, m.MethodID())
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// AddCode attaches a coupon code. It reports whether the basket changed.
func (b *Basket) AddCode(ctx context.Context, code string) (bool, error) {
	if err := b.Load(ctx); err != nil {
		return false, err
	}
	return b.data.Codes.Add(code), nil
}

// RemoveCode detaches a coupon code. It reports whether the basket changed.
func (b *Basket) RemoveCode(ctx context.Context, code string) (bool, error) {
	if err := b.Load(ctx); err != nil {
		return false, err
	}
	return b.data.Codes.Remove(code), nil
}

// ClearCodes detaches all coupon codes. It reports whether the basket changed.
func (b *Basket) ClearCodes(ctx context.Context) (bool, error) {
	if err := b.Load(ctx); err != nil {
		return false, err
	}
	return b.data.Codes.Clear(), nil
}

// Codes returns the attached coupon codes in insertion order.
func (b *Basket) Codes(ctx context.Context) ([]string, error) {
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b.data.Codes.List(), nil
}

// Save drops empty lines and writes the basket to storage.
func (b *Basket) Save(ctx context.Context) error {
	if err := b.CleanEmptyLines(ctx); err != nil {
		return err
	}
	rec, err := b.record(ctx)
	if err != nil {
		return err
	}
	version, err := b.env.Storage.Save(ctx, rec)
	if err != nil {
		return err
	}
	b.data.Version = version
	return nil
}

func (b *Basket) record(ctx context.Context) (StoredRecord, error) {
	p, err := b.resolve(ctx)
	if err != nil {
		return StoredRecord{}, err
	}
	rec := StoredRecord{
		Key:              b.key,
		ShopID:           b.shop.ID,
		Currency:         b.shop.Currency,
		PricesIncludeTax: b.shop.PricesIncludeTax,
		Data:             EncodeData(b.data),
		ProductCount:     productCount(p.Orderable),
		ProductIDs:       productIDs(p.Orderable),
		CustomerID:       b.customerID,
		OrdererID:        b.ordererID,
		CreatorID:        b.creatorID,
		Version:          b.data.Version,
	}
	total := decimal.NullDecimal{Decimal: totalPrice(p.Orderable), Valid: true}
	if b.shop.PricesIncludeTax {
		rec.TaxfulTotalPrice = total
	} else {
		rec.TaxlessTotalPrice = total
	}
	return rec, nil
}

// Delete soft-deletes the stored basket and forgets the loaded data.
func (b *Basket) Delete(ctx context.Context) error {
	if err := b.env.Storage.Delete(ctx, b.key); err != nil {
		return err
	}
	b.reset()
	return nil
}

// Finalize closes the stored basket for good, typically after an order was
// created from it, and forgets the loaded data.
func (b *Basket) Finalize(ctx context.Context) error {
	if err := b.env.Storage.Finalize(ctx, b.key); err != nil {
		return err
	}
	b.reset()
	return nil
}

func (b *Basket) reset() {
	b.data = Data{}
	b.loaded = false
	b.Invalidate()
}
