package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// --- Mock implementations ---

type mockCatalog struct {
	// limits caps the orderable quantity per product; absent means unlimited.
	limits     map[string]decimal.Decimal
	packages   map[string]map[string]decimal.Decimal
	variations map[string]bool
	err        error
	queries    []string
}

func (m *mockCatalog) IsOrderable(_ context.Context, productID, _, _ string, quantity decimal.Decimal) (bool, error) {
	m.queries = append(m.queries, productID+"="+quantity.String())
	if m.err != nil {
		return false, m.err
	}
	limit, ok := m.limits[productID]
	if !ok {
		return true, nil
	}
	return quantity.LessThanOrEqual(limit), nil
}

func (m *mockCatalog) PackageChildren(_ context.Context, productID string) (map[string]decimal.Decimal, error) {
	return m.packages[productID], nil
}

func (m *mockCatalog) IsVariationParent(_ context.Context, productID string) (bool, error) {
	return m.variations[productID], nil
}

type mockPricer struct {
	prices    map[string]decimal.Decimal
	shippable map[string]bool
	err       error
}

func (m *mockPricer) Annotate(_ context.Context, line *Line, _ PricingContext) error {
	if m.err != nil {
		return m.err
	}
	line.UnitPrice = m.prices[line.ProductID]
	line.Weight = decimal.NewFromInt(1)
	line.Shippable = m.shippable[line.ProductID]
	line.Text = "product " + line.ProductID
	return nil
}

type mockMethod struct {
	id     string
	accept bool
}

func (m mockMethod) MethodID() string { return m.id }

func (m mockMethod) IsAvailableFor(context.Context, *Basket) (bool, error) {
	return m.accept, nil
}

type mockMethods struct {
	shipping []Method
	payment  []Method
	err      error
}

func (m *mockMethods) Available(_ context.Context, kind MethodKind, _ string, _ []string) ([]Method, error) {
	if m.err != nil {
		return nil, m.err
	}
	if kind == MethodShipping {
		return m.shipping, nil
	}
	return m.payment, nil
}

type mockRecords struct {
	records map[string]StoredRecord
	gets    int
	getErr  error
}

func newMockRecords() *mockRecords {
	return &mockRecords{records: make(map[string]StoredRecord)}
}

func (m *mockRecords) Get(_ context.Context, key string) (StoredRecord, bool, error) {
	m.gets++
	if m.getErr != nil {
		return StoredRecord{}, false, m.getErr
	}
	rec, ok := m.records[key]
	if !ok || rec.Deleted {
		return StoredRecord{}, false, nil
	}
	return rec, true, nil
}

func (m *mockRecords) Put(_ context.Context, rec StoredRecord) (int64, error) {
	cur, ok := m.records[rec.Key]
	switch {
	case ok && cur.Deleted:
		return 0, ErrBasketClosed
	case ok && cur.Version != rec.Version, !ok && rec.Version != 0:
		return 0, ErrVersionConflict
	}
	rec.Version++
	rec.UpdatedAt = time.Now()
	m.records[rec.Key] = rec
	return rec.Version, nil
}

func (m *mockRecords) Close(_ context.Context, key string, finish bool) (bool, error) {
	rec, ok := m.records[key]
	if !ok || rec.Deleted {
		return false, nil
	}
	rec.Deleted = true
	rec.Finished = finish
	m.records[key] = rec
	return true, nil
}

func (m *mockRecords) DeleteStale(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// --- Helpers ---

var testShop = Shop{ID: "s1", Currency: "EUR", PricesIncludeTax: true}

type fixture struct {
	records *mockRecords
	catalog *mockCatalog
	pricer  *mockPricer
	methods *mockMethods
	env     Env
}

func newFixture() *fixture {
	f := &fixture{
		records: newMockRecords(),
		catalog: &mockCatalog{},
		pricer:  &mockPricer{prices: map[string]decimal.Decimal{}},
		methods: &mockMethods{
			shipping: []Method{mockMethod{id: "post", accept: true}},
			payment:  []Method{mockMethod{id: "card", accept: true}},
		},
	}
	f.env = Env{
		Storage: NewStorage(f.records),
		Catalog: f.catalog,
		Pricer:  f.pricer,
		Methods: f.methods,
	}
	return f
}

func (f *fixture) basket(key string, opts ...Option) *Basket {
	n := 0
	opts = append([]Option{WithLineIDs(func() string {
		n++
		return fmt.Sprintf("%s-l%d", key, n)
	})}, opts...)
	return New(key, testShop, f.env, opts...)
}

func addParams(productID, quantity string) AddProductParams {
	return AddProductParams{
		SupplierID: "sup1",
		ShopID:     testShop.ID,
		ProductID:  productID,
		Quantity:   d(quantity),
	}
}

func lineIDs(lines []Line) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	return ids
}
