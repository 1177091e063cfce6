package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-basket/internal/domain/basket"
	"github.com/xenking/kart-basket/internal/storage/memory"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	lastOrder *Order
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.lastOrder = o
	return m.err
}

type stockCatalog struct {
	limits map[string]decimal.Decimal
}

func (c stockCatalog) IsOrderable(_ context.Context, productID, _, _ string, q decimal.Decimal) (bool, error) {
	limit, ok := c.limits[productID]
	return !ok || q.LessThanOrEqual(limit), nil
}

func (stockCatalog) PackageChildren(context.Context, string) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func (stockCatalog) IsVariationParent(context.Context, string) (bool, error) {
	return false, nil
}

type priceList map[string]decimal.Decimal

func (p priceList) Annotate(_ context.Context, line *basket.Line, _ basket.PricingContext) error {
	line.UnitPrice = p[line.ProductID]
	line.Text = "Product " + line.ProductID
	return nil
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newBasket(t *testing.T, catalog stockCatalog, products map[string]string) *basket.Basket {
	t.Helper()
	ctx := context.Background()
	b := basket.New("key1", basket.Shop{ID: "s1", Currency: "EUR"}, basket.Env{
		Storage: basket.NewStorage(memory.NewRecordStore()),
		Catalog: catalog,
		Pricer:  priceList{"p1": d("10"), "p2": d("2.5")},
	}, basket.WithCustomer("c1"), basket.WithOrderer("o1"))

	for id, q := range products {
		_, err := b.AddProduct(ctx, basket.AddProductParams{
			SupplierID: "sup1",
			ShopID:     "s1",
			ProductID:  id,
			Quantity:   d(q),
		})
		require.NoError(t, err)
	}
	return b
}

// --- Tests ---

func TestService_CreateOrder(t *testing.T) {
	ctx := context.Background()
	repo := &mockOrderRepo{}
	svc := NewService(repo)
	b := newBasket(t, stockCatalog{limits: map[string]decimal.Decimal{"p2": d("1")}}, map[string]string{"p1": "2", "p2": "4"})
	_, err := b.AddCode(ctx, "SAVE")
	require.NoError(t, err)

	id, err := svc.CreateOrder(ctx, b, basket.CheckoutRequest{ShippingMethodID: "post", PaymentMethodID: "card"})
	require.NoError(t, err)

	o := repo.lastOrder
	require.NotNil(t, o)
	assert.Equal(t, id, o.ID)
	assert.Equal(t, "key1", o.BasketKey)
	assert.Equal(t, "s1", o.ShopID)
	assert.Equal(t, "EUR", o.Currency)
	assert.Equal(t, "c1", o.CustomerID)
	assert.Equal(t, "o1", o.OrdererID)
	assert.Equal(t, "post", o.ShippingMethodID)
	assert.Equal(t, "card", o.PaymentMethodID)
	assert.Equal(t, []string{"SAVE"}, o.Codes)
	assert.False(t, o.CreatedAt.IsZero())

	// p2 exceeds stock and is left out.
	require.Len(t, o.Items, 1)
	assert.Equal(t, "p1", o.Items[0].ProductID)
	assert.Equal(t, "Product p1", o.Items[0].Text)
	assert.True(t, d("20").Equal(o.Total), "got %s", o.Total)
}

func TestService_CreateOrderEmpty(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := NewService(repo)
	b := newBasket(t, stockCatalog{}, nil)

	_, err := svc.CreateOrder(context.Background(), b, basket.CheckoutRequest{})
	require.ErrorIs(t, err, ErrEmptyItems)
	assert.Nil(t, repo.lastOrder)
}

func TestService_CreateOrderRepoError(t *testing.T) {
	svc := NewService(&mockOrderRepo{err: errors.New("db error")})
	b := newBasket(t, stockCatalog{}, map[string]string{"p1": "1"})

	_, err := svc.CreateOrder(context.Background(), b, basket.CheckoutRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}
