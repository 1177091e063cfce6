//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-basket/internal/domain/basket"
	"github.com/xenking/kart-basket/internal/domain/coupon"
	"github.com/xenking/kart-basket/internal/domain/method"
	"github.com/xenking/kart-basket/internal/domain/order"
	"github.com/xenking/kart-basket/internal/domain/product"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "basket",
				"POSTGRES_PASSWORD": "basket",
				"POSTGRES_DB":       "basket",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://basket:basket@%s:%s/basket?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Migrations are idempotent.
	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("second migration run: %v", err)
	}

	return m.Run()
}

func TestRunMigrations_Concurrent(t *testing.T) {
	ctx := context.Background()
	var g errgroup.Group
	for range 4 {
		g.Go(func() error { return RunMigrations(ctx, testPool) })
	}
	require.NoError(t, g.Wait())
}

func TestNewPool_ApplicationName(t *testing.T) {
	ctx := context.Background()
	cfg := testPool.Config().ConnConfig
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	pool, err := NewPool(ctx, dsn, WithApplicationName("repo-test"), WithMaxConns(2))
	require.NoError(t, err)
	defer pool.Close()

	var name string
	require.NoError(t, pool.QueryRow(ctx, `SELECT current_setting('application_name')`).Scan(&name))
	assert.Equal(t, "repo-test", name)
	assert.Equal(t, int32(2), pool.Config().MaxConns)

	var dec decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx, `SELECT 1.25::numeric`).Scan(&dec))
	assert.True(t, dec.Equal(decimal.RequireFromString("1.25")))
}

func TestNewPool_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewPool(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	require.ErrorContains(t, err, "pinging database")
}

func testRecord(key string) basket.StoredRecord {
	return basket.StoredRecord{
		Key:              key,
		ShopID:           "shop",
		Currency:         "EUR",
		PricesIncludeTax: true,
		Data:             []byte(`{"lines":[]}`),
		TaxfulTotalPrice: decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
		ProductCount:     decimal.NewFromInt(2),
		ProductIDs:       []string{"p1"},
		CreatorID:        "creator",
	}
}

func TestBasketRepository_PutGet(t *testing.T) {
	ctx := context.Background()
	repo := NewBasketRepository(testPool)
	key := uuid.NewString()

	_, found, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	v1, err := repo.Put(ctx, testRecord(key))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)

	rec, found, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "shop", rec.ShopID)
	assert.Equal(t, "EUR", rec.Currency)
	assert.True(t, rec.PricesIncludeTax)
	assert.JSONEq(t, `{"lines":[]}`, string(rec.Data))
	assert.True(t, rec.TaxfulTotalPrice.Valid)
	assert.True(t, rec.TaxfulTotalPrice.Decimal.Equal(decimal.RequireFromString("12.5")))
	assert.False(t, rec.TaxlessTotalPrice.Valid)
	assert.Equal(t, []string{"p1"}, rec.ProductIDs)
	assert.Equal(t, v1, rec.Version)

	next := testRecord(key)
	next.Version = v1
	next.ProductIDs = nil
	v2, err := repo.Put(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)

	rec, _, err = repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, rec.ProductIDs)
}

func TestBasketRepository_VersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewBasketRepository(testPool)
	key := uuid.NewString()

	_, err := repo.Put(ctx, testRecord(key))
	require.NoError(t, err)

	// A second insert of the same key loses the race.
	_, err = repo.Put(ctx, testRecord(key))
	assert.ErrorIs(t, err, basket.ErrVersionConflict)

	stale := testRecord(key)
	stale.Version = 7
	_, err = repo.Put(ctx, stale)
	assert.ErrorIs(t, err, basket.ErrVersionConflict)
}

func TestBasketRepository_Close(t *testing.T) {
	ctx := context.Background()
	repo := NewBasketRepository(testPool)
	key := uuid.NewString()

	v, err := repo.Put(ctx, testRecord(key))
	require.NoError(t, err)

	closed, err := repo.Close(ctx, key, true)
	require.NoError(t, err)
	assert.True(t, closed)

	_, found, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	closed, err = repo.Close(ctx, key, false)
	require.NoError(t, err)
	assert.False(t, closed)

	rec := testRecord(key)
	rec.Version = v
	_, err = repo.Put(ctx, rec)
	assert.ErrorIs(t, err, basket.ErrBasketClosed)

	_, err = repo.Put(ctx, testRecord(key))
	assert.ErrorIs(t, err, basket.ErrBasketClosed)
}

func TestBasketRepository_DeleteStale(t *testing.T) {
	ctx := context.Background()
	repo := NewBasketRepository(testPool)

	keys := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	for _, key := range keys {
		_, err := repo.Put(ctx, testRecord(key))
		require.NoError(t, err)
	}

	cutoff := time.Now().Add(time.Hour)
	n, err := repo.DeleteStale(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.DeleteStale(ctx, cutoff, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	for _, key := range keys {
		_, found, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, key)
	}
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testPool)

	pkg := product.Product{
		ID: "pkg-" + uuid.NewString(), SKU: "PKG", Name: "Bundle",
		Price: decimal.NewFromInt(20), Weight: decimal.NewFromInt(1),
		Shippable: true, Purchasable: true,
		MinimumQuantity: decimal.NewFromInt(1), PurchaseMultiple: decimal.Zero,
	}
	child := pkg
	child.ID = "child-" + uuid.NewString()
	child.SKU = "CHILD"
	child.Name = "Part"

	require.NoError(t, repo.Upsert(ctx, pkg))
	require.NoError(t, repo.Upsert(ctx, child))

	got, err := repo.GetByID(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bundle", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(20)))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, product.ErrNotFound)

	both, err := repo.GetByIDs(ctx, []string{pkg.ID, child.ID})
	require.NoError(t, err)
	assert.Len(t, both, 2)

	require.NoError(t, repo.SetComponents(ctx, pkg.ID, []product.Component{
		{ChildID: child.ID, Quantity: decimal.NewFromInt(3)},
	}))
	components, err := repo.Components(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Equal(t, child.ID, components[0].ChildID)
	assert.True(t, components[0].Quantity.Equal(decimal.NewFromInt(3)))

	require.NoError(t, repo.SetComponents(ctx, pkg.ID, nil))
	components, err = repo.Components(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Empty(t, components)

	_, err = repo.Stock(ctx, pkg.ID, "s1")
	assert.ErrorIs(t, err, product.ErrNotFound)

	require.NoError(t, repo.SetStock(ctx, product.Stock{
		ProductID: pkg.ID, SupplierID: "s1", Quantity: decimal.NewFromInt(5),
	}))
	stock, err := repo.Stock(ctx, pkg.ID, "s1")
	require.NoError(t, err)
	assert.True(t, stock.Quantity.Equal(decimal.NewFromInt(5)))
	assert.False(t, stock.Unlimited)
}

func TestMethodRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMethodRepository(testPool)
	shop := "shop-" + uuid.NewString()

	require.NoError(t, repo.Upsert(ctx, method.Method{
		ID: shop + "-post", Kind: basket.MethodShipping, ShopID: shop, Name: "Post",
		Enabled: true, MaxWeight: decimal.NewFromInt(30), MinTotal: decimal.Zero,
		ExcludedProductIDs: []string{"p2", "p1"},
	}))
	require.NoError(t, repo.Upsert(ctx, method.Method{
		ID: shop + "-card", Kind: basket.MethodPayment, ShopID: shop, Name: "Card",
		Enabled: true, MaxWeight: decimal.Zero, MinTotal: decimal.Zero,
	}))

	shipping, err := repo.ListByShop(ctx, shop, basket.MethodShipping)
	require.NoError(t, err)
	require.Len(t, shipping, 1)
	assert.Equal(t, "Post", shipping[0].Name)
	assert.Equal(t, []string{"p1", "p2"}, shipping[0].ExcludedProductIDs)

	payment, err := repo.ListByShop(ctx, shop, basket.MethodPayment)
	require.NoError(t, err)
	require.Len(t, payment, 1)
	assert.Empty(t, payment[0].ExcludedProductIDs)
}

func TestCouponRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testPool)
	code := "SAVE" + uuid.NewString()[:8]

	_, err := repo.FindByCode(ctx, code)
	assert.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	n, err := repo.BulkUpsert(ctx, []coupon.Rule{{Code: code, Description: "ten off", MaxUses: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rule, err := repo.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "ten off", rule.Description)
	assert.Equal(t, 2, rule.MaxUses)
	assert.Zero(t, rule.Uses)
	assert.Nil(t, rule.ValidFrom)

	require.NoError(t, repo.IncrementUses(ctx, code))

	// Re-importing keeps the use counter.
	_, err = repo.BulkUpsert(ctx, []coupon.Rule{{Code: code, Description: "updated", MaxUses: 3}})
	require.NoError(t, err)

	rule, err = repo.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "updated", rule.Description)
	assert.Equal(t, 1, rule.Uses)
}

func TestOrderRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	o := &order.Order{
		ID:        uuid.NewString(),
		BasketKey: uuid.NewString(),
		ShopID:    "shop",
		Currency:  "EUR",
		Items: []order.Item{{
			LineID: "l1", Type: "product", ProductID: "p1", Text: "Widget",
			Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("4.50"),
		}},
		Total:     decimal.NewFromInt(9),
		Codes:     []string{"SAVE"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, o))

	var (
		items []byte
		total decimal.Decimal
		codes []string
	)
	err := testPool.QueryRow(ctx, `SELECT items, total, codes FROM orders WHERE id = $1`, o.ID).
		Scan(&items, &total, &codes)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"line_id":"l1","type":"product","product_id":"p1","supplier_id":"",
		"text":"Widget","quantity":"2","unit_price":"4.5","discount_amount":"0"}]`, string(items))
	assert.True(t, total.Equal(decimal.NewFromInt(9)))
	assert.Equal(t, []string{"SAVE"}, codes)

	// One order per basket.
	dup := *o
	dup.ID = uuid.NewString()
	assert.Error(t, repo.Create(ctx, &dup))
}
