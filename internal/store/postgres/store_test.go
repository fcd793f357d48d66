package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
	"github.com/imrishuroy/bakery-orderflow/internal/store/postgres"
)

// openStore connects to TEST_DATABASE_URL, which must point at a throwaway
// database. Tables are truncated before each test.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	st, err := postgres.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Truncate(ctx))
	return st
}

func seed(t *testing.T, st *postgres.Store) (catalog.Product, catalog.Product) {
	t.Helper()
	ctx := context.Background()
	cat, err := st.AddCategory(ctx, "Cakes")
	require.NoError(t, err)
	cake, err := st.AddProduct(ctx, catalog.Product{Name: "Black Forest", Price: decimal.RequireFromString("12.50"), CategoryID: cat.ID, IsActive: true})
	require.NoError(t, err)
	old, err := st.AddProduct(ctx, catalog.Product{Name: "Retired Tart", Price: decimal.RequireFromString("3.00"), CategoryID: cat.ID, IsActive: false})
	require.NoError(t, err)
	return cake, old
}

func TestMenuHidesInactiveProducts(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	menu, err := st.ListMenu(context.Background(), "cakes")
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, "Black Forest", menu[0].Name)
	assert.Equal(t, "Cakes", menu[0].Category)
	assert.Equal(t, "12.50", menu[0].Price.StringFixed(2))
}

func TestCreateCartConflict(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	_, err := st.CreateCart(ctx, "session-1")
	require.NoError(t, err)
	_, err = st.CreateCart(ctx, "session-1")
	assert.True(t, errors.Is(err, cart.ErrConflict))
}

func TestConcurrentAddsNeverExceedLimit(t *testing.T) {
	st := openStore(t)
	cake, _ := seed(t, st)
	engine := cart.NewEngine(st)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.AddItem(ctx, "session-race", cake.ID, 3)
		}()
	}
	wg.Wait()

	c, err := engine.GetCart(ctx, "session-race")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 18, c.Items[0].Quantity)
}

func TestPlaceOrderRoundTrip(t *testing.T) {
	st := openStore(t)
	cake, _ := seed(t, st)
	ctx := context.Background()

	_, err := cart.NewEngine(st).AddItem(ctx, "session-order", cake.ID, 2)
	require.NoError(t, err)

	engine := orders.NewEngine(st, nil, orders.Options{})
	o, err := engine.PlaceOrder(ctx, orders.Details{
		SessionID:    "session-order",
		CustomerName: "Ravi",
		Phone:        "+919812345678",
		Address:      "7 Hill Road",
	})
	require.NoError(t, err)
	assert.Equal(t, "25.00", o.Totals.Total.StringFixed(2))

	got, err := engine.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Black Forest", got.Items[0].Name)
	assert.Equal(t, orders.StatusPlaced, got.Status)

	_, err = engine.PlaceOrder(ctx, orders.Details{SessionID: "session-order"})
	assert.True(t, errors.Is(err, orders.ErrEmptyCart))

	_, err = engine.SetStatus(ctx, o.ID, orders.StatusOutForDelivery)
	require.NoError(t, err)
	dash, err := engine.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Summary.InTransitOrdersCount)
	assert.Equal(t, "25.00", dash.Summary.DayEarnings.StringFixed(2))

	_, err = engine.SetStatus(ctx, o.ID+1000, orders.StatusDelivered)
	assert.True(t, errors.Is(err, errors.NotFound))
}
