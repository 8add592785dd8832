package shop_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	cartFixture
	orders *shop.Orders
	pub    *recorder
}

func newOrderFixture(t *testing.T) orderFixture {
	t.Helper()
	f := newCartFixture(t)
	pub := &recorder{}
	return orderFixture{
		cartFixture: f,
		orders:      shop.NewOrders(f.store, pub, "test", nil),
		pub:         pub,
	}
}

func TestCheckout(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 2)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, f.user.ID, f.b.ID, 3)
	require.NoError(t, err)

	ord, err := f.orders.Checkout(ctx, f.user.ID, "  1 Main St ")
	require.NoError(t, err)
	assert.NotZero(t, ord.ID)
	assert.Equal(t, shop.StatusPending, ord.Status)
	assert.Equal(t, "1 Main St", ord.ShippingAddress)
	assert.True(t, ord.TotalAmount.Equal(dec("35")), "total %s", ord.TotalAmount)
	require.Len(t, ord.Items, 2)

	items, err := f.cart.Items(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, items, "cart must be empty after checkout")

	stored, err := f.orders.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(dec("35")))
	require.Len(t, stored.Items, 2)
	assert.Equal(t, f.a.ID, stored.Items[0].ProductID)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.True(t, stored.Items[0].Price.Equal(dec("10")))
	assert.Equal(t, f.b.ID, stored.Items[1].ProductID)
	assert.True(t, stored.Items[1].Price.Equal(dec("5")))

	assert.Equal(t, []string{shop.EventOrderCreated}, f.pub.types())
	assert.Equal(t, []string{shop.TopicOrderCreated}, f.pub.topics)
}

func TestCheckoutScenario(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := shop.NewCatalog(s)
	cat := mustCategory(t, c, "Demo")
	x := mustProduct(t, c, cat, "X", "100.00", false)
	y := mustProduct(t, c, cat, "Y", "50.00", false)
	u := mustUser(t, s, "a@x.com")
	cart := shop.NewCart(s)
	orders := shop.NewOrders(s, nil, "test", nil)

	_, err := cart.AddItem(ctx, u.ID, x.ID, 2)
	require.NoError(t, err)
	_, err = cart.AddItem(ctx, u.ID, y.ID, 1)
	require.NoError(t, err)

	ord, err := orders.Checkout(ctx, u.ID, "1 Main St")
	require.NoError(t, err)
	assert.True(t, ord.TotalAmount.Equal(dec("250.00")))
	assert.Equal(t, shop.StatusPending, ord.Status)

	history, err := orders.ListOrdersForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ord.ID, history[0].ID)
	assert.Len(t, history[0].Items, 2)
}

func TestCheckoutTotalMatchesSnapshot(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 3)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, f.user.ID, f.b.ID, 1)
	require.NoError(t, err)

	// price changes before checkout are picked up, after checkout they are not
	require.NoError(t, f.catalog.SetPrice(ctx, f.a.ID, dec("12.50")))
	ord, err := f.orders.Checkout(ctx, f.user.ID, "addr")
	require.NoError(t, err)
	require.NoError(t, f.catalog.SetPrice(ctx, f.a.ID, dec("99")))

	stored, err := f.orders.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	sum := dec("0")
	for _, it := range stored.Items {
		sum = sum.Add(it.Subtotal())
	}
	assert.True(t, stored.TotalAmount.Equal(sum), "total %s sum %s", stored.TotalAmount, sum)
	assert.True(t, stored.TotalAmount.Equal(dec("42.50")))
	assert.True(t, stored.Items[0].Price.Equal(dec("12.50")))
	assert.True(t, stored.Items[0].Product.Price.Equal(dec("99")), "joined product shows the live price")
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.orders.Checkout(ctx, f.user.ID, "1 Main St")
	assert.ErrorIs(t, err, shop.ErrEmptyCart)
	assert.False(t, shop.IsTransaction(err))

	history, err := f.orders.ListOrdersForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, f.pub.types())
}

func TestCheckoutRequiresAddress(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 1)
	require.NoError(t, err)

	_, err = f.orders.Checkout(ctx, f.user.ID, " \t")
	var ve *shop.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "shipping_address", ve.Field)

	items, err := f.cart.Items(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

// faultyStore fails the nth InsertOrderItem inside a transaction.
type faultyStore struct {
	shop.Store
	failAt int
}

type faultyQueries struct {
	shop.Queries
	calls  *int
	failAt int
}

var errInjected = errors.New("injected failure")

func (f *faultyStore) InTx(ctx context.Context, fn func(q shop.Queries) error) error {
	calls := 0
	return f.Store.InTx(ctx, func(q shop.Queries) error {
		return fn(&faultyQueries{Queries: q, calls: &calls, failAt: f.failAt})
	})
}

func (q *faultyQueries) InsertOrderItem(ctx context.Context, it *shop.OrderItem) error {
	*q.calls++
	if *q.calls == q.failAt {
		return errInjected
	}
	return q.Queries.InsertOrderItem(ctx, it)
}

func TestCheckoutIsAtomic(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 2)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, f.user.ID, f.b.ID, 1)
	require.NoError(t, err)

	pub := &recorder{}
	orders := shop.NewOrders(&faultyStore{Store: f.store, failAt: 2}, pub, "test", nil)
	_, err = orders.Checkout(ctx, f.user.ID, "1 Main St")
	require.Error(t, err)
	assert.True(t, shop.IsTransaction(err))
	assert.ErrorIs(t, err, errInjected)

	history, err := f.orders.ListOrdersForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "no order rows may survive a failed checkout")

	items, err := f.cart.Items(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2, "cart must be untouched")
	assert.Empty(t, pub.types())

	// the same cart checks out fine afterwards
	ord, err := f.orders.Checkout(ctx, f.user.ID, "1 Main St")
	require.NoError(t, err)
	assert.True(t, ord.TotalAmount.Equal(dec("25")))
}

func TestConcurrentCheckoutCreatesOneOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 1)
	require.NoError(t, err)

	const n = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.Checkout(ctx, f.user.ID, "addr")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	for _, err := range errs {
		assert.ErrorIs(t, err, shop.ErrEmptyCart)
	}
	history, err := f.orders.ListOrdersForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOrderHistory(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	other := mustUser(t, f.store, "b@x.com")

	var ids []int64
	for i := 0; i < 3; i++ {
		_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, i+1)
		require.NoError(t, err)
		ord, err := f.orders.Checkout(ctx, f.user.ID, "addr")
		require.NoError(t, err)
		ids = append(ids, ord.ID)
	}

	history, err := f.orders.ListOrdersForUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{history[0].ID, history[1].ID, history[2].ID})
	assert.Equal(t, 3, history[0].Items[0].Quantity)

	none, err := f.orders.ListOrdersForUser(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.orders.GetOrderForUser(ctx, other.ID, ids[0])
	assert.ErrorIs(t, err, shop.ErrNotFound)
	_, err = f.orders.GetOrder(ctx, 9999)
	assert.ErrorIs(t, err, shop.ErrNotFound)

	// deactivated products keep rendering in history
	require.NoError(t, f.catalog.SetActive(ctx, f.a.ID, false))
	ord, err := f.orders.GetOrderForUser(ctx, f.user.ID, ids[0])
	require.NoError(t, err)
	require.NotNil(t, ord.Items[0].Product)
	assert.Equal(t, "A", ord.Items[0].Product.Name)
	assert.False(t, ord.Items[0].Product.IsActive)
}

func TestUpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 1)
	require.NoError(t, err)
	ord, err := f.orders.Checkout(ctx, f.user.ID, "addr")
	require.NoError(t, err)

	got, err := f.orders.UpdateStatus(ctx, ord.ID, shop.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusShipped, got.Status)

	// overwrite is unconditional, even backwards
	got, err = f.orders.UpdateStatus(ctx, ord.ID, shop.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, got.Status)

	// same status: no event
	_, err = f.orders.UpdateStatus(ctx, ord.ID, shop.StatusPending)
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, ord.ID, shop.Status("lost"))
	assert.True(t, shop.IsValidation(err))
	_, err = f.orders.UpdateStatus(ctx, 9999, shop.StatusConfirmed)
	assert.ErrorIs(t, err, shop.ErrNotFound)

	stored, err := f.orders.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, stored.Status)
	assert.Equal(t, []string{
		shop.EventOrderCreated,
		shop.EventOrderStatusChanged,
		shop.EventOrderStatusChanged,
	}, f.pub.types())
}

func TestCheckoutTraceID(t *testing.T) {
	f := newOrderFixture(t)
	ctx := shop.WithTraceID(context.Background(), "req-1")
	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 1)
	require.NoError(t, err)
	ord, err := f.orders.Checkout(ctx, f.user.ID, "addr")
	require.NoError(t, err)

	require.Len(t, f.pub.events, 1)
	env := f.pub.events[0]
	assert.Equal(t, "req-1", env.TraceID)
	assert.Equal(t, "test", env.Producer)
	assert.Equal(t, 1, env.EventVersion)
	assert.NotEmpty(t, env.EventID)
	assert.Contains(t, string(env.Payload), `"order_id":`)
	assert.Equal(t, string(shop.PartitionKey(ord.ID)), env.CorrelationID)
}

// stockFailStore fails every AdjustStock made inside a transaction.
type stockFailStore struct{ shop.Store }

type stockFailQueries struct{ shop.Queries }

func (s stockFailStore) InTx(ctx context.Context, fn func(q shop.Queries) error) error {
	return s.Store.InTx(ctx, func(q shop.Queries) error { return fn(stockFailQueries{q}) })
}

func (stockFailQueries) AdjustStock(context.Context, int64, int) (shop.Product, error) {
	return shop.Product{}, errInjected
}

func TestConfirm(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 3)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, f.user.ID, f.b.ID, 1)
	require.NoError(t, err)
	ord, err := f.orders.Checkout(ctx, f.user.ID, "addr")
	require.NoError(t, err)

	got, ok, err := f.orders.Confirm(ctx, ord.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, shop.StatusConfirmed, got.Status)

	a, err := f.catalog.GetProductAnyState(ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, a.StockQuantity)
	b, err := f.catalog.GetProductAnyState(ctx, f.b.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, b.StockQuantity)

	// already confirmed: nothing changes
	_, ok, err = f.orders.Confirm(ctx, ord.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	a, err = f.catalog.GetProductAnyState(ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, a.StockQuantity)

	assert.Equal(t, []string{shop.EventOrderCreated, shop.EventOrderStatusChanged}, f.pub.types())

	_, _, err = f.orders.Confirm(ctx, 9999)
	assert.ErrorIs(t, err, shop.ErrNotFound)
	assert.False(t, shop.IsTransaction(err))
}

func TestConfirmSkipsCancelledOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 2)
	require.NoError(t, err)
	ord, err := f.orders.Checkout(ctx, f.user.ID, "addr")
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, ord.ID, shop.StatusCancelled)
	require.NoError(t, err)

	got, ok, err := f.orders.Confirm(ctx, ord.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, shop.StatusCancelled, got.Status)

	a, err := f.catalog.GetProductAnyState(ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, a.StockQuantity)
}

func TestConfirmIsAtomic(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, f.user.ID, f.a.ID, 2)
	require.NoError(t, err)
	ord, err := f.orders.Checkout(ctx, f.user.ID, "addr")
	require.NoError(t, err)

	pub := &recorder{}
	broken := shop.NewOrders(stockFailStore{f.store}, pub, "test", nil)
	_, ok, err := broken.Confirm(ctx, ord.ID)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, shop.IsTransaction(err))
	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, pub.types())

	stored, err := f.orders.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, stored.Status, "status must roll back with the stock update")

	_, ok, err = f.orders.Confirm(ctx, ord.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	a, err := f.catalog.GetProductAnyState(ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, a.StockQuantity)
}

func TestCheckoutUnknownUser(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.orders.Checkout(context.Background(), 424242, "addr")
	assert.ErrorIs(t, err, shop.ErrNotFound)
	assert.False(t, shop.IsTransaction(err))
}
