package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/ariefcatur/go-storefront/internal/sqlite"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDedup struct {
	mu      sync.Mutex
	seen    map[string]bool
	forgets int
}

func (m *memDedup) FirstDelivery(_ context.Context, service, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	k := service + "/" + id
	if m.seen[k] {
		return false, nil
	}
	m.seen[k] = true
	return true, nil
}

func (m *memDedup) ForgetDelivery(_ context.Context, service, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, service+"/"+id)
	m.forgets++
	return nil
}

type memCache struct{ forgotten []int64 }

func (m *memCache) ForgetOrderStatus(_ context.Context, id int64) error {
	m.forgotten = append(m.forgotten, id)
	return nil
}

type capture struct {
	mu     sync.Mutex
	events []shop.Envelope
}

func (c *capture) Publish(_ context.Context, _ string, _ []byte, env shop.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, env)
	return nil
}

type fixture struct {
	svc     *Service
	store   shop.Store
	dedup   *memDedup
	cache   *memCache
	catalog *shop.Catalog
	orders  *shop.Orders
	product shop.Product
	order   shop.Order
	created shop.Envelope
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "f.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	u := shop.User{Email: "a@x.com", FullName: "A", PasswordHash: "h", IsActive: true}
	require.NoError(t, s.CreateUser(ctx, &u))
	catalog := shop.NewCatalog(s)
	cat, err := catalog.CreateCategory(ctx, "Shoes", "")
	require.NoError(t, err)
	p, err := catalog.CreateProduct(ctx, shop.Product{Name: "Loafers", Price: decimal.NewFromInt(10),
		CategoryID: cat.ID, StockQuantity: 10})
	require.NoError(t, err)

	pub := &capture{}
	orders := shop.NewOrders(s, pub, "test", nil)
	_, err = shop.NewCart(s).AddItem(ctx, u.ID, p.ID, 3)
	require.NoError(t, err)
	ord, err := orders.Checkout(ctx, u.ID, "1 Main St")
	require.NoError(t, err)
	require.Len(t, pub.events, 1)

	f := fixture{
		store:   s,
		dedup:   &memDedup{},
		cache:   &memCache{},
		catalog: catalog,
		orders:  orders,
		product: p,
		order:   ord,
		created: pub.events[0],
	}
	f.svc = &Service{Orders: orders, Dedup: f.dedup, Cache: f.cache, ServiceName: "fulfillment"}
	return f
}

func (f fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.catalog.GetProductAnyState(context.Background(), f.product.ID)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestConfirmsOrderAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := kafkax.Marshal(f.created)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleOrderCreated(ctx, kafkago.Message{Value: b}))

	ord, err := f.orders.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusConfirmed, ord.Status)
	assert.Equal(t, 7, f.stock(t))
	assert.Equal(t, []int64{f.order.ID}, f.cache.forgotten)
}

func TestRedeliveryIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Process(ctx, f.created))
	require.NoError(t, f.svc.Process(ctx, f.created))
	assert.Equal(t, 7, f.stock(t))

	// without dedup the status graph still stops a second confirmation
	f.svc.Dedup = nil
	require.NoError(t, f.svc.Process(ctx, f.created))
	assert.Equal(t, 7, f.stock(t))
}

func TestCancelledOrderIsLeftAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.UpdateStatus(ctx, f.order.ID, shop.StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, f.created))

	ord, err := f.orders.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCancelled, ord.Status)
	assert.Equal(t, 10, f.stock(t))
}

func TestFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := f.created
	bad.Payload = json.RawMessage(`{"order_id":"nope"}`)
	err := f.svc.Process(ctx, bad)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 1, f.dedup.forgets)

	first, err := f.dedup.FirstDelivery(ctx, "fulfillment", bad.EventID)
	require.NoError(t, err)
	assert.True(t, first, "claim must be released for the redelivery")
}

func TestIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	env, err := shop.NewEnvelope(shop.EventOrderStatusChanged, "test", f.order.ID,
		shop.OrderStatusChangedPayload{OrderID: f.order.ID, From: shop.StatusPending, To: shop.StatusShipped})
	require.NoError(t, err)
	b, err := kafkax.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleOrderCreated(ctx, kafkago.Message{Value: b}))

	// junk is dropped, not retried
	assert.NoError(t, f.svc.HandleOrderCreated(ctx, kafkago.Message{Value: []byte("junk")}))
	assert.Equal(t, 10, f.stock(t))
}

func TestUnknownOrderIsDropped(t *testing.T) {
	f := newFixture(t)
	env, err := shop.NewEnvelope(shop.EventOrderCreated, "test", 999, shop.OrderCreatedPayload{OrderID: 999})
	require.NoError(t, err)
	assert.NoError(t, f.svc.Process(context.Background(), env))
}

var errStock = errors.New("stock update failed")

// failingStock fails every AdjustStock made inside a transaction.
type failingStock struct{ shop.Store }

type failingStockQueries struct{ shop.Queries }

func (f failingStock) InTx(ctx context.Context, fn func(q shop.Queries) error) error {
	return f.Store.InTx(ctx, func(q shop.Queries) error {
		return fn(failingStockQueries{q})
	})
}

func (failingStockQueries) AdjustStock(context.Context, int64, int) (shop.Product, error) {
	return shop.Product{}, errStock
}

func TestStockFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken := &Service{
		Orders:      shop.NewOrders(failingStock{f.store}, nil, "test", nil),
		Dedup:       f.dedup,
		Cache:       f.cache,
		ServiceName: "fulfillment",
	}
	b, err := kafkax.Marshal(f.created)
	require.NoError(t, err)
	err = broken.HandleOrderCreated(ctx, kafkago.Message{Value: b})
	require.ErrorIs(t, err, errStock)
	assert.True(t, shop.IsTransaction(err))

	ord, err := f.orders.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, ord.Status, "status change must roll back with the stock update")
	assert.Equal(t, 10, f.stock(t))
	assert.Equal(t, 1, f.dedup.forgets)
	assert.Empty(t, f.cache.forgotten)

	// the redelivery confirms and decrements once
	require.NoError(t, f.svc.HandleOrderCreated(ctx, kafkago.Message{Value: b}))
	ord, err = f.orders.GetOrder(ctx, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusConfirmed, ord.Status)
	assert.Equal(t, 7, f.stock(t))
}
