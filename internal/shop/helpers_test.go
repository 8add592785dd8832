package shop_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/ariefcatur/go-storefront/internal/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUser(t *testing.T, s shop.Store, email string) shop.User {
	t.Helper()
	u := shop.User{Email: email, FullName: "Test User", PasswordHash: "x", IsActive: true}
	require.NoError(t, s.CreateUser(context.Background(), &u))
	return u
}

func mustCategory(t *testing.T, c *shop.Catalog, name string) shop.Category {
	t.Helper()
	cat, err := c.CreateCategory(context.Background(), name, "")
	require.NoError(t, err)
	return cat
}

func mustProduct(t *testing.T, c *shop.Catalog, cat shop.Category, name, price string, featured bool) shop.Product {
	t.Helper()
	p, err := c.CreateProduct(context.Background(), shop.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		CategoryID:    cat.ID,
		StockQuantity: 10,
		IsFeatured:    featured,
	})
	require.NoError(t, err)
	return p
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recorder is a shop.Publisher that keeps every envelope.
type recorder struct {
	mu     sync.Mutex
	topics []string
	events []shop.Envelope
}

func (r *recorder) Publish(_ context.Context, topic string, _ []byte, env shop.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.events = append(r.events, env)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}
