package shop_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalog(t *testing.T) (*shop.Catalog, map[string]shop.Product) {
	t.Helper()
	c := shop.NewCatalog(newStore(t))
	suits := mustCategory(t, c, "Suits")
	shoes := mustCategory(t, c, "Shoes")
	ps := map[string]shop.Product{
		"navy":     mustProduct(t, c, suits, "Classic Navy Suit", "1299.99", true),
		"charcoal": mustProduct(t, c, suits, "Charcoal Grey Suit", "1199.99", false),
		"tweed":    mustProduct(t, c, suits, "Tweed Suit", "999.00", false),
		"oxford":   mustProduct(t, c, shoes, "Oxford Shoes", "449.99", true),
		"loafers":  mustProduct(t, c, shoes, "Leather Loafers", "329.99", false),
	}
	return c, ps
}

func names(ps []shop.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func TestListProducts(t *testing.T) {
	c, ps := seedCatalog(t)
	ctx := context.Background()
	require.NoError(t, c.SetActive(ctx, ps["tweed"].ID, false))

	tests := []struct {
		name   string
		filter shop.ProductFilter
		want   []string
	}{
		{"all active by id", shop.ProductFilter{},
			[]string{"Classic Navy Suit", "Charcoal Grey Suit", "Oxford Shoes", "Leather Loafers"}},
		{"category exact", shop.ProductFilter{Category: "Shoes"},
			[]string{"Oxford Shoes", "Leather Loafers"}},
		{"unknown category", shop.ProductFilter{Category: "shoes"}, nil},
		{"search substring", shop.ProductFilter{Search: "Suit"},
			[]string{"Classic Navy Suit", "Charcoal Grey Suit"}},
		{"search ignores case", shop.ProductFilter{Search: "LOAF"},
			[]string{"Leather Loafers"}},
		{"category and search", shop.ProductFilter{Category: "Suits", Search: "navy"},
			[]string{"Classic Navy Suit"}},
		{"paging", shop.ProductFilter{Skip: 1, Limit: 2},
			[]string{"Charcoal Grey Suit", "Oxford Shoes"}},
		{"negative skip", shop.ProductFilter{Skip: -5, Limit: 1},
			[]string{"Classic Navy Suit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ListProducts(ctx, tt.filter)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestProductFilterNormalized(t *testing.T) {
	f := shop.ProductFilter{Skip: -1, Limit: 0}.Normalized()
	assert.Equal(t, 0, f.Skip)
	assert.Equal(t, shop.DefaultPageLimit, f.Limit)

	f = shop.ProductFilter{Skip: 3, Limit: 7}.Normalized()
	assert.Equal(t, 3, f.Skip)
	assert.Equal(t, 7, f.Limit)
}

func TestGetProduct(t *testing.T) {
	c, ps := seedCatalog(t)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, ps["navy"].ID)
	require.NoError(t, err)
	assert.Equal(t, "Classic Navy Suit", p.Name)
	assert.Equal(t, "Suits", p.CategoryName)
	assert.True(t, p.Price.Equal(dec("1299.99")))

	_, err = c.GetProduct(ctx, 9999)
	assert.ErrorIs(t, err, shop.ErrNotFound)

	require.NoError(t, c.SetActive(ctx, ps["navy"].ID, false))
	_, err = c.GetProduct(ctx, ps["navy"].ID)
	assert.ErrorIs(t, err, shop.ErrNotFound)

	p, err = c.GetProductAnyState(ctx, ps["navy"].ID)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
}

func TestFeaturedAndRelated(t *testing.T) {
	c, ps := seedCatalog(t)
	ctx := context.Background()

	featured, err := c.FeaturedProducts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Classic Navy Suit", "Oxford Shoes"}, names(featured))

	featured, err = c.FeaturedProducts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, featured, 1)

	related, err := c.RelatedProducts(ctx, ps["navy"].CategoryID, ps["navy"].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Charcoal Grey Suit", "Tweed Suit"}, names(related))

	require.NoError(t, c.SetActive(ctx, ps["tweed"].ID, false))
	related, err = c.RelatedProducts(ctx, ps["navy"].CategoryID, ps["navy"].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Charcoal Grey Suit"}, names(related))
}

func TestListCategories(t *testing.T) {
	c, _ := seedCatalog(t)
	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Suits", cats[0].Name)
	assert.Equal(t, "Shoes", cats[1].Name)
}

func TestCreateValidation(t *testing.T) {
	c := shop.NewCatalog(newStore(t))
	ctx := context.Background()

	_, err := c.CreateCategory(ctx, "  ", "")
	assert.True(t, shop.IsValidation(err))

	cat := mustCategory(t, c, "Hats")
	_, err = c.CreateCategory(ctx, "Hats", "")
	assert.True(t, shop.IsValidation(err), "duplicate name: %v", err)

	_, err = c.CreateProduct(ctx, shop.Product{Name: "Cap", Price: dec("-1"), CategoryID: cat.ID})
	var ve *shop.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "price", ve.Field)

	_, err = c.CreateProduct(ctx, shop.Product{Name: "", Price: dec("1"), CategoryID: cat.ID})
	assert.True(t, shop.IsValidation(err))

	p, err := c.CreateProduct(ctx, shop.Product{Name: "Free Cap", Price: dec("0"), CategoryID: cat.ID})
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	assert.True(t, shop.IsValidation(c.SetPrice(ctx, p.ID, dec("-0.01"))))
	assert.True(t, shop.IsValidation(c.SetPrice(ctx, p.ID, dec("2.999"))))
	assert.NoError(t, c.SetPrice(ctx, p.ID, dec("2.500")), "trailing zeros are not extra precision")

	_, err = c.CreateProduct(ctx, shop.Product{Name: "Odd Cap", Price: dec("1.005"), CategoryID: cat.ID})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "price", ve.Field)
	assert.ErrorIs(t, c.SetPrice(ctx, 424242, dec("1")), shop.ErrNotFound)
}

func TestAdjustStock(t *testing.T) {
	c, ps := seedCatalog(t)
	ctx := context.Background()

	p, err := c.AdjustStock(ctx, ps["navy"].ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 7, p.StockQuantity)

	// no floor
	p, err = c.AdjustStock(ctx, ps["navy"].ID, -20)
	require.NoError(t, err)
	assert.Equal(t, -13, p.StockQuantity)

	// works on inactive products too
	require.NoError(t, c.SetActive(ctx, ps["oxford"].ID, false))
	p, err = c.AdjustStock(ctx, ps["oxford"].ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, p.StockQuantity)

	_, err = c.AdjustStock(ctx, 9999, 1)
	assert.ErrorIs(t, err, shop.ErrNotFound)
}
