// Package seed loads the demo catalog into an empty store.
package seed

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/shopspring/decimal"
)

type category struct {
	name, description string
}

type product struct {
	name, description string
	price             string
	category          string
	imageURL          string
	stock             int
	featured          bool
}

var categories = []category{
	{"Men's Suits", "Premium men's formal wear"},
	{"Women's Dresses", "Elegant women's dresses"},
	{"Accessories", "Luxury accessories"},
	{"Shoes", "Designer footwear"},
}

var products = []product{
	{"Classic Navy Suit", "Handcrafted navy blue suit made from premium wool. Perfect for business meetings and formal events.",
		"1299.99", "Men's Suits", "https://images.unsplash.com/photo-1594938298603-c8148c4dae35?w=800&h=600&fit=crop", 15, true},
	{"Elegant Black Dress", "Sophisticated black evening dress with intricate detailing. Made from premium silk.",
		"899.99", "Women's Dresses", "https://images.unsplash.com/photo-1566479179817-c0b0b1e3b2e5?w=800&h=600&fit=crop", 8, true},
	{"Luxury Leather Handbag", "Handcrafted Italian leather handbag with gold-plated hardware.",
		"599.99", "Accessories", "https://images.unsplash.com/photo-1553062407-98eeb64c6a62?w=800&h=600&fit=crop", 12, true},
	{"Designer Oxford Shoes", "Premium leather Oxford shoes with traditional craftsmanship.",
		"449.99", "Shoes", "https://images.unsplash.com/photo-1549298916-b41d501d3772?w=800&h=600&fit=crop", 20, true},
	{"Charcoal Grey Suit", "Modern fit charcoal grey suit perfect for contemporary professionals.",
		"1199.99", "Men's Suits", "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=800&h=600&fit=crop", 10, false},
	{"Silk Evening Gown", "Luxurious silk evening gown with beaded embellishments.",
		"1599.99", "Women's Dresses", "https://images.unsplash.com/photo-1515372039744-b8f02a3ae446?w=800&h=600&fit=crop", 5, false},
	{"Gold Watch", "Swiss-made luxury watch with 18k gold case.",
		"2999.99", "Accessories", "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=800&h=600&fit=crop", 3, false},
	{"Leather Loafers", "Comfortable leather loafers with premium construction.",
		"329.99", "Shoes", "https://images.unsplash.com/photo-1560769629-975ec94e6a86?w=800&h=600&fit=crop", 25, false},
}

// Result reports what Run inserted.
type Result struct {
	Skipped    bool
	Categories int
	Products   int
}

// Run inserts the demo categories and products. It does nothing when any
// category already exists.
func Run(ctx context.Context, c *shop.Catalog) (Result, error) {
	existing, err := c.ListCategories(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(existing) > 0 {
		return Result{Skipped: true}, nil
	}

	ids := make(map[string]int64, len(categories))
	var res Result
	for _, cat := range categories {
		created, err := c.CreateCategory(ctx, cat.name, cat.description)
		if err != nil {
			return res, fmt.Errorf("category %q: %w", cat.name, err)
		}
		ids[cat.name] = created.ID
		res.Categories++
	}
	for _, p := range products {
		_, err := c.CreateProduct(ctx, shop.Product{
			Name:          p.name,
			Description:   p.description,
			Price:         decimal.RequireFromString(p.price),
			CategoryID:    ids[p.category],
			ImageURL:      p.imageURL,
			StockQuantity: p.stock,
			IsFeatured:    p.featured,
		})
		if err != nil {
			return res, fmt.Errorf("product %q: %w", p.name, err)
		}
		res.Products++
	}
	return res, nil
}
