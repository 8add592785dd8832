package shop

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Catalog serves product and category reads. It never caches: every call
// reads the current persisted state.
type Catalog struct {
	Store Store
}

func NewCatalog(s Store) *Catalog { return &Catalog{Store: s} }

// ListProducts returns active products filtered by exact category name and by
// case-insensitive substring of the product name.
func (c *Catalog) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	f = f.Normalized()
	f.Search = strings.TrimSpace(f.Search)
	return c.Store.ListProducts(ctx, f)
}

// GetProduct looks up an active product.
func (c *Catalog) GetProduct(ctx context.Context, id int64) (Product, error) {
	return c.Store.ProductByID(ctx, id, false)
}

// GetProductAnyState includes deactivated products. Order history uses it.
func (c *Catalog) GetProductAnyState(ctx context.Context, id int64) (Product, error) {
	return c.Store.ProductByID(ctx, id, true)
}

func (c *Catalog) FeaturedProducts(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	return c.Store.FeaturedProducts(ctx, limit)
}

func (c *Catalog) RelatedProducts(ctx context.Context, categoryID, excludeID int64, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	return c.Store.RelatedProducts(ctx, categoryID, excludeID, limit)
}

func (c *Catalog) ListCategories(ctx context.Context) ([]Category, error) {
	return c.Store.ListCategories(ctx)
}

// AdjustStock applies stock_quantity += delta. There is no floor: callers that
// need non-negative stock must check availability first.
func (c *Catalog) AdjustStock(ctx context.Context, productID int64, delta int) (Product, error) {
	return c.Store.AdjustStock(ctx, productID, delta)
}

func (c *Catalog) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, &ValidationError{Field: "name", Message: "required"}
	}
	cat := Category{Name: name, Description: description}
	if err := c.Store.CreateCategory(ctx, &cat); err != nil {
		return Category{}, err
	}
	return cat, nil
}

// CreateProduct inserts p as an active product.
func (c *Catalog) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Product{}, &ValidationError{Field: "name", Message: "required"}
	}
	if err := checkPrice(p.Price); err != nil {
		return Product{}, err
	}
	if p.StockQuantity < 0 {
		return Product{}, &ValidationError{Field: "stock_quantity", Message: "must be >= 0"}
	}
	p.IsActive = true
	if err := c.Store.CreateProduct(ctx, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// SetPrice changes the live price. Existing order items keep their snapshot.
func (c *Catalog) SetPrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	if err := checkPrice(price); err != nil {
		return err
	}
	return c.Store.SetProductPrice(ctx, productID, price)
}

// SetActive soft-(de)activates a product. Products are never deleted.
func (c *Catalog) SetActive(ctx context.Context, productID int64, active bool) error {
	return c.Store.SetProductActive(ctx, productID, active)
}

func checkPrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return &ValidationError{Field: "price", Message: "must be >= 0"}
	}
	// kolom NUMERIC(12,2): jangan biarkan postgres membulatkan diam-diam
	if !p.Equal(p.Round(2)) {
		return &ValidationError{Field: "price", Message: "at most 2 decimal places"}
	}
	return nil
}
