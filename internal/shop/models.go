package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	CategoryID    int64           `json:"category_id"`
	CategoryName  string          `json:"category_name,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
	IsFeatured    bool            `json:"is_featured"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CartItem is one product line in a user's cart. Product is joined on read.
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	Product   Product   `json:"product"`
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          Status          `json:"status"` // lihat status.go
	ShippingAddress string          `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem freezes the product price at checkout time. Product is joined on
// read regardless of is_active so history keeps rendering deactivated products.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *Product        `json:"product,omitempty"`
}

// Subtotal is Price × Quantity.
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type ProductFilter struct {
	Category string
	Search   string
	Skip     int
	Limit    int
}

const (
	DefaultPageLimit     = 100
	DefaultFeaturedLimit = 8
	DefaultRelatedLimit  = 4
)

// Normalized returns the filter with paging defaults applied.
func (f ProductFilter) Normalized() ProductFilter {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	return f
}
