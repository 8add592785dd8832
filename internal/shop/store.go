package shop

import (
	"context"

	"github.com/shopspring/decimal"
)

// Queries is the data access surface shared by a Store and the transaction
// handle it passes to InTx. Single-row lookups return ErrNotFound.
type Queries interface {
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id int64) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)

	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	FeaturedProducts(ctx context.Context, limit int) ([]Product, error)
	RelatedProducts(ctx context.Context, categoryID, excludeID int64, limit int) ([]Product, error)
	ProductByID(ctx context.Context, id int64, includeInactive bool) (Product, error)
	SetProductPrice(ctx context.Context, id int64, price decimal.Decimal) error
	SetProductActive(ctx context.Context, id int64, active bool) error
	AdjustStock(ctx context.Context, id int64, delta int) (Product, error)

	// LockCart serializes cart mutations for one user until the surrounding
	// transaction ends.
	LockCart(ctx context.Context, userID int64) error
	CartItems(ctx context.Context, userID int64) ([]CartItem, error)
	CartItemByID(ctx context.Context, id int64) (CartItem, error)
	// UpsertCartItem inserts (user, product) or adds quantity to the existing row.
	UpsertCartItem(ctx context.Context, userID, productID int64, quantity int) (CartItem, error)
	SetCartItemQuantity(ctx context.Context, id int64, quantity int) error
	DeleteCartItem(ctx context.Context, id int64) error
	ClearCart(ctx context.Context, userID int64) error

	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItem(ctx context.Context, it *OrderItem) error
	OrderByID(ctx context.Context, id int64) (Order, error)
	OrdersByUser(ctx context.Context, userID int64) ([]Order, error)
	SetOrderStatus(ctx context.Context, id int64, status Status) error
}

// Store is the persistent store. InTx runs fn in one transaction: commit when
// fn returns nil, rollback otherwise.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}
