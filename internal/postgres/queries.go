package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct{ db dbtx }

var _ shop.Queries = (*queries)(nil)

const productCols = `p.id, p.name, p.description, p.price, p.category_id, COALESCE(c.name, ''),
	p.image_url, p.stock_quantity, p.is_featured, p.is_active, p.created_at`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

func productDest(p *shop.Product) []any {
	return []any{&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.CategoryName,
		&p.ImageURL, &p.StockQuantity, &p.IsFeatured, &p.IsActive, &p.CreatedAt}
}

func isUnique(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == "23505"
}

// numeric_value_out_of_range
func isOutOfRange(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == "22003"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.ErrNotFound
	}
	return err
}

func mustAffect(ct pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return shop.ErrNotFound
	}
	return nil
}

// ---- users ----

func (q *queries) CreateUser(ctx context.Context, u *shop.User) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO users(email, full_name, password_hash, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, u.Email, u.FullName, u.PasswordHash, u.IsActive).
		Scan(&u.ID, &u.CreatedAt)
	if isUnique(err) {
		return &shop.ValidationError{Field: "email", Message: "already registered"}
	}
	return err
}

const userCols = `id, email, full_name, password_hash, is_active, created_at`

func (q *queries) UserByID(ctx context.Context, id int64) (shop.User, error) {
	return q.user(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (q *queries) UserByEmail(ctx context.Context, email string) (shop.User, error) {
	return q.user(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email)
}

func (q *queries) user(ctx context.Context, sql string, arg any) (shop.User, error) {
	var u shop.User
	err := q.db.QueryRow(ctx, sql, arg).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return shop.User{}, notFound(err)
	}
	return u, nil
}

// ---- catalog ----

func (q *queries) CreateCategory(ctx context.Context, c *shop.Category) error {
	err := q.db.QueryRow(ctx, `INSERT INTO categories(name, description) VALUES ($1, $2) RETURNING id`,
		c.Name, c.Description).Scan(&c.ID)
	if isUnique(err) {
		return &shop.ValidationError{Field: "name", Message: "category already exists"}
	}
	return err
}

func (q *queries) ListCategories(ctx context.Context) ([]shop.Category, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, description FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Category
	for rows.Next() {
		var c shop.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) CreateProduct(ctx context.Context, p *shop.Product) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO products(name, description, price, category_id, image_url,
		                     stock_quantity, is_featured, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		p.Name, p.Description, p.Price.String(), p.CategoryID, p.ImageURL,
		p.StockQuantity, p.IsFeatured, p.IsActive).Scan(&p.ID, &p.CreatedAt)
}

func (q *queries) ListProducts(ctx context.Context, f shop.ProductFilter) ([]shop.Product, error) {
	where := []string{"p.is_active"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Category != "" {
		where = append(where, "c.name = "+arg(f.Category))
	}
	if f.Search != "" {
		where = append(where, "strpos(lower(p.name), lower("+arg(f.Search)+")) > 0")
	}
	sql := `SELECT ` + productCols + productFrom + ` WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY p.id LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Skip)
	return q.products(ctx, sql, args...)
}

func (q *queries) FeaturedProducts(ctx context.Context, limit int) ([]shop.Product, error) {
	return q.products(ctx, `SELECT `+productCols+productFrom+`
		WHERE p.is_featured AND p.is_active ORDER BY p.id LIMIT $1`, limit)
}

func (q *queries) RelatedProducts(ctx context.Context, categoryID, excludeID int64, limit int) ([]shop.Product, error) {
	return q.products(ctx, `SELECT `+productCols+productFrom+`
		WHERE p.category_id = $1 AND p.id <> $2 AND p.is_active ORDER BY p.id LIMIT $3`,
		categoryID, excludeID, limit)
}

func (q *queries) products(ctx context.Context, sql string, args ...any) ([]shop.Product, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(productDest(&p)...); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) ProductByID(ctx context.Context, id int64, includeInactive bool) (shop.Product, error) {
	sql := `SELECT ` + productCols + productFrom + ` WHERE p.id = $1`
	if !includeInactive {
		sql += ` AND p.is_active`
	}
	var p shop.Product
	if err := q.db.QueryRow(ctx, sql, id).Scan(productDest(&p)...); err != nil {
		return shop.Product{}, notFound(err)
	}
	return p, nil
}

func (q *queries) SetProductPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	return mustAffect(q.db.Exec(ctx, `UPDATE products SET price = $2 WHERE id = $1`, id, price.String()))
}

func (q *queries) SetProductActive(ctx context.Context, id int64, active bool) error {
	return mustAffect(q.db.Exec(ctx, `UPDATE products SET is_active = $2 WHERE id = $1`, id, active))
}

func (q *queries) AdjustStock(ctx context.Context, id int64, delta int) (shop.Product, error) {
	err := mustAffect(q.db.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $2 WHERE id = $1`, id, delta))
	if err != nil {
		return shop.Product{}, err
	}
	return q.ProductByID(ctx, id, true)
}

// ---- cart ----

// LockCart takes a row lock on the user; every cart mutation and checkout for
// that user queues behind it until the transaction ends.
func (q *queries) LockCart(ctx context.Context, userID int64) error {
	var id int64
	err := q.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	return notFound(err)
}

const cartCols = `ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at`

func (q *queries) CartItems(ctx context.Context, userID int64) ([]shop.CartItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productCols+`, `+cartCols+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = $1 ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.CartItem
	for rows.Next() {
		var it shop.CartItem
		dest := append(productDest(&it.Product), &it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (q *queries) CartItemByID(ctx context.Context, id int64) (shop.CartItem, error) {
	var it shop.CartItem
	err := q.db.QueryRow(ctx, `SELECT `+cartCols+` FROM cart_items ci WHERE ci.id = $1`, id).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt)
	if err != nil {
		return shop.CartItem{}, notFound(err)
	}
	return it, nil
}

func (q *queries) UpsertCartItem(ctx context.Context, userID, productID int64, quantity int) (shop.CartItem, error) {
	var it shop.CartItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, quantity, created_at`, userID, productID, quantity).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt)
	if isOutOfRange(err) {
		return shop.CartItem{}, &shop.ValidationError{Field: "quantity", Message: "too large"}
	}
	if err != nil {
		return shop.CartItem{}, fmt.Errorf("upsert cart item: %w", err)
	}
	return it, nil
}

func (q *queries) SetCartItemQuantity(ctx context.Context, id int64, quantity int) error {
	return mustAffect(q.db.Exec(ctx, `UPDATE cart_items SET quantity = $2 WHERE id = $1`, id, quantity))
}

func (q *queries) DeleteCartItem(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	return err
}

func (q *queries) ClearCart(ctx context.Context, userID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

// ---- orders ----

func (q *queries) InsertOrder(ctx context.Context, o *shop.Order) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO orders(user_id, total_amount, status, shipping_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		o.UserID, o.TotalAmount.String(), string(o.Status), o.ShippingAddress).Scan(&o.ID, &o.CreatedAt)
}

func (q *queries) InsertOrderItem(ctx context.Context, it *shop.OrderItem) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, it.OrderID, it.ProductID, it.Quantity, it.Price.String()).Scan(&it.ID)
}

const orderCols = `o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.created_at`

func orderDest(o *shop.Order) []any {
	return []any{&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.ShippingAddress, &o.CreatedAt}
}

func (q *queries) OrderByID(ctx context.Context, id int64) (shop.Order, error) {
	var o shop.Order
	if err := q.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders o WHERE o.id = $1`, id).Scan(orderDest(&o)...); err != nil {
		return shop.Order{}, notFound(err)
	}
	items, err := q.orderItems(ctx, `WHERE oi.order_id = $1`, id)
	if err != nil {
		return shop.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (q *queries) OrdersByUser(ctx context.Context, userID int64) ([]shop.Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderCols+` FROM orders o
		WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	var out []shop.Order
	for rows.Next() {
		var o shop.Order
		if err := rows.Scan(orderDest(&o)...); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := q.orderItems(ctx, `JOIN orders o ON o.id = oi.order_id WHERE o.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// orderItems loads items keyed by order id. Products are joined in any state.
func (q *queries) orderItems(ctx context.Context, where string, arg any) (map[int64][]shop.OrderItem, error) {
	rows, err := q.db.Query(ctx, `SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, `+productCols+`
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		`+where+` ORDER BY oi.id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]shop.OrderItem{}
	for rows.Next() {
		var (
			it shop.OrderItem
			p  shop.Product
		)
		dest := append([]any{&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price}, productDest(&p)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		it.Product = &p
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (q *queries) SetOrderStatus(ctx context.Context, id int64, status shop.Status) error {
	return mustAffect(q.db.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status)))
}
