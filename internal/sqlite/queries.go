package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct{ db dbtx }

var _ shop.Queries = (*queries)(nil)

const productCols = `p.id, p.name, p.description, p.price, p.category_id, COALESCE(c.name, ''),
	p.image_url, p.stock_quantity, p.is_featured, p.is_active, p.created_at`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

type scanner interface{ Scan(dest ...any) error }

func scanProduct(s scanner, p *shop.Product, extra ...any) error {
	dest := []any{&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.CategoryName,
		&p.ImageURL, &p.StockQuantity, &p.IsFeatured, &p.IsActive, &p.CreatedAt}
	return s.Scan(append(dest, extra...)...)
}

func now() time.Time { return time.Now().UTC() }

func isUnique(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return shop.ErrNotFound
	}
	return err
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return shop.ErrNotFound
	}
	return nil
}

// ---- users ----

func (q *queries) CreateUser(ctx context.Context, u *shop.User) error {
	u.CreatedAt = now()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO users(email, full_name, password_hash, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`, u.Email, u.FullName, u.PasswordHash, u.IsActive, u.CreatedAt)
	if isUnique(err) {
		return &shop.ValidationError{Field: "email", Message: "already registered"}
	}
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

const userCols = `id, email, full_name, password_hash, is_active, created_at`

func (q *queries) UserByID(ctx context.Context, id int64) (shop.User, error) {
	return q.user(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
}

func (q *queries) UserByEmail(ctx context.Context, email string) (shop.User, error) {
	return q.user(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
}

func (q *queries) user(ctx context.Context, query string, arg any) (shop.User, error) {
	var u shop.User
	err := q.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return shop.User{}, notFound(err)
	}
	return u, nil
}

// ---- catalog ----

func (q *queries) CreateCategory(ctx context.Context, c *shop.Category) error {
	res, err := q.db.ExecContext(ctx, `INSERT INTO categories(name, description) VALUES (?, ?)`,
		c.Name, c.Description)
	if isUnique(err) {
		return &shop.ValidationError{Field: "name", Message: "category already exists"}
	}
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (q *queries) ListCategories(ctx context.Context) ([]shop.Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY id`)
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
	p.CreatedAt = now()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO products(name, description, price, category_id, image_url,
		                     stock_quantity, is_featured, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Price.String(), p.CategoryID, p.ImageURL,
		p.StockQuantity, p.IsFeatured, p.IsActive, p.CreatedAt)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (q *queries) ListProducts(ctx context.Context, f shop.ProductFilter) ([]shop.Product, error) {
	where := []string{"p.is_active = 1"}
	var args []any
	if f.Category != "" {
		where = append(where, "c.name = ?")
		args = append(args, f.Category)
	}
	if f.Search != "" {
		where = append(where, "instr(lower(p.name), lower(?)) > 0")
		args = append(args, f.Search)
	}
	args = append(args, f.Limit, f.Skip)
	return q.products(ctx, `SELECT `+productCols+productFrom+
		` WHERE `+strings.Join(where, " AND ")+` ORDER BY p.id LIMIT ? OFFSET ?`, args...)
}

func (q *queries) FeaturedProducts(ctx context.Context, limit int) ([]shop.Product, error) {
	return q.products(ctx, `SELECT `+productCols+productFrom+`
		WHERE p.is_featured = 1 AND p.is_active = 1 ORDER BY p.id LIMIT ?`, limit)
}

func (q *queries) RelatedProducts(ctx context.Context, categoryID, excludeID int64, limit int) ([]shop.Product, error) {
	return q.products(ctx, `SELECT `+productCols+productFrom+`
		WHERE p.category_id = ? AND p.id <> ? AND p.is_active = 1 ORDER BY p.id LIMIT ?`,
		categoryID, excludeID, limit)
}

func (q *queries) products(ctx context.Context, query string, args ...any) ([]shop.Product, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) ProductByID(ctx context.Context, id int64, includeInactive bool) (shop.Product, error) {
	query := `SELECT ` + productCols + productFrom + ` WHERE p.id = ?`
	if !includeInactive {
		query += ` AND p.is_active = 1`
	}
	var p shop.Product
	if err := scanProduct(q.db.QueryRowContext(ctx, query, id), &p); err != nil {
		return shop.Product{}, notFound(err)
	}
	return p, nil
}

func (q *queries) SetProductPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	return mustAffect(q.db.ExecContext(ctx, `UPDATE products SET price = ? WHERE id = ?`, price.String(), id))
}

func (q *queries) SetProductActive(ctx context.Context, id int64, active bool) error {
	return mustAffect(q.db.ExecContext(ctx, `UPDATE products SET is_active = ? WHERE id = ?`, active, id))
}

func (q *queries) AdjustStock(ctx context.Context, id int64, delta int) (shop.Product, error) {
	err := mustAffect(q.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + ? WHERE id = ?`, delta, id))
	if err != nil {
		return shop.Product{}, err
	}
	return q.ProductByID(ctx, id, true)
}

// ---- cart ----

// LockCart only checks that the user exists: the enclosing BEGIN IMMEDIATE
// already excludes other writers.
func (q *queries) LockCart(ctx context.Context, userID int64) error {
	var id int64
	err := q.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?`, userID).Scan(&id)
	return notFound(err)
}

const cartCols = `ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at`

func (q *queries) CartItems(ctx context.Context, userID int64) ([]shop.CartItem, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+productCols+`, `+cartCols+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = ? ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.CartItem
	for rows.Next() {
		var it shop.CartItem
		if err := scanProduct(rows, &it.Product,
			&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (q *queries) CartItemByID(ctx context.Context, id int64) (shop.CartItem, error) {
	var it shop.CartItem
	err := q.db.QueryRowContext(ctx, `SELECT `+cartCols+` FROM cart_items ci WHERE ci.id = ?`, id).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt)
	if err != nil {
		return shop.CartItem{}, notFound(err)
	}
	return it, nil
}

func (q *queries) UpsertCartItem(ctx context.Context, userID, productID int64, quantity int) (shop.CartItem, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + excluded.quantity
		RETURNING id`,
		userID, productID, quantity, now()).Scan(&id)
	if err != nil {
		return shop.CartItem{}, fmt.Errorf("upsert cart item: %w", err)
	}
	return q.CartItemByID(ctx, id)
}

func (q *queries) SetCartItemQuantity(ctx context.Context, id int64, quantity int) error {
	return mustAffect(q.db.ExecContext(ctx, `UPDATE cart_items SET quantity = ? WHERE id = ?`, quantity, id))
}

func (q *queries) DeleteCartItem(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ?`, id)
	return err
}

func (q *queries) ClearCart(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}

// ---- orders ----

func (q *queries) InsertOrder(ctx context.Context, o *shop.Order) error {
	o.CreatedAt = now()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO orders(user_id, total_amount, status, shipping_address, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.UserID, o.TotalAmount.String(), string(o.Status), o.ShippingAddress, o.CreatedAt)
	if err != nil {
		return err
	}
	o.ID, err = res.LastInsertId()
	return err
}

func (q *queries) InsertOrderItem(ctx context.Context, it *shop.OrderItem) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO order_items(order_id, product_id, quantity, price) VALUES (?, ?, ?, ?)`,
		it.OrderID, it.ProductID, it.Quantity, it.Price.String())
	if err != nil {
		return err
	}
	it.ID, err = res.LastInsertId()
	return err
}

const orderCols = `o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.created_at`

func scanOrder(s scanner, o *shop.Order) error {
	return s.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.ShippingAddress, &o.CreatedAt)
}

func (q *queries) OrderByID(ctx context.Context, id int64) (shop.Order, error) {
	var o shop.Order
	if err := scanOrder(q.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders o WHERE o.id = ?`, id), &o); err != nil {
		return shop.Order{}, notFound(err)
	}
	items, err := q.orderItems(ctx, `WHERE oi.order_id = ?`, id)
	if err != nil {
		return shop.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (q *queries) OrdersByUser(ctx context.Context, userID int64) ([]shop.Order, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders o
		WHERE o.user_id = ? ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Order
	for rows.Next() {
		var o shop.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := q.orderItems(ctx, `JOIN orders o ON o.id = oi.order_id WHERE o.user_id = ?`, userID)
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
	rows, err := q.db.QueryContext(ctx, `SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, `+productCols+`
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
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.CategoryName,
			&p.ImageURL, &p.StockQuantity, &p.IsFeatured, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		it.Product = &p
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (q *queries) SetOrderStatus(ctx context.Context, id int64, status shop.Status) error {
	return mustAffect(q.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), id))
}
