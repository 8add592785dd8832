package shop

import (
	"context"
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Cart mutates per-user carts. Every mutation runs in a transaction holding the
// user's cart lock so it serializes with a concurrent Checkout.
type Cart struct {
	Store Store
}

// MaxItemQuantity is the largest quantity a cart line may hold.
const MaxItemQuantity = math.MaxInt32

func checkQuantity(n int) error {
	if n > MaxItemQuantity {
		return &ValidationError{Field: "quantity", Message: "too large"}
	}
	return nil
}

func NewCart(s Store) *Cart { return &Cart{Store: s} }

// AddItem adds quantity of an active product. An existing line for the same
// product is incremented instead of duplicated.
func (c *Cart) AddItem(ctx context.Context, userID, productID int64, quantity int) (CartItem, error) {
	if quantity < 1 {
		return CartItem{}, &ValidationError{Field: "quantity", Message: "must be >= 1"}
	}
	if err := checkQuantity(quantity); err != nil {
		return CartItem{}, err
	}
	var out CartItem
	err := c.Store.InTx(ctx, func(q Queries) error {
		if err := q.LockCart(ctx, userID); err != nil {
			return err
		}
		p, err := q.ProductByID(ctx, productID, false)
		if err != nil {
			return err
		}
		out, err = q.UpsertCartItem(ctx, userID, productID, quantity)
		if err != nil {
			return err
		}
		// increment bisa melewati batas walau quantity-nya sendiri valid
		if err := checkQuantity(out.Quantity); err != nil {
			return err
		}
		out.Product = p
		return nil
	})
	return out, err
}

// UpdateItem sets the quantity of one of the user's cart lines. A quantity <= 0
// removes the line and reports removed=true.
func (c *Cart) UpdateItem(ctx context.Context, userID, cartItemID int64, quantity int) (item CartItem, removed bool, err error) {
	if err := checkQuantity(quantity); err != nil {
		return CartItem{}, false, err
	}
	err = c.Store.InTx(ctx, func(q Queries) error {
		if err := q.LockCart(ctx, userID); err != nil {
			return err
		}
		it, err := ownedItem(ctx, q, userID, cartItemID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			removed = true
			item = it
			return q.DeleteCartItem(ctx, it.ID)
		}
		if err := q.SetCartItemQuantity(ctx, it.ID, quantity); err != nil {
			return err
		}
		it.Quantity = quantity
		item = it
		return nil
	})
	return item, removed, err
}

// RemoveItem deletes a cart line. Missing lines are not an error.
func (c *Cart) RemoveItem(ctx context.Context, userID, cartItemID int64) error {
	return c.Store.InTx(ctx, func(q Queries) error {
		if err := q.LockCart(ctx, userID); err != nil {
			return err
		}
		it, err := ownedItem(ctx, q, userID, cartItemID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return q.DeleteCartItem(ctx, it.ID)
	})
}

// Clear empties the user's cart.
func (c *Cart) Clear(ctx context.Context, userID int64) error {
	return c.Store.InTx(ctx, func(q Queries) error {
		if err := q.LockCart(ctx, userID); err != nil {
			return err
		}
		return q.ClearCart(ctx, userID)
	})
}

// Items lists the cart with products joined, oldest line first.
func (c *Cart) Items(ctx context.Context, userID int64) ([]CartItem, error) {
	return c.Store.CartItems(ctx, userID)
}

// ComputeTotal sums product price × quantity. An empty cart totals zero.
func ComputeTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func ownedItem(ctx context.Context, q Queries, userID, id int64) (CartItem, error) {
	it, err := q.CartItemByID(ctx, id)
	if err != nil {
		return CartItem{}, err
	}
	if it.UserID != userID {
		return CartItem{}, ErrNotFound
	}
	return it, nil
}
