package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/redis/go-redis/v9"
)

// Cache groups the storefront's Redis usages. The database stays the source of
// truth: a nil *Cache (or nil client) turns every method into a miss/no-op.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

func (c *Cache) off() bool { return c == nil || c.rdb == nil }

// CheckoutOrder returns the order id remembered for an Idempotency-Key.
func (c *Cache) CheckoutOrder(ctx context.Context, userID int64, key string) (int64, bool, error) {
	if c.off() || key == "" {
		return 0, false, nil
	}
	s, err := c.rdb.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency value %q: %w", s, err)
	}
	return id, true, nil
}

func (c *Cache) RememberCheckout(ctx context.Context, userID int64, key string, orderID int64) error {
	if c.off() || key == "" {
		return nil
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), orderID, TTLIdempotency).Err()
}

// CachedStatus is what the order status cache holds. The owner is kept so the
// HTTP layer can answer ownership checks without a database round trip.
type CachedStatus struct {
	UserID int64       `json:"user_id"`
	Status shop.Status `json:"status"`
}

// OrderStatus returns the cached status of an order.
func (c *Cache) OrderStatus(ctx context.Context, orderID int64) (CachedStatus, bool) {
	if c.off() {
		return CachedStatus{}, false
	}
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if err != nil || len(b) == 0 {
		return CachedStatus{}, false
	}
	var cs CachedStatus
	if err := json.Unmarshal(b, &cs); err != nil || !cs.Status.Valid() {
		return CachedStatus{}, false
	}
	return cs, true
}

func (c *Cache) SetOrderStatus(ctx context.Context, o shop.Order) error {
	if c.off() {
		return nil
	}
	b, err := json.Marshal(CachedStatus{UserID: o.UserID, Status: o.Status})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, o.ID), b, TTLStatusCache).Err()
}

func (c *Cache) ForgetOrderStatus(ctx context.Context, orderID int64) error {
	if c.off() {
		return nil
	}
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// Revoke implements auth.Revoker.
func (c *Cache) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if c.off() {
		return errors.New("redis not configured")
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyRevokedToken, tokenID), "1", ttl).Err()
}

// IsRevoked implements auth.Revoker.
func (c *Cache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if c.off() {
		return false, nil
	}
	return Exists(ctx, c.rdb, fmt.Sprintf(KeyRevokedToken, tokenID))
}

// FirstDelivery marks eventID as processed by service and reports whether this
// call was the first one to do so.
func (c *Cache) FirstDelivery(ctx context.Context, service, eventID string) (bool, error) {
	if c.off() {
		return true, nil
	}
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

func (c *Cache) ForgetDelivery(ctx context.Context, service, eventID string) error {
	if c.off() {
		return nil
	}
	return c.rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
