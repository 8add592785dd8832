package redisx

import "time"

const (
	// Idempotency checkout: idem:checkout:{user_id}:{key} -> order_id
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Cache status order: order_status:{order_id} -> {"user_id": ..., "status": "..."}
	KeyOrderStatus = "order_status:%d"

	// Logout: revoked:{token_id} -> 1, TTL = sisa umur token
	KeyRevokedToken = "revoked:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
