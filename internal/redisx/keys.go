package redisx

import "time"

const (
	// Checkout replay: idem:checkout:{buyer_id}:{idempotency_key} -> response JSON
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Provider callback in flight: lock:callback:{txn_ref}
	KeyCallbackLock = "lock:callback:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Pub/sub fan-out per user: notifications:{user_id}
	ChannelNotifications = "notifications:%s"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLCallbackLock = 30 * time.Second
	TTLStatusCache  = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
