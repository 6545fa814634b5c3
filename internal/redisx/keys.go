package redisx

import "time"

const (
	// Payment status projection: payment_status:{order_id} -> JSON projection
	KeyPaymentStatus = "payment_status:%d"

	// Dedup for effect processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPaymentStatus = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
)
