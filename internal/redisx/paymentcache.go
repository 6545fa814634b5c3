package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orumagideon/morine-gypsum/internal/orders"
)

// PaymentCache keeps the payment status projection warm for polling clients.
// Failures degrade to DB reads, so every error here is swallowed.
type PaymentCache struct {
	RDB *redis.Client
}

func (c *PaymentCache) Get(ctx context.Context, orderID int64) (orders.PaymentStatusView, bool) {
	key := fmt.Sprintf(KeyPaymentStatus, orderID)
	s, err := c.RDB.Get(ctx, key).Result()
	if err != nil || s == "" {
		return orders.PaymentStatusView{}, false
	}
	var view orders.PaymentStatusView
	if err := json.Unmarshal([]byte(s), &view); err != nil {
		return orders.PaymentStatusView{}, false
	}
	return view, true
}

func (c *PaymentCache) Set(ctx context.Context, view orders.PaymentStatusView) {
	key := fmt.Sprintf(KeyPaymentStatus, view.OrderID)
	b, err := json.Marshal(view)
	if err != nil {
		return
	}
	_ = c.RDB.Set(ctx, key, b, TTLPaymentStatus).Err()
}
