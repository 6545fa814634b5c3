package effects

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/orumagideon/morine-gypsum/internal/kafka"
	"github.com/orumagideon/morine-gypsum/internal/orders"
	"github.com/orumagideon/morine-gypsum/internal/redisx"
)

// Worker turns consumed event envelopes back into effects and runs them.
// Consumption is at-least-once; the Redis dedup key keeps a redelivered
// envelope from sending the same email twice.
type Worker struct {
	Runner      *Runner
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

func (w *Worker) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	if w.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, w.ServiceName, env.EventID)
		exists, _ := redisx.Exists(ctx, w.Redis, dkey)
		if exists {
			return nil
		}
		_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	eff, ok, err := effectFromEnvelope(env)
	if err != nil {
		// A payload we cannot decode will never decode; drop it.
		w.Log.Warn("dropping undecodable event",
			zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	w.Runner.Run(ctx, eff)
	return nil
}

func effectFromEnvelope(env orders.Envelope) (orders.Effect, bool, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return orders.Effect{}, false, err
		}
		return orders.Effect{
			Kind: orders.EffectOrderCreated, Order: p.Order,
			NotifyAdmin: p.NotifyAdmin, NotifyCustomer: p.NotifyCustomer,
		}, true, nil
	case orders.EventPaymentVerified:
		p, err := kafkax.UnwrapPayload[orders.PaymentVerifiedPayload](env.Payload)
		if err != nil {
			return orders.Effect{}, false, err
		}
		return orders.Effect{
			Kind: orders.EffectPaymentVerified, Order: p.Order,
			NotifyAdmin: true, NotifyCustomer: p.Order.CustomerEmail != "",
		}, true, nil
	case orders.EventOrderShipped:
		p, err := kafkax.UnwrapPayload[orders.OrderShippedPayload](env.Payload)
		if err != nil {
			return orders.Effect{}, false, err
		}
		return orders.Effect{
			Kind: orders.EffectOrderShipped, Order: p.Order,
			NotifyCustomer: p.Order.CustomerEmail != "",
		}, true, nil
	}
	return orders.Effect{}, false, nil
}
