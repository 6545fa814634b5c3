package effects

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/orumagideon/morine-gypsum/internal/kafka"
	"github.com/orumagideon/morine-gypsum/internal/orders"
)

// Inline runs effects in-process, detached from the request so a slow SMTP
// server cannot hold the response. Used when no Kafka brokers are configured
// and in tests.
type Inline struct {
	Runner *Runner
	Log    *zap.Logger

	// Sync forces same-goroutine execution; tests use it.
	Sync bool
}

func (d *Inline) Dispatch(ctx context.Context, effs []orders.Effect) {
	run := func() {
		defer func() {
			if rec := recover(); rec != nil {
				d.Log.Error("effect runner panic", zap.Any("panic", rec))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, eff := range effs {
			d.Runner.Run(ctx, eff)
		}
	}
	if d.Sync {
		run()
		return
	}
	go run()
}

// Kafka publishes each effect as an event envelope; the notifier worker
// consumes them and runs the Runner there. Publication is fire-and-forget
// through the async producer.
type Kafka struct {
	Created  *kafkax.Producer
	Verified *kafkax.Producer
	Shipped  *kafkax.Producer
	Producer string // service name stamped into envelopes
	Log      *zap.Logger
}

func (d *Kafka) Dispatch(ctx context.Context, effs []orders.Effect) {
	for _, eff := range effs {
		var (
			prod      *kafkax.Producer
			eventType string
			payload   any
		)
		switch eff.Kind {
		case orders.EffectOrderCreated:
			prod, eventType = d.Created, orders.EventOrderCreated
			payload = orders.OrderCreatedPayload{
				Order: eff.Order, NotifyAdmin: eff.NotifyAdmin, NotifyCustomer: eff.NotifyCustomer,
			}
		case orders.EffectPaymentVerified:
			prod, eventType = d.Verified, orders.EventPaymentVerified
			payload = orders.PaymentVerifiedPayload{Order: eff.Order}
		case orders.EffectOrderShipped:
			prod, eventType = d.Shipped, orders.EventOrderShipped
			payload = orders.OrderShippedPayload{Order: eff.Order}
		default:
			d.Log.Warn("unknown effect kind", zap.String("kind", string(eff.Kind)))
			continue
		}

		env := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     eventType,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      d.Producer,
			CorrelationID: string(orders.PartitionKey(eff.Order.ID)),
			Payload:       kafkax.MustMarshal(payload),
		}
		prod.Publish(orders.PartitionKey(eff.Order.ID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}
