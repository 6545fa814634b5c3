package orders

import "context"

type EffectKind string

const (
	EffectOrderCreated    EffectKind = "order_created"
	EffectPaymentVerified EffectKind = "payment_verified"
	EffectOrderShipped    EffectKind = "order_shipped"
)

// Effect describes one post-commit side effect. The transactional core only
// produces these; executing them (PDF rendering, email, event publication) is
// the dispatcher's problem and can never fail the committed operation.
type Effect struct {
	Kind  EffectKind
	Order Order

	// For order_created: which notifications were requested.
	NotifyAdmin    bool
	NotifyCustomer bool
}

// Dispatcher runs effects best-effort. Implementations must swallow and log
// failures; Dispatch is called after the owning transaction has committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, effects []Effect)
}

// NopDispatcher drops all effects.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, []Effect) {}
