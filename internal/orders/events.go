package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventPaymentVerified = "PaymentVerified"
	EventOrderShipped    = "OrderShipped"
)

// Envelope is the versioned wrapper for every published event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// Payloads carry the full order snapshot so the notifier worker never has to
// read the database.

type OrderCreatedPayload struct {
	Order          Order `json:"order"`
	NotifyAdmin    bool  `json:"notify_admin"`
	NotifyCustomer bool  `json:"notify_customer"`
}

type PaymentVerifiedPayload struct {
	Order Order `json:"order"`
}

type OrderShippedPayload struct {
	Order Order `json:"order"`
}
