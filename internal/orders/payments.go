package orders

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// mpesaCodeShape matches M-PESA transaction codes: 6-10 alphanumerics.
var mpesaCodeShape = regexp.MustCompile(`^[A-Za-z0-9]{6,10}$`)

// StatusCache is an optional read-through cache for the payment status
// projection. A miss or cache failure falls back to the store.
type StatusCache interface {
	Get(ctx context.Context, orderID int64) (PaymentStatusView, bool)
	Set(ctx context.Context, view PaymentStatusView)
}

type nopStatusCache struct{}

func (nopStatusCache) Get(context.Context, int64) (PaymentStatusView, bool) {
	return PaymentStatusView{}, false
}
func (nopStatusCache) Set(context.Context, PaymentStatusView) {}

// Reconciler matches external payment evidence (manual code entry or provider
// webhook) to an order and advances its payment state exactly once. Both
// entry points funnel through Store.MarkPaid, the single serialized
// transition primitive.
type Reconciler struct {
	Store   Store
	Effects Dispatcher
	Cache   StatusCache
	Log     *zap.Logger
}

func NewReconciler(store Store, effects Dispatcher, cache StatusCache, log *zap.Logger) *Reconciler {
	if effects == nil {
		effects = NopDispatcher{}
	}
	if cache == nil {
		cache = nopStatusCache{}
	}
	return &Reconciler{Store: store, Effects: effects, Cache: cache, Log: log}
}

// VerifyPayment handles caller-supplied evidence. The phone number must match
// the order's recorded phone exactly; a mismatch is a hard reject.
func (r *Reconciler) VerifyPayment(ctx context.Context, orderID int64, mpesaCode, phone string) (*Order, error) {
	o, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != PaymentMpesa {
		return nil, &InvalidStateError{Msg: "order payment method is not mpesa"}
	}
	if o.PaymentVerified {
		return nil, &AlreadyVerifiedError{OrderID: orderID}
	}
	code := strings.TrimSpace(mpesaCode)
	if !mpesaCodeShape.MatchString(code) {
		return nil, Validationf("mpesa code must be 6-10 alphanumeric characters")
	}
	if strings.TrimSpace(phone) != o.CustomerPhone {
		return nil, Validationf("phone number does not match the order")
	}

	changed, err := r.Store.MarkPaid(ctx, orderID, code)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race to a concurrent verify or webhook.
		return nil, &AlreadyVerifiedError{OrderID: orderID}
	}

	o.MpesaCode = code
	o.PaymentVerified = true
	o.PaymentStatus = PaymentVerified
	if o.Invoice != nil {
		o.Invoice.PaymentStatus = InvoicePaid
		o.Invoice.PaymentMethod = string(PaymentMpesa)
	}
	r.Cache.Set(ctx, o.PaymentView())

	r.Log.Info("payment verified",
		zap.Int64("order_id", orderID),
		zap.String("mpesa_code", code))

	r.Effects.Dispatch(ctx, []Effect{{
		Kind: EffectPaymentVerified, Order: *o,
		NotifyAdmin: true, NotifyCustomer: o.CustomerEmail != "",
	}})
	return o, nil
}

// InitiatePush records a correlation id for a to-be-confirmed STK push. It is
// bookkeeping only; nothing is marked paid here. The amount is advisory (the
// caller may push a partial payment) and defaults to the order total.
func (r *Reconciler) InitiatePush(ctx context.Context, orderID int64, phone string, amount *decimal.Decimal) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", Validationf("phone_number is required")
	}
	if amount != nil && !amount.IsPositive() {
		return "", Validationf("amount must be positive")
	}
	o, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	pushAmount := o.TotalAmount
	if amount != nil {
		pushAmount = *amount
	}

	requestID := uuid.NewString()
	if err := r.Store.SetPushRequest(ctx, orderID, requestID); err != nil {
		return "", err
	}

	view := o.PaymentView()
	view.MpesaRequestID = requestID
	r.Cache.Set(ctx, view)

	r.Log.Info("mpesa push initiated",
		zap.Int64("order_id", orderID),
		zap.String("request_id", requestID),
		zap.String("amount", pushAmount.StringFixed(2)))
	return requestID, nil
}

// WebhookEvent is a provider callback. Delivery is at-least-once; handling
// must be safe to repeat.
type WebhookEvent struct {
	OrderID     *int64 `json:"order_id"`
	MpesaCode   string `json:"mpesa_code,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Status      string `json:"status"`
}

// WebhookResult reports what the handler did. Received is always true when no
// error is returned; Applied is true only for the call that actually made the
// transition.
type WebhookResult struct {
	Applied bool
	Ignored bool
}

var webhookSuccessTokens = map[string]bool{
	"SUCCESS":   true,
	"PAID":      true,
	"COMPLETED": true,
}

// HandleWebhook acknowledges every well-formed event for a known order. A
// non-success status is a no-op, not a failure; a duplicate success is a
// no-op transition with a tolerated repeat notification.
func (r *Reconciler) HandleWebhook(ctx context.Context, ev WebhookEvent) (WebhookResult, error) {
	if ev.OrderID == nil {
		return WebhookResult{}, Validationf("order_id is required")
	}
	o, err := r.Store.GetOrder(ctx, *ev.OrderID)
	if err != nil {
		return WebhookResult{}, err
	}

	if !webhookSuccessTokens[strings.ToUpper(strings.TrimSpace(ev.Status))] {
		r.Log.Info("webhook ignored",
			zap.Int64("order_id", *ev.OrderID),
			zap.String("status", ev.Status))
		return WebhookResult{Ignored: true}, nil
	}

	changed, err := r.Store.MarkPaid(ctx, *ev.OrderID, strings.TrimSpace(ev.MpesaCode))
	if err != nil {
		return WebhookResult{}, err
	}

	o.PaymentVerified = true
	o.PaymentStatus = PaymentVerified
	if ev.MpesaCode != "" {
		o.MpesaCode = strings.TrimSpace(ev.MpesaCode)
	}
	if o.Invoice != nil {
		o.Invoice.PaymentStatus = InvoicePaid
		o.Invoice.PaymentMethod = string(PaymentMpesa)
	}
	r.Cache.Set(ctx, o.PaymentView())

	if changed {
		r.Log.Info("payment verified via webhook", zap.Int64("order_id", *ev.OrderID))
	} else {
		r.Log.Info("duplicate webhook for verified order", zap.Int64("order_id", *ev.OrderID))
	}

	// Duplicate notifications are tolerated; delivery is best-effort anyway.
	r.Effects.Dispatch(ctx, []Effect{{
		Kind: EffectPaymentVerified, Order: *o,
		NotifyAdmin: true, NotifyCustomer: o.CustomerEmail != "",
	}})
	return WebhookResult{Applied: changed}, nil
}

// PaymentStatus serves the polling projection, cache first.
func (r *Reconciler) PaymentStatus(ctx context.Context, orderID int64) (PaymentStatusView, error) {
	if view, ok := r.Cache.Get(ctx, orderID); ok {
		return view, nil
	}
	o, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return PaymentStatusView{}, err
	}
	view := o.PaymentView()
	r.Cache.Set(ctx, view)
	return view, nil
}
