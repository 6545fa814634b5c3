package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Service, *fakeStore, *captureDispatcher) {
	t.Helper()
	store := newFakeStore()
	disp := &captureDispatcher{}
	svc := NewService(store, disp, zap.NewNop(), false)
	rec := NewReconciler(store, disp, nil, zap.NewNop())
	return rec, svc, store, disp
}

func mpesaOrder(t *testing.T, svc *Service, store *fakeStore) *Order {
	t.Helper()
	store.addProduct(1, "Gypsum Board", 100, 10)
	o, err := svc.SubmitOrder(context.Background(), validCart())
	require.NoError(t, err)
	return o
}

func TestVerifyPayment(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	verified, err := rec.VerifyPayment(context.Background(), o.ID, "AB12CD", "0712345678")
	require.NoError(t, err)
	assert.True(t, verified.PaymentVerified)
	assert.Equal(t, PaymentVerified, verified.PaymentStatus)
	assert.Equal(t, "AB12CD", verified.MpesaCode)

	stored, err := store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaymentVerified)
	require.NotNil(t, stored.Invoice)
	assert.Equal(t, InvoicePaid, stored.Invoice.PaymentStatus)
}

func TestVerifyPaymentTwice(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	_, err := rec.VerifyPayment(context.Background(), o.ID, "AB12CD", "0712345678")
	require.NoError(t, err)

	_, err = rec.VerifyPayment(context.Background(), o.ID, "AB12CD", "0712345678")
	var av *AlreadyVerifiedError
	require.ErrorAs(t, err, &av)
	assert.Equal(t, o.ID, av.OrderID)

	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.Equal(t, "AB12CD", stored.MpesaCode)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	rec, _, _, _ := newTestReconciler(t)
	_, err := rec.VerifyPayment(context.Background(), 404, "AB12CD", "0712345678")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestVerifyPaymentWrongMethod(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	store.addProduct(1, "Gypsum Board", 100, 10)

	in := validCart()
	in.PaymentMethod = PaymentCashOnDelivery
	o, err := svc.SubmitOrder(context.Background(), in)
	require.NoError(t, err)

	_, err = rec.VerifyPayment(context.Background(), o.ID, "AB12CD", "0712345678")
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
}

func TestVerifyPaymentCodeShape(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	for _, code := range []string{"", "AB1", "ABCDEFGHIJK", "AB12-CD", "AB 12CD"} {
		_, err := rec.VerifyPayment(context.Background(), o.ID, code, "0712345678")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "code %q", code)
	}

	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.False(t, stored.PaymentVerified)
}

func TestVerifyPaymentPhoneMismatch(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	_, err := rec.VerifyPayment(context.Background(), o.ID, "AB12CD", "0799999999")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.False(t, stored.PaymentVerified)
	assert.Equal(t, PaymentPending, stored.PaymentStatus)
}

func TestVerifyAndWebhookRace(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0

	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := rec.VerifyPayment(context.Background(), o.ID, "AB12CD", "0712345678"); err == nil {
			mu.Lock()
			transitions++
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		res, err := rec.HandleWebhook(context.Background(), WebhookEvent{OrderID: &o.ID, Status: "SUCCESS"})
		if err == nil && res.Applied {
			mu.Lock()
			transitions++
			mu.Unlock()
		}
	}()
	wg.Wait()

	assert.Equal(t, 1, transitions)
	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.True(t, stored.PaymentVerified)
	assert.Equal(t, PaymentVerified, stored.PaymentStatus)
}

func TestInitiatePush(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	requestID, err := rec.InitiatePush(context.Background(), o.ID, "0712345678", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, requestID)

	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.Equal(t, requestID, stored.MpesaRequestID)
	assert.False(t, stored.PaymentVerified, "push must not mark anything paid")
}

func TestInitiatePushRequiresPhone(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	_, err := rec.InitiatePush(context.Background(), o.ID, "", nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestInitiatePushPartialAmount(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	amount := decimal.NewFromInt(350)
	requestID, err := rec.InitiatePush(context.Background(), o.ID, "0712345678", &amount)
	require.NoError(t, err)
	assert.NotEmpty(t, requestID)

	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.False(t, stored.PaymentVerified, "a partial push changes no payment state")
}

func TestInitiatePushRejectsNonPositiveAmount(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	for _, amt := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-100)} {
		amt := amt
		_, err := rec.InitiatePush(context.Background(), o.ID, "0712345678", &amt)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "amount %s", amt)
	}
}

func TestWebhookMissingOrderID(t *testing.T) {
	rec, _, _, _ := newTestReconciler(t)
	_, err := rec.HandleWebhook(context.Background(), WebhookEvent{Status: "SUCCESS"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestWebhookUnknownOrder(t *testing.T) {
	rec, _, _, _ := newTestReconciler(t)
	id := int64(404)
	_, err := rec.HandleWebhook(context.Background(), WebhookEvent{OrderID: &id, Status: "SUCCESS"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestWebhookNonSuccessIgnored(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	res, err := rec.HandleWebhook(context.Background(), WebhookEvent{OrderID: &o.ID, Status: "FAILED"})
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.False(t, res.Applied)

	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.False(t, stored.PaymentVerified)
	assert.Equal(t, PaymentPending, stored.PaymentStatus)
}

func TestWebhookSuccessTokens(t *testing.T) {
	for _, status := range []string{"SUCCESS", "success", "Paid", "COMPLETED", " completed "} {
		t.Run(status, func(t *testing.T) {
			rec, svc, store, _ := newTestReconciler(t)
			o := mpesaOrder(t, svc, store)

			res, err := rec.HandleWebhook(context.Background(), WebhookEvent{OrderID: &o.ID, Status: status})
			require.NoError(t, err)
			assert.True(t, res.Applied)

			stored, _ := store.GetOrder(context.Background(), o.ID)
			assert.True(t, stored.PaymentVerified)
		})
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	rec, svc, store, disp := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	ev := WebhookEvent{OrderID: &o.ID, MpesaCode: "XY99ZZ", Status: "SUCCESS"}

	first, err := rec.HandleWebhook(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := rec.HandleWebhook(context.Background(), ev)
	require.NoError(t, err, "duplicates are acknowledged, not rejected")
	assert.False(t, second.Applied)

	stored, _ := store.GetOrder(context.Background(), o.ID)
	assert.True(t, stored.PaymentVerified)
	assert.Equal(t, "XY99ZZ", stored.MpesaCode)

	// the repeat notification is tolerated
	var paymentEffects int
	for _, e := range disp.all() {
		if e.Kind == EffectPaymentVerified {
			paymentEffects++
		}
	}
	assert.Equal(t, 2, paymentEffects)
}

func TestPaymentStatusProjection(t *testing.T) {
	rec, svc, store, _ := newTestReconciler(t)
	o := mpesaOrder(t, svc, store)

	view, err := rec.PaymentStatus(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, view.OrderID)
	assert.Equal(t, PaymentPending, view.PaymentStatus)
	assert.False(t, view.PaymentVerified)

	_, err = rec.VerifyPayment(context.Background(), o.ID, "AB12CD", "0712345678")
	require.NoError(t, err)

	view, err = rec.PaymentStatus(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, view.PaymentVerified)
	assert.Equal(t, PaymentVerified, view.PaymentStatus)
	assert.Equal(t, "AB12CD", view.MpesaCode)

	_, err = rec.PaymentStatus(context.Background(), 404)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
