package effects

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/invoice"
	"github.com/orumagideon/morine-gypsum/internal/orders"
	"github.com/orumagideon/morine-gypsum/internal/settings"
)

type sentMail struct {
	To         string
	Subject    string
	Attachment string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeNotifier) Send(to, subject, _ string, attachmentPath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Attachment: attachmentPath})
	return true
}

func (f *fakeNotifier) all() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMail, len(f.sent))
	copy(out, f.sent)
	return out
}

func testOrder() orders.Order {
	return orders.Order{
		ID:              3,
		CustomerName:    "Jane Wanjiku",
		CustomerPhone:   "0712345678",
		CustomerEmail:   "jane@example.com",
		DeliveryAddress: "Kisumu, Milimani",
		PaymentMethod:   orders.PaymentMpesa,
		Status:          orders.StatusPending,
		TotalAmount:     decimal.NewFromInt(700),
		Items: []orders.OrderItem{
			{ProductID: 1, ProductName: "Gypsum Board", Quantity: 2, Price: decimal.NewFromInt(100)},
		},
		Invoice: &orders.Invoice{
			ID: 5, OrderID: 3,
			TotalAmount: decimal.NewFromInt(700), PaymentStatus: orders.InvoicePending,
			InvoiceDate: time.Now().UTC(),
		},
	}
}

func newTestRunner(t *testing.T, notifications settings.Notifications) (*Runner, *fakeNotifier) {
	t.Helper()
	n := &fakeNotifier{}
	return &Runner{
		Renderer: &invoice.Renderer{Dir: t.TempDir()},
		Notifier: n,
		Notify:   notifications,
		Log:      zap.NewNop(),
	}, n
}

func allOn() settings.Notifications {
	return settings.Notifications{
		AdminEmail:               "admin@morinegypsum.co.ke",
		SendOrderNotifications:   true,
		SendPaymentNotifications: true,
	}
}

func TestRunOrderCreated(t *testing.T) {
	r, n := newTestRunner(t, allOn())
	o := testOrder()

	r.Run(context.Background(), orders.Effect{
		Kind: orders.EffectOrderCreated, Order: o,
		NotifyAdmin: true, NotifyCustomer: true,
	})

	sent := n.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "admin@morinegypsum.co.ke", sent[0].To)
	assert.Empty(t, sent[0].Attachment)
	assert.Equal(t, "jane@example.com", sent[1].To)
	assert.Equal(t, r.Renderer.Path(o.Invoice.ID), sent[1].Attachment, "customer email carries the invoice PDF")

	info, err := os.Stat(sent[1].Attachment)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRunOrderCreatedAdminToggleOff(t *testing.T) {
	notifications := allOn()
	notifications.SendOrderNotifications = false
	r, n := newTestRunner(t, notifications)

	r.Run(context.Background(), orders.Effect{
		Kind: orders.EffectOrderCreated, Order: testOrder(),
		NotifyAdmin: true, NotifyCustomer: true,
	})

	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@example.com", sent[0].To)
}

func TestRunOrderCreatedSuppressedFlags(t *testing.T) {
	r, n := newTestRunner(t, allOn())

	r.Run(context.Background(), orders.Effect{
		Kind: orders.EffectOrderCreated, Order: testOrder(),
		NotifyAdmin: false, NotifyCustomer: false,
	})
	assert.Empty(t, n.all())
}

func TestRunOrderCreatedRenderFailureStillNotifies(t *testing.T) {
	n := &fakeNotifier{}
	r := &Runner{
		Renderer: nil, // no artifact, emails still go out
		Notifier: n,
		Notify:   allOn(),
		Log:      zap.NewNop(),
	}

	r.Run(context.Background(), orders.Effect{
		Kind: orders.EffectOrderCreated, Order: testOrder(),
		NotifyAdmin: true, NotifyCustomer: true,
	})

	sent := n.all()
	require.Len(t, sent, 2)
	assert.Empty(t, sent[1].Attachment)
}

func TestRunPaymentVerified(t *testing.T) {
	r, n := newTestRunner(t, allOn())
	o := testOrder()
	o.PaymentVerified = true
	o.MpesaCode = "AB12CD"

	r.Run(context.Background(), orders.Effect{
		Kind: orders.EffectPaymentVerified, Order: o,
		NotifyAdmin: true, NotifyCustomer: true,
	})

	sent := n.all()
	require.Len(t, sent, 2)
	assert.Equal(t, "admin@morinegypsum.co.ke", sent[0].To)
	assert.Equal(t, "jane@example.com", sent[1].To)
}

func TestRunPaymentVerifiedToggleOff(t *testing.T) {
	notifications := allOn()
	notifications.SendPaymentNotifications = false
	r, n := newTestRunner(t, notifications)

	r.Run(context.Background(), orders.Effect{
		Kind: orders.EffectPaymentVerified, Order: testOrder(),
		NotifyAdmin: true, NotifyCustomer: true,
	})

	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@example.com", sent[0].To)
}

func TestRunOrderShipped(t *testing.T) {
	r, n := newTestRunner(t, allOn())
	o := testOrder()
	o.Status = orders.StatusShipped
	o.TrackingNumber = "TRK-1001"

	r.Run(context.Background(), orders.Effect{
		Kind: orders.EffectOrderShipped, Order: o, NotifyCustomer: true,
	})

	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@example.com", sent[0].To)
}

func TestInlineDispatchSync(t *testing.T) {
	r, n := newTestRunner(t, allOn())
	d := &Inline{Runner: r, Log: zap.NewNop(), Sync: true}

	d.Dispatch(context.Background(), []orders.Effect{
		{Kind: orders.EffectOrderCreated, Order: testOrder(), NotifyAdmin: true, NotifyCustomer: true},
	})

	assert.Len(t, n.all(), 2)
}
