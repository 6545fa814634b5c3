package effects

import (
	"context"

	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/invoice"
	"github.com/orumagideon/morine-gypsum/internal/notify"
	"github.com/orumagideon/morine-gypsum/internal/orders"
	"github.com/orumagideon/morine-gypsum/internal/settings"
)

// Runner executes effects: renders the invoice artifact and sends the
// associated emails. Everything here is best-effort; failures are logged and
// swallowed so a committed order is never disturbed.
type Runner struct {
	Renderer *invoice.Renderer
	Notifier notify.Notifier
	Store    orders.Store // nil is fine; only used to record the artifact path
	Notify   settings.Notifications
	Log      *zap.Logger
}

func (r *Runner) Run(ctx context.Context, eff orders.Effect) {
	o := eff.Order
	switch eff.Kind {
	case orders.EffectOrderCreated:
		r.orderCreated(ctx, &o, eff.NotifyAdmin, eff.NotifyCustomer)
	case orders.EffectPaymentVerified:
		r.paymentVerified(&o, eff.NotifyAdmin, eff.NotifyCustomer)
	case orders.EffectOrderShipped:
		if eff.NotifyCustomer && o.CustomerEmail != "" {
			r.Notifier.Send(o.CustomerEmail, notify.ShipmentSubject(&o), notify.ShipmentBody(&o), "")
		}
	default:
		r.Log.Warn("unknown effect kind", zap.String("kind", string(eff.Kind)))
	}
}

func (r *Runner) orderCreated(ctx context.Context, o *orders.Order, admin, customer bool) {
	var pdfPath string
	if r.Renderer != nil && o.Invoice != nil {
		path, err := r.Renderer.Render(o)
		if err != nil {
			r.Log.Warn("invoice render failed", zap.Int64("order_id", o.ID), zap.Error(err))
		} else {
			pdfPath = path
			if r.Store != nil {
				if err := r.Store.SetInvoiceRemarks(ctx, o.Invoice.ID, "PDF generated at: "+path); err != nil {
					r.Log.Warn("invoice remarks update failed", zap.Int64("invoice_id", o.Invoice.ID), zap.Error(err))
				}
			}
		}
	}

	if admin && r.Notify.SendOrderNotifications && r.Notify.AdminEmail != "" {
		r.Notifier.Send(r.Notify.AdminEmail, notify.OrderNotificationSubject(o), notify.OrderNotificationBody(o), "")
	}
	if customer && o.CustomerEmail != "" {
		r.Notifier.Send(o.CustomerEmail, notify.InvoiceEmailSubject(o), notify.InvoiceEmailBody(o), pdfPath)
	}
}

func (r *Runner) paymentVerified(o *orders.Order, admin, customer bool) {
	if admin && r.Notify.SendPaymentNotifications && r.Notify.AdminEmail != "" {
		r.Notifier.Send(r.Notify.AdminEmail, notify.PaymentAdminSubject(o), notify.PaymentAdminBody(o), "")
	}
	if customer && o.CustomerEmail != "" {
		r.Notifier.Send(o.CustomerEmail, notify.PaymentCustomerSubject(o), notify.PaymentCustomerBody(o), "")
	}
}
