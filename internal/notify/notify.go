package notify

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/orumagideon/morine-gypsum/internal/orders"
)

// Notifier sends a single email. Failure is reported but never fatal to the
// caller; it returns false instead of an error by design of the boundary.
type Notifier interface {
	Send(to, subject, htmlBody, attachmentPath string) bool
}

// Mailer is the SMTP notifier.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	Log      *zap.Logger
}

func (m *Mailer) Send(to, subject, htmlBody, attachmentPath string) bool {
	if m.Password == "" {
		m.Log.Info("smtp password not configured, skipping email",
			zap.String("to", to), zap.String("subject", subject))
		return false
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.Username)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if attachmentPath != "" {
		msg.Attach(attachmentPath)
	}

	d := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := d.DialAndSend(msg); err != nil {
		m.Log.Warn("email send failed", zap.String("to", to), zap.Error(err))
		return false
	}
	return true
}

// Body builders. Plain string templates, matching what the storefront sends.

func OrderNotificationSubject(o *orders.Order) string {
	return fmt.Sprintf("New Order Received - Order #%d", o.ID)
}

func OrderNotificationBody(o *orders.Order) string {
	email := o.CustomerEmail
	if email == "" {
		email = "N/A"
	}
	return fmt.Sprintf(`<html><body>
<h2>New Order Received</h2>
<p><strong>Order ID:</strong> #%d</p>
<p><strong>Customer:</strong> %s</p>
<p><strong>Phone:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Delivery Address:</strong> %s</p>
<p><strong>Total Amount:</strong> KES %s</p>
<p><strong>Payment Method:</strong> %s</p>
<p><strong>Status:</strong> %s</p>
</body></html>`,
		o.ID, o.CustomerName, o.CustomerPhone, email,
		o.DeliveryAddress, o.TotalAmount.StringFixed(2), o.PaymentMethod, o.Status)
}

func InvoiceEmailSubject(o *orders.Order) string {
	return fmt.Sprintf("Invoice - Order #%d", o.ID)
}

func InvoiceEmailBody(o *orders.Order) string {
	return fmt.Sprintf(`<html><body>
<h2>Your Invoice</h2>
<p>Dear %s,</p>
<p>Thank you for your order! Please find your invoice attached.</p>
<p><strong>Order ID:</strong> #%d</p>
<p><strong>Total Amount:</strong> KES %s</p>
<p>Best regards,<br>Morine Gypsum</p>
</body></html>`,
		o.CustomerName, o.ID, o.TotalAmount.StringFixed(2))
}

func PaymentAdminSubject(o *orders.Order) string {
	return fmt.Sprintf("Payment Verified - Order #%d", o.ID)
}

func PaymentAdminBody(o *orders.Order) string {
	code := o.MpesaCode
	if code == "" {
		code = "N/A"
	}
	return fmt.Sprintf(`<html><body>
<h2>Payment Verified</h2>
<p><strong>Order ID:</strong> #%d</p>
<p><strong>Customer:</strong> %s</p>
<p><strong>Amount:</strong> KES %s</p>
<p><strong>Payment Method:</strong> %s</p>
<p><strong>MPESA Code:</strong> %s</p>
</body></html>`,
		o.ID, o.CustomerName, o.TotalAmount.StringFixed(2), o.PaymentMethod, code)
}

func PaymentCustomerSubject(o *orders.Order) string {
	return fmt.Sprintf("Payment Confirmed - Order #%d", o.ID)
}

func PaymentCustomerBody(o *orders.Order) string {
	return fmt.Sprintf(`<html><body>
<h2>Payment Confirmed</h2>
<p>Dear %s,</p>
<p>Your payment for Order #%d has been verified.</p>
<p><strong>Amount:</strong> KES %s</p>
<p>Thank you for your purchase!</p>
</body></html>`,
		o.CustomerName, o.ID, o.TotalAmount.StringFixed(2))
}

func ShipmentSubject(o *orders.Order) string {
	return fmt.Sprintf("Your Order #%d Has Shipped", o.ID)
}

func ShipmentBody(o *orders.Order) string {
	tracking := o.TrackingNumber
	if tracking == "" {
		tracking = "N/A"
	}
	provider := o.ShippingProvider
	if provider == "" {
		provider = "our courier"
	}
	return fmt.Sprintf(`<html><body>
<h2>Order Shipped</h2>
<p>Dear %s,</p>
<p>Your order #%d is on its way via %s.</p>
<p><strong>Tracking Number:</strong> %s</p>
</body></html>`,
		o.CustomerName, o.ID, provider, tracking)
}
