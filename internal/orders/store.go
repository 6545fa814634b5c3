package orders

import "context"

// Store is the durable home of orders, items and invoices. Every multi-row
// write happens in one transaction; a failure anywhere rolls the whole unit
// back.
type Store interface {
	// CreateOrder runs the full submission unit of work: order row, per-line
	// stock check-and-decrement with price snapshot, totals, invoice.
	CreateOrder(ctx context.Context, in NewOrder) (*Order, error)

	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrder(ctx context.Context, id int64, patch Patch) (*Order, error)
	DeleteOrder(ctx context.Context, id int64, restock bool) error

	// MarkPaid performs the single serialized payment transition:
	// UPDATE ... WHERE payment_verified = FALSE. It reports whether this call
	// made the transition; false means another caller got there first.
	MarkPaid(ctx context.Context, orderID int64, mpesaCode string) (bool, error)

	SetPushRequest(ctx context.Context, orderID int64, requestID string) error

	InvoiceByOrder(ctx context.Context, orderID int64) (*Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error)
	SetInvoiceRemarks(ctx context.Context, invoiceID int64, remarks string) error
}
