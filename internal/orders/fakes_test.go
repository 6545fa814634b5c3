package orders

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type fakeProduct struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

// fakeStore is an in-memory Store with the same transactional semantics as
// the Postgres repo: a failed submission leaves no trace, and MarkPaid flips
// the flag at most once.
type fakeStore struct {
	mu sync.Mutex

	products map[int64]*fakeProduct
	orders   map[int64]*Order
	invoices map[int64]*Invoice

	nextOrderID   int64
	nextInvoiceID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[int64]*fakeProduct{},
		orders:   map[int64]*Order{},
		invoices: map[int64]*Invoice{},
	}
}

func (f *fakeStore) addProduct(id int64, name string, price int64, stock int) {
	f.products[id] = &fakeProduct{Name: name, Price: decimal.NewFromInt(price), Stock: stock}
}

func (f *fakeStore) CreateOrder(_ context.Context, in NewOrder) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	shipping := DefaultShippingCost
	if in.ShippingCost != nil {
		shipping = *in.ShippingCost
	}

	// Stage decrements so a failure mid-cart rolls everything back.
	type staged struct {
		p    *fakeProduct
		item OrderItem
	}
	var stagedItems []staged
	subtotal := decimal.Zero
	for _, line := range in.Items {
		p, ok := f.products[line.ProductID]
		if !ok {
			return nil, &NotFoundError{Entity: "product", ID: line.ProductID}
		}
		reserved := 0
		for _, s := range stagedItems {
			if s.item.ProductID == line.ProductID {
				reserved += s.item.Quantity
			}
		}
		if p.Stock-reserved < line.Quantity {
			return nil, &InsufficientStockError{
				ProductID: line.ProductID, Name: p.Name,
				Requested: line.Quantity, Available: p.Stock - reserved,
			}
		}
		unit := p.Price
		if line.PriceOverride != nil {
			unit = *line.PriceOverride
		}
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
		stagedItems = append(stagedItems, staged{p: p, item: OrderItem{
			ProductID: line.ProductID, Quantity: line.Quantity, Price: unit, ProductName: p.Name,
		}})
	}

	f.nextOrderID++
	f.nextInvoiceID++
	orderID := f.nextOrderID

	total := subtotal.Add(shipping)
	if in.TotalOverride != nil {
		total = *in.TotalOverride
	}

	items := make([]OrderItem, 0, len(stagedItems))
	for i, s := range stagedItems {
		s.p.Stock -= s.item.Quantity
		s.item.ID = int64(i + 1)
		s.item.OrderID = orderID
		items = append(items, s.item)
	}

	inv := &Invoice{
		ID: f.nextInvoiceID, OrderID: orderID,
		TotalAmount: total, PaymentStatus: InvoicePending,
		PaymentMethod: string(in.PaymentMethod), InvoiceDate: time.Now().UTC(),
	}
	o := &Order{
		ID:              orderID,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Subtotal:        subtotal,
		ShippingCost:    shipping,
		TotalAmount:     total,
		Notes:           in.Notes,
		CreatedAt:       time.Now().UTC(),
		Items:           items,
		Invoice:         inv,
	}
	f.orders[orderID] = o
	f.invoices[inv.ID] = inv

	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	cp := *o
	if o.Invoice != nil {
		inv := *o.Invoice
		cp.Invoice = &inv
	}
	return &cp, nil
}

func (f *fakeStore) ListOrders(context.Context) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, id int64, patch Patch) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&o.CustomerName, patch.CustomerName)
	apply(&o.CustomerPhone, patch.CustomerPhone)
	apply(&o.CustomerEmail, patch.CustomerEmail)
	apply(&o.DeliveryAddress, patch.DeliveryAddress)
	apply(&o.Notes, patch.Notes)
	apply(&o.TrackingNumber, patch.TrackingNumber)
	apply(&o.ShippingProvider, patch.ShippingProvider)
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		o.PaymentStatus = *patch.PaymentStatus
	}
	if patch.TotalAmount != nil {
		o.TotalAmount = *patch.TotalAmount
	}
	if o.Status == StatusShipped && o.ShippedAt == nil {
		now := time.Now().UTC()
		o.ShippedAt = &now
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) DeleteOrder(_ context.Context, id int64, restock bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return &NotFoundError{Entity: "order", ID: id}
	}
	if restock {
		for _, it := range o.Items {
			if p, ok := f.products[it.ProductID]; ok {
				p.Stock += it.Quantity
			}
		}
	}
	if o.Invoice != nil {
		delete(f.invoices, o.Invoice.ID)
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeStore) MarkPaid(_ context.Context, orderID int64, mpesaCode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	if o.PaymentVerified {
		return false, nil
	}
	o.PaymentVerified = true
	o.PaymentStatus = PaymentVerified
	if mpesaCode != "" {
		o.MpesaCode = mpesaCode
	}
	if o.Invoice != nil {
		o.Invoice.PaymentStatus = InvoicePaid
		o.Invoice.PaymentMethod = string(PaymentMpesa)
	}
	return true, nil
}

func (f *fakeStore) SetPushRequest(_ context.Context, orderID int64, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return &NotFoundError{Entity: "order", ID: orderID}
	}
	o.MpesaRequestID = requestID
	return nil
}

func (f *fakeStore) InvoiceByOrder(_ context.Context, orderID int64) (*Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invoices {
		if inv.OrderID == orderID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, &NotFoundError{Entity: "invoice for order", ID: orderID}
}

func (f *fakeStore) GetInvoice(_ context.Context, invoiceID int64) (*Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, &NotFoundError{Entity: "invoice", ID: invoiceID}
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeStore) SetInvoiceRemarks(_ context.Context, invoiceID int64, remarks string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv, ok := f.invoices[invoiceID]; ok {
		inv.Remarks = remarks
	}
	return nil
}

var _ Store = (*fakeStore)(nil)

// captureDispatcher records dispatched effects synchronously.
type captureDispatcher struct {
	mu      sync.Mutex
	effects []Effect
}

func (c *captureDispatcher) Dispatch(_ context.Context, effs []Effect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.effects = append(c.effects, effs...)
}

func (c *captureDispatcher) all() []Effect {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Effect, len(c.effects))
	copy(out, c.effects)
	return out
}
