package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMpesa          PaymentMethod = "mpesa"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMpesa, PaymentCashOnDelivery, PaymentBankTransfer:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentFailed   PaymentStatus = "failed"
)

// InvoiceStatus values keep the capitalised form used on printed invoices.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "Unpaid"
	InvoicePending InvoiceStatus = "Pending"
	InvoicePaid    InvoiceStatus = "Paid"
)

type Order struct {
	ID               int64           `json:"id"`
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone"`
	CustomerEmail    string          `json:"customer_email,omitempty"`
	DeliveryAddress  string          `json:"delivery_address"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	Status           Status          `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentVerified  bool            `json:"payment_verified"`
	MpesaCode        string          `json:"mpesa_code,omitempty"`
	MpesaRequestID   string          `json:"mpesa_request_id,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Notes            string          `json:"notes,omitempty"`
	TrackingNumber   string          `json:"tracking_number,omitempty"`
	ShippingProvider string          `json:"shipping_provider,omitempty"`
	ShippedAt        *time.Time      `json:"shipped_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`

	Items   []OrderItem `json:"items,omitempty"`
	Invoice *Invoice    `json:"invoice,omitempty"`
}

// OrderItem.Price is the unit price captured at order time. It never changes,
// even when the catalog price does.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`

	// Denormalized product summary for display.
	ProductName  string `json:"product_name,omitempty"`
	ProductImage string `json:"product_image,omitempty"`
}

type Invoice struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentStatus InvoiceStatus   `json:"payment_status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Remarks       string          `json:"remarks,omitempty"`
	InvoiceDate   time.Time       `json:"invoice_date"`
}

// NewOrder is the input to order submission.
type NewOrder struct {
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress string
	PaymentMethod   PaymentMethod
	Notes           string

	// Nil means the default shipping cost applies.
	ShippingCost *decimal.Decimal
	// Non-nil skips the subtotal+shipping computation entirely.
	TotalOverride *decimal.Decimal

	Items []NewItem

	SuppressAdminEmail    bool
	SuppressCustomerEmail bool
}

type NewItem struct {
	ProductID int64
	Quantity  int
	// Non-nil replaces the catalog price as the line snapshot.
	PriceOverride *decimal.Decimal
}

// Patch is a partial order update; nil fields are left untouched.
type Patch struct {
	Status           *Status
	PaymentStatus    *PaymentStatus
	CustomerName     *string
	CustomerPhone    *string
	CustomerEmail    *string
	DeliveryAddress  *string
	Notes            *string
	TrackingNumber   *string
	ShippingProvider *string
	// Explicit admin override of the stored total.
	TotalAmount *decimal.Decimal
}

// PaymentStatusView is the read-only projection served to polling clients.
type PaymentStatusView struct {
	OrderID         int64         `json:"order_id"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentVerified bool          `json:"payment_verified"`
	MpesaRequestID  string        `json:"mpesa_request_id,omitempty"`
	MpesaCode       string        `json:"mpesa_code,omitempty"`
}

func (o *Order) PaymentView() PaymentStatusView {
	return PaymentStatusView{
		OrderID:         o.ID,
		PaymentStatus:   o.PaymentStatus,
		PaymentVerified: o.PaymentVerified,
		MpesaRequestID:  o.MpesaRequestID,
		MpesaCode:       o.MpesaCode,
	}
}

// DefaultShippingCost applies when the caller does not supply one.
var DefaultShippingCost = decimal.NewFromInt(500)
