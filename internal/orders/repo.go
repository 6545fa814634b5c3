package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo implements Store on Postgres.
type Repo struct {
	DB *pgxpool.Pool
}

var _ Store = (*Repo)(nil)

const orderColumns = `id, customer_name, customer_phone, COALESCE(customer_email,''),
	delivery_address, payment_method, status, payment_status, payment_verified,
	COALESCE(mpesa_code,''), COALESCE(mpesa_request_id,''),
	subtotal, shipping_cost, total_amount,
	COALESCE(notes,''), COALESCE(tracking_number,''), COALESCE(shipping_provider,''),
	shipped_at, created_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.DeliveryAddress, &o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.PaymentVerified,
		&o.MpesaCode, &o.MpesaRequestID,
		&o.Subtotal, &o.ShippingCost, &o.TotalAmount,
		&o.Notes, &o.TrackingNumber, &o.ShippingProvider,
		&o.ShippedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) CreateOrder(ctx context.Context, in NewOrder) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, &PersistenceError{Op: "create order: begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	shipping := DefaultShippingCost
	if in.ShippingCost != nil {
		shipping = *in.ShippingCost
	}

	var orderID int64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(customer_name, customer_phone, customer_email, delivery_address,
			payment_method, status, payment_status, shipping_cost, notes,
			subtotal, total_amount)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,'pending','pending',$6,NULLIF($7,''),0,0)
		RETURNING id, created_at`,
		in.CustomerName, in.CustomerPhone, in.CustomerEmail, in.DeliveryAddress,
		in.PaymentMethod, shipping, in.Notes).Scan(&orderID, &createdAt)
	if err != nil {
		return nil, &PersistenceError{Op: "create order: insert", Err: err}
	}

	subtotal := decimal.Zero
	items := make([]OrderItem, 0, len(in.Items))

	for _, line := range in.Items {
		// Row lock serializes concurrent submissions against the same product.
		var (
			name  string
			image string
			price decimal.Decimal
			stock int
		)
		err := tx.QueryRow(ctx, `
			SELECT name, COALESCE(image_url,''), price, stock_quantity
			FROM products WHERE id=$1 FOR UPDATE`, line.ProductID).
			Scan(&name, &image, &price, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "product", ID: line.ProductID}
		}
		if err != nil {
			return nil, &PersistenceError{Op: "create order: read product", Err: err}
		}
		if stock < line.Quantity {
			return nil, &InsufficientStockError{
				ProductID: line.ProductID, Name: name,
				Requested: line.Quantity, Available: stock,
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
			WHERE id=$1`, line.ProductID, line.Quantity); err != nil {
			return nil, &PersistenceError{Op: "create order: decrement stock", Err: err}
		}

		unit := price
		if line.PriceOverride != nil {
			unit = *line.PriceOverride
		}

		var itemID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price)
			VALUES ($1,$2,$3,$4) RETURNING id`,
			orderID, line.ProductID, line.Quantity, unit).Scan(&itemID)
		if err != nil {
			return nil, &PersistenceError{Op: "create order: insert item", Err: err}
		}

		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, OrderItem{
			ID: itemID, OrderID: orderID, ProductID: line.ProductID,
			Quantity: line.Quantity, Price: unit,
			ProductName: name, ProductImage: image,
		})
	}

	total := subtotal.Add(shipping)
	if in.TotalOverride != nil {
		total = *in.TotalOverride
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET subtotal=$2, total_amount=$3 WHERE id=$1`,
		orderID, subtotal, total); err != nil {
		return nil, &PersistenceError{Op: "create order: set totals", Err: err}
	}

	var inv Invoice
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices(order_id, total_amount, payment_status, payment_method)
		VALUES ($1,$2,'Pending',$3)
		RETURNING id, invoice_date`,
		orderID, total, string(in.PaymentMethod)).Scan(&inv.ID, &inv.InvoiceDate)
	if err != nil {
		return nil, &PersistenceError{Op: "create order: insert invoice", Err: err}
	}
	inv.OrderID = orderID
	inv.TotalAmount = total
	inv.PaymentStatus = InvoicePending
	inv.PaymentMethod = string(in.PaymentMethod)

	if err := tx.Commit(ctx); err != nil {
		return nil, &PersistenceError{Op: "create order: commit", Err: err}
	}

	return &Order{
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
		CreatedAt:       createdAt,
		Items:           items,
		Invoice:         &inv,
	}, nil
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get order", Err: err}
	}

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items

	inv, err := r.InvoiceByOrder(ctx, id)
	if err == nil {
		o.Invoice = inv
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
	}
	return o, nil
}

func (r *Repo) itemsFor(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.price,
		       p.name, COALESCE(p.image_url,'')
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id=$1
		ORDER BY i.id`, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "list order items", Err: err}
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price,
			&it.ProductName, &it.ProductImage); err != nil {
			return nil, &PersistenceError{Op: "scan order item", Err: err}
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list order items", Err: err}
	}
	return out, nil
}

func (r *Repo) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "scan order", Err: err}
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	return out, nil
}

func (r *Repo) UpdateOrder(ctx context.Context, id int64, patch Patch) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, &PersistenceError{Op: "update order: begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "update order: read", Err: err}
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

	_, err = tx.Exec(ctx, `
		UPDATE orders SET customer_name=$2, customer_phone=$3, customer_email=NULLIF($4,''),
			delivery_address=$5, notes=NULLIF($6,''), tracking_number=NULLIF($7,''),
			shipping_provider=NULLIF($8,''), status=$9, payment_status=$10,
			total_amount=$11, shipped_at=$12
		WHERE id=$1`,
		id, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.DeliveryAddress, o.Notes, o.TrackingNumber,
		o.ShippingProvider, o.Status, o.PaymentStatus,
		o.TotalAmount, o.ShippedAt)
	if err != nil {
		return nil, &PersistenceError{Op: "update order: write", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &PersistenceError{Op: "update order: commit", Err: err}
	}

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) DeleteOrder(ctx context.Context, id int64, restock bool) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &PersistenceError{Op: "delete order: begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return &PersistenceError{Op: "delete order: check", Err: err}
	}
	if !exists {
		return &NotFoundError{Entity: "order", ID: id}
	}

	if restock {
		if _, err := tx.Exec(ctx, `
			UPDATE products p SET stock_quantity = stock_quantity + i.quantity, updated_at = now()
			FROM order_items i
			WHERE i.order_id=$1 AND i.product_id = p.id`, id); err != nil {
			return &PersistenceError{Op: "delete order: restock", Err: err}
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invoices WHERE order_id=$1`, id); err != nil {
		return &PersistenceError{Op: "delete order: invoices", Err: err}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, id); err != nil {
		return &PersistenceError{Op: "delete order: items", Err: err}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id); err != nil {
		return &PersistenceError{Op: "delete order: order", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "delete order: commit", Err: err}
	}
	return nil
}

// MarkPaid is the one idempotent payment transition both the manual verify
// path and the webhook funnel through. The row predicate guarantees at most
// one caller flips the flag.
func (r *Repo) MarkPaid(ctx context.Context, orderID int64, mpesaCode string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, &PersistenceError{Op: "mark paid: begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET payment_verified = TRUE,
		    payment_status = 'verified',
		    mpesa_code = COALESCE(NULLIF($2,''), mpesa_code)
		WHERE id=$1 AND payment_verified = FALSE`, orderID, mpesaCode)
	if err != nil {
		return false, &PersistenceError{Op: "mark paid: order", Err: err}
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE invoices SET payment_status='Paid', payment_method='mpesa'
		WHERE order_id=$1`, orderID); err != nil {
		return false, &PersistenceError{Op: "mark paid: invoice", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, &PersistenceError{Op: "mark paid: commit", Err: err}
	}
	return true, nil
}

func (r *Repo) SetPushRequest(ctx context.Context, orderID int64, requestID string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET mpesa_request_id=$2 WHERE id=$1`, orderID, requestID)
	if err != nil {
		return &PersistenceError{Op: "set push request", Err: err}
	}
	if ct.RowsAffected() == 0 {
		return &NotFoundError{Entity: "order", ID: orderID}
	}
	return nil
}

const invoiceColumns = `id, order_id, total_amount, payment_status, COALESCE(payment_method,''), COALESCE(remarks,''), invoice_date`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrderID, &inv.TotalAmount, &inv.PaymentStatus,
		&inv.PaymentMethod, &inv.Remarks, &inv.InvoiceDate)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repo) InvoiceByOrder(ctx context.Context, orderID int64) (*Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRow(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE order_id=$1 ORDER BY id LIMIT 1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "invoice for order", ID: orderID}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get invoice by order", Err: err}
	}
	return inv, nil
}

func (r *Repo) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRow(ctx, `
		SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, invoiceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "invoice", ID: invoiceID}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get invoice", Err: err}
	}
	return inv, nil
}

func (r *Repo) SetInvoiceRemarks(ctx context.Context, invoiceID int64, remarks string) error {
	if _, err := r.DB.Exec(ctx, `UPDATE invoices SET remarks=$2 WHERE id=$1`, invoiceID, remarks); err != nil {
		return &PersistenceError{Op: "set invoice remarks", Err: err}
	}
	return nil
}
