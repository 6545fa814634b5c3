package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL,
		description    TEXT,
		category_id    BIGINT,
		price          NUMERIC(10,2) NOT NULL,
		stock_quantity INT NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		image_url      TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               BIGSERIAL PRIMARY KEY,
		customer_name    TEXT NOT NULL,
		customer_phone   TEXT NOT NULL,
		customer_email   TEXT,
		delivery_address TEXT NOT NULL,
		payment_method   TEXT NOT NULL DEFAULT 'cash_on_delivery',
		status           TEXT NOT NULL DEFAULT 'pending',
		payment_status   TEXT NOT NULL DEFAULT 'pending',
		payment_verified BOOLEAN NOT NULL DEFAULT FALSE,
		mpesa_code       TEXT,
		mpesa_request_id TEXT,
		subtotal         NUMERIC(10,2) NOT NULL DEFAULT 0,
		shipping_cost    NUMERIC(10,2) NOT NULL DEFAULT 500,
		total_amount     NUMERIC(10,2) NOT NULL DEFAULT 0,
		notes            TEXT,
		tracking_number  TEXT,
		shipping_provider TEXT,
		shipped_at       TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id         BIGSERIAL PRIMARY KEY,
		order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity   INT NOT NULL CHECK (quantity > 0),
		price      NUMERIC(10,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id             BIGSERIAL PRIMARY KEY,
		order_id       BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		total_amount   NUMERIC(10,2) NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'Pending',
		payment_method TEXT,
		remarks        TEXT,
		invoice_date   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_order_id ON invoices(order_id)`,
}

// Migrate applies the schema. Statements are idempotent so it is safe to run
// on every startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
