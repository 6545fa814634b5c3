package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/orumagideon/morine-gypsum/internal/orders"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      string          `json:"image_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Repo struct {
	DB *pgxpool.Pool
}

const productColumns = `id, name, COALESCE(description,''), category_id, price, stock_quantity, COALESCE(image_url,''), created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.Price,
		&p.StockQuantity, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &orders.NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return nil, &orders.PersistenceError{Op: "get product", Err: err}
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, &orders.PersistenceError{Op: "list products", Err: err}
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, &orders.PersistenceError{Op: "scan product", Err: err}
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, &orders.PersistenceError{Op: "list products", Err: err}
	}
	return out, nil
}

// AdjustStock applies a signed stock adjustment under a row lock: positive to
// restock, negative to write off. The order store runs the same
// lock-check-decrement inline so reservations commit or roll back with the
// order itself; this path is for stock changes outside any order.
func (r *Repo) AdjustStock(ctx context.Context, id int64, delta int) (*Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, &orders.PersistenceError{Op: "adjust stock: begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &orders.NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return nil, &orders.PersistenceError{Op: "adjust stock: read", Err: err}
	}
	if p.StockQuantity+delta < 0 {
		return nil, &orders.InsufficientStockError{
			ProductID: id, Name: p.Name, Requested: -delta, Available: p.StockQuantity,
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id=$1 RETURNING stock_quantity, updated_at`, id, delta).
		Scan(&p.StockQuantity, &p.UpdatedAt)
	if err != nil {
		return nil, &orders.PersistenceError{Op: "adjust stock: write", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &orders.PersistenceError{Op: "adjust stock: commit", Err: err}
	}
	return p, nil
}
