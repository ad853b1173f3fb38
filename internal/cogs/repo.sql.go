package cogs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
	"github.com/abdulaziz27/xpresspos-inventory/internal/platform/db"
)

// Repository persists COGS data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	inventory.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction sharing
// its scope with the inventory ledger.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("cogs repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

// GetOrder loads the order header and lines.
func (r *Repository) GetOrder(ctx context.Context, orderID int64) (Order, []OrderItem, error) {
	var order Order
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, user_id, status, COALESCE(completed_at, 'epoch') FROM orders WHERE id=$1`, orderID).
		Scan(&order.ID, &order.StoreID, &order.UserID, &order.Status, &order.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrOrderNotFound
		}
		return Order{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, qty FROM order_items WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Qty); err != nil {
			return Order{}, nil, err
		}
		items = append(items, item)
	}
	return order, items, rows.Err()
}

// HasCogsHistory reports whether the order was already processed.
func (r *Repository) HasCogsHistory(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cogs_histories WHERE order_id=$1)`, orderID).Scan(&exists)
	return exists, err
}

// ListCogsHistories reads the summaries for one order.
func (r *Repository) ListCogsHistories(ctx context.Context, orderID int64) ([]CogsHistory, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, store_id, qty_sold, unit_cost, total_cogs, method, breakdown, created_at
FROM cogs_histories WHERE order_id=$1 ORDER BY product_id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	histories := []CogsHistory{}
	for rows.Next() {
		var (
			h    CogsHistory
			body []byte
		)
		if err := rows.Scan(&h.ID, &h.OrderID, &h.ProductID, &h.StoreID, &h.QtySold, &h.UnitCost, &h.TotalCogs, &h.Method, &body, &h.CreatedAt); err != nil {
			return nil, err
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &h.Breakdown); err != nil {
				return nil, err
			}
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

func (r *txRepository) CogsHistoryExists(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cogs_histories WHERE order_id=$1)`, orderID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertCogsHistory(ctx context.Context, h CogsHistory) (int64, error) {
	breakdown, err := json.Marshal(h.Breakdown)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.tx.QueryRow(ctx, `INSERT INTO cogs_histories (order_id, product_id, store_id, qty_sold, unit_cost, total_cogs, method, breakdown, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		h.OrderID, h.ProductID, h.StoreID, h.QtySold, h.UnitCost, h.TotalCogs, h.Method, breakdown, h.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertCogsDetail(ctx context.Context, d CogsDetail) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO cogs_details (cogs_history_id, order_item_id, inventory_item_id, lot_id, qty, unit_cost, total_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.CogsHistoryID, d.OrderItemID, d.InventoryItemID, nullInt(d.LotID), d.Qty, d.UnitCost, d.TotalCost)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
