package purchasing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
	"github.com/abdulaziz27/xpresspos-inventory/internal/platform/db"
)

// Repository persists purchase order data in PostgreSQL.
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
		return errors.New("purchasing repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

// GetPurchaseOrder loads the PO header and lines.
func (r *Repository) GetPurchaseOrder(ctx context.Context, poID int64) (PurchaseOrder, []PurchaseOrderItem, error) {
	var (
		po         PurchaseOrder
		receivedAt *time.Time
	)
	err := r.pool.QueryRow(ctx, `SELECT id, number, store_id, supplier_id, status, received_at FROM purchase_orders WHERE id=$1`, poID).
		Scan(&po.ID, &po.Number, &po.StoreID, &po.SupplierID, &po.Status, &receivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, err
	}
	if receivedAt != nil {
		po.ReceivedAt = *receivedAt
	}
	rows, err := r.pool.Query(ctx, `SELECT id, po_id, item_id, qty_ordered, qty_received, unit_cost, COALESCE(expires_at, 'epoch')
FROM purchase_order_items WHERE po_id=$1 ORDER BY id ASC`, poID)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	lines := []PurchaseOrderItem{}
	for rows.Next() {
		var line PurchaseOrderItem
		if err := rows.Scan(&line.ID, &line.POID, &line.ItemID, &line.QtyOrdered, &line.QtyReceived, &line.UnitCost, &line.ExpiresAt); err != nil {
			return PurchaseOrder{}, nil, err
		}
		lines = append(lines, line)
	}
	return po, lines, rows.Err()
}

func (r *txRepository) SetReceivedAt(ctx context.Context, poID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET received_at=$2 WHERE id=$1 AND received_at IS NULL`, poID, at)
	return err
}
