package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulaziz27/xpresspos-inventory/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// NewTxRepository wraps an existing pgx transaction so sibling modules can
// post movements inside their own unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// GetStockLevel reads the aggregate without locking.
func (r *Repository) GetStockLevel(ctx context.Context, itemID, storeID int64) (StockLevel, error) {
	return scanStockLevel(r.pool.QueryRow(ctx, `SELECT sl.item_id, sl.store_id, sl.qty, sl.avg_cost, sl.total_value, sl.reserved_qty, sl.minimum_qty, sl.updated_at
FROM stock_levels sl WHERE sl.item_id=$1 AND sl.store_id=$2`, itemID, storeID), itemID, storeID)
}

// ListStockLevels lists aggregates for one store.
func (r *Repository) ListStockLevels(ctx context.Context, storeID int64) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id, store_id, qty, avg_cost, total_value, reserved_qty, minimum_qty, updated_at
FROM stock_levels WHERE store_id=$1 ORDER BY item_id ASC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := []StockLevel{}
	for rows.Next() {
		var l StockLevel
		if err := rows.Scan(&l.ItemID, &l.StoreID, &l.Qty, &l.AvgCost, &l.TotalValue, &l.ReservedQty, &l.MinimumQty, &l.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

// ListMovements reads the ledger, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var types []string
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	cond := ""
	args := []any{filter.StoreID, nullTime(filter.From), nullTime(filter.To), limit}
	if filter.ItemID != 0 {
		args = append(args, filter.ItemID)
		cond += fmt.Sprintf(" AND item_id=$%d", len(args))
	}
	if len(types) > 0 {
		args = append(args, types)
		cond += fmt.Sprintf(" AND movement_type = ANY($%d)", len(args))
	}
	query := fmt.Sprintf(`SELECT id, item_id, store_id, movement_type, qty, unit_cost, total_cost, COALESCE(lot_id, 0), COALESCE(source_kind, ''), COALESCE(source_id, 0), note, created_at
FROM inventory_movements
WHERE store_id=$1 AND created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')%s
ORDER BY created_at DESC, id DESC
LIMIT $4`, cond)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListCostBearingInbound returns inbound movements carrying a positive unit
// cost, oldest first, for FIFO/LIFO valuation.
func (r *Repository) ListCostBearingInbound(ctx context.Context, itemID, storeID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, store_id, movement_type, qty, unit_cost, total_cost, COALESCE(lot_id, 0), COALESCE(source_kind, ''), COALESCE(source_id, 0), note, created_at
FROM inventory_movements
WHERE item_id=$1 AND store_id=$2 AND unit_cost > 0 AND movement_type = ANY($3)
ORDER BY created_at ASC, id ASC`, itemID, storeID, inboundTypes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// HasMovementForSource reports whether a ledger entry exists for the source
// document.
func (r *Repository) HasMovementForSource(ctx context.Context, ref SourceRef) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_movements WHERE source_kind=$1 AND source_id=$2)`,
		string(ref.Kind), ref.ID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_movements (item_id, store_id, movement_type, qty, unit_cost, total_cost, lot_id, source_kind, source_id, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		m.ItemID, m.StoreID, string(m.Type), m.Qty, m.UnitCost, m.TotalCost, nullInt(m.LotID), nullString(string(m.Source.Kind)), nullInt(m.Source.ID), m.Note, m.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) MovementExistsForSource(ctx context.Context, ref SourceRef) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_movements WHERE source_kind=$1 AND source_id=$2)`,
		string(ref.Kind), ref.ID).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetStockLevelForUpdate(ctx context.Context, itemID, storeID int64) (StockLevel, error) {
	return scanStockLevel(r.tx.QueryRow(ctx, `SELECT item_id, store_id, qty, avg_cost, total_value, reserved_qty, minimum_qty, updated_at
FROM stock_levels WHERE item_id=$1 AND store_id=$2 FOR UPDATE`, itemID, storeID), itemID, storeID)
}

func (r *txRepository) UpsertStockLevel(ctx context.Context, level StockLevel) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_levels (item_id, store_id, qty, avg_cost, total_value, reserved_qty, minimum_qty, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,COALESCE((SELECT minimum_qty FROM inventory_items WHERE id=$1), 0),NOW())
ON CONFLICT (item_id, store_id) DO UPDATE SET qty=EXCLUDED.qty, avg_cost=EXCLUDED.avg_cost, total_value=EXCLUDED.total_value, reserved_qty=EXCLUDED.reserved_qty, updated_at=NOW()`,
		level.ItemID, level.StoreID, level.Qty, level.AvgCost, level.TotalValue, level.ReservedQty)
	return err
}

func (r *txRepository) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_lots (item_id, store_id, code, initial_qty, remaining_qty, unit_cost, status, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		lot.ItemID, lot.StoreID, lot.Code, lot.InitialQty, lot.RemainingQty, lot.UnitCost, string(lot.Status), nullTime(lot.ExpiresAt), lot.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) ListActiveLotsForUpdate(ctx context.Context, itemID, storeID int64, order ConsumeOrder) ([]Lot, error) {
	direction := "ASC"
	if order == ConsumeLIFO {
		direction = "DESC"
	}
	// Ties on created_at break by id for deterministic consumption.
	query := fmt.Sprintf(`SELECT id, item_id, store_id, code, initial_qty, remaining_qty, unit_cost, status, COALESCE(expires_at, 'epoch'), created_at
FROM inventory_lots
WHERE item_id=$1 AND store_id=$2 AND status=$3 AND remaining_qty > 0
ORDER BY created_at %s, id %s
FOR UPDATE`, direction, direction)
	rows, err := r.tx.Query(ctx, query, itemID, storeID, string(LotActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := []Lot{}
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.ID, &lot.ItemID, &lot.StoreID, &lot.Code, &lot.InitialQty, &lot.RemainingQty, &lot.UnitCost, &lot.Status, &lot.ExpiresAt, &lot.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *txRepository) ApplyLotDraw(ctx context.Context, draw LotDraw) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_lots
SET remaining_qty = CASE WHEN remaining_qty - $2 <= 0.0001 THEN 0 ELSE remaining_qty - $2 END,
    status = CASE WHEN remaining_qty - $2 <= 0.0001 THEN 'DEPLETED' ELSE status END
WHERE id=$1 AND remaining_qty >= $2 - 0.0001`, draw.LotID, draw.Qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func scanStockLevel(row pgx.Row, itemID, storeID int64) (StockLevel, error) {
	var l StockLevel
	err := row.Scan(&l.ItemID, &l.StoreID, &l.Qty, &l.AvgCost, &l.TotalValue, &l.ReservedQty, &l.MinimumQty, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{ItemID: itemID, StoreID: storeID}, ErrStockLevelNotFound
		}
		return StockLevel{}, err
	}
	return l, nil
}

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	movements := []Movement{}
	for rows.Next() {
		var (
			m    Movement
			kind string
		)
		if err := rows.Scan(&m.ID, &m.ItemID, &m.StoreID, &m.Type, &m.Qty, &m.UnitCost, &m.TotalCost, &m.LotID, &kind, &m.Source.ID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Source.Kind = SourceKind(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func inboundTypes() []string {
	types := []MovementType{MovementPurchase, MovementAdjustmentIn, MovementTransferIn, MovementReturn}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
