package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the summary queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MovementSummary aggregates the ledger per movement type.
func (r *Repository) MovementSummary(ctx context.Context, storeID int64, from, to time.Time) ([]MovementSummaryRow, error) {
	if r == nil {
		return nil, errors.New("reports repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT movement_type, COUNT(*), COALESCE(SUM(qty), 0), COALESCE(SUM(total_cost), 0)
FROM inventory_movements
WHERE store_id=$1 AND created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
GROUP BY movement_type
ORDER BY movement_type ASC`, storeID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []MovementSummaryRow{}
	for rows.Next() {
		var row MovementSummaryRow
		if err := rows.Scan(&row.Type, &row.Count, &row.Qty, &row.TotalCost); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// CogsSummary aggregates histories per product.
func (r *Repository) CogsSummary(ctx context.Context, storeID int64, from, to time.Time) ([]CogsSummaryRow, error) {
	if r == nil {
		return nil, errors.New("reports repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT h.product_id, COALESCE(p.name, ''), COALESCE(SUM(h.qty_sold), 0), COALESCE(SUM(h.total_cogs), 0)
FROM cogs_histories h
LEFT JOIN products p ON p.id = h.product_id
WHERE h.store_id=$1 AND h.created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
GROUP BY h.product_id, p.name
ORDER BY h.product_id ASC`, storeID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []CogsSummaryRow{}
	for rows.Next() {
		var row CogsSummaryRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.QtySold, &row.TotalCogs); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ListStoreIDs enumerates stores carrying stock levels.
func (r *Repository) ListStoreIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT store_id FROM stock_levels ORDER BY store_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
