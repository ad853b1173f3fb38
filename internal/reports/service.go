package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
)

// MovementSummaryRow aggregates ledger totals for one movement type.
type MovementSummaryRow struct {
	Type      inventory.MovementType `json:"type"`
	Count     int64                  `json:"count"`
	Qty       float64                `json:"qty"`
	TotalCost float64                `json:"total_cost"`
}

// CogsSummaryRow aggregates COGS totals for one product.
type CogsSummaryRow struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	QtySold   float64 `json:"qty_sold"`
	TotalCogs float64 `json:"total_cogs"`
}

// RepositoryPort provides the read queries behind the summaries.
type RepositoryPort interface {
	MovementSummary(ctx context.Context, storeID int64, from, to time.Time) ([]MovementSummaryRow, error)
	CogsSummary(ctx context.Context, storeID int64, from, to time.Time) ([]CogsSummaryRow, error)
}

// ValuationPort delegates valuation to the inventory engine.
type ValuationPort interface {
	ValueInventory(ctx context.Context, storeID int64, method inventory.CostMethod) (inventory.ValuationReport, error)
}

// Service serves the read-only summaries consumed by dashboards. Summaries
// are cached; valuation is recomputed on demand and never cached.
type Service struct {
	repo      RepositoryPort
	valuation ValuationPort
	cache     *Cache
}

// NewService constructs the reports service.
func NewService(repo RepositoryPort, valuation ValuationPort, cache *Cache) *Service {
	return &Service{repo: repo, valuation: valuation, cache: cache}
}

// GetMovementSummary aggregates ledger totals per movement type.
func (s *Service) GetMovementSummary(ctx context.Context, storeID int64, from, to time.Time) ([]MovementSummaryRow, error) {
	if storeID == 0 {
		return nil, inventory.ErrMissingStore
	}
	key, err := s.cache.BuildKey(ctx, "reports", "movements", rangeKey(storeID, from, to))
	if err != nil {
		return nil, err
	}
	var rows []MovementSummaryRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.repo.MovementSummary(ctx, storeID, from, to)
	})
	return rows, err
}

// GetCogsSummary aggregates COGS totals per product.
func (s *Service) GetCogsSummary(ctx context.Context, storeID int64, from, to time.Time) ([]CogsSummaryRow, error) {
	if storeID == 0 {
		return nil, inventory.ErrMissingStore
	}
	key, err := s.cache.BuildKey(ctx, "reports", "cogs", rangeKey(storeID, from, to))
	if err != nil {
		return nil, err
	}
	var rows []CogsSummaryRow
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.repo.CogsSummary(ctx, storeID, from, to)
	})
	return rows, err
}

// GetInventoryValuation computes inventory value under the given method.
func (s *Service) GetInventoryValuation(ctx context.Context, storeID int64, method inventory.CostMethod) (inventory.ValuationReport, error) {
	return s.valuation.ValueInventory(ctx, storeID, method)
}

// Invalidate drops cached summaries after new ledger postings.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func rangeKey(storeID int64, from, to time.Time) string {
	f, t := "-", "-"
	if !from.IsZero() {
		f = from.UTC().Format("20060102")
	}
	if !to.IsZero() {
		t = to.UTC().Format("20060102")
	}
	return fmt.Sprintf("%d:%s:%s", storeID, f, t)
}
