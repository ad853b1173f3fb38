package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/abdulaziz27/xpresspos-inventory/internal/catalog"
)

// CostMethod selects the valuation method.
type CostMethod string

const (
	CostWeightedAverage CostMethod = "WEIGHTED_AVG"
	CostFIFO            CostMethod = "FIFO"
	CostLIFO            CostMethod = "LIFO"
)

// ErrInvalidCostMethod indicates an unknown valuation method.
var ErrInvalidCostMethod = errors.New("inventory: invalid cost method")

// ItemValuation values one item under the selected method.
type ItemValuation struct {
	ItemID   int64
	Name     string
	Qty      float64
	UnitCost float64
	Value    float64
}

// ValuationReport summarises inventory value for one store.
type ValuationReport struct {
	StoreID    int64
	Method     CostMethod
	TotalValue float64
	Items      []ItemValuation
}

// ValuationRepository provides the read side used by the engine.
type ValuationRepository interface {
	ListStockLevels(ctx context.Context, storeID int64) ([]StockLevel, error)
	// ListCostBearingInbound returns inbound movements with a positive unit
	// cost for one item, oldest first.
	ListCostBearingInbound(ctx context.Context, itemID, storeID int64) ([]Movement, error)
}

// ItemLookup resolves catalog data for naming and default-cost fallback.
type ItemLookup interface {
	GetInventoryItem(ctx context.Context, itemID int64) (catalog.InventoryItem, error)
}

// valuationWorkers bounds the per-item fan-out for FIFO/LIFO derivation.
const valuationWorkers = 4

// ValuationEngine computes inventory value under weighted-average, FIFO and
// LIFO costing. It is a pure read-side computation; nothing is cached or
// persisted as a side effect.
type ValuationEngine struct {
	repo    ValuationRepository
	catalog ItemLookup
}

// NewValuationEngine builds the engine.
func NewValuationEngine(repo ValuationRepository, catalog ItemLookup) *ValuationEngine {
	return &ValuationEngine{repo: repo, catalog: catalog}
}

// ValueInventory values all positive stock levels for one store under the
// given method.
func (e *ValuationEngine) ValueInventory(ctx context.Context, storeID int64, method CostMethod) (ValuationReport, error) {
	if storeID == 0 {
		return ValuationReport{}, ErrMissingStore
	}
	switch method {
	case CostWeightedAverage, CostFIFO, CostLIFO:
	default:
		return ValuationReport{}, ErrInvalidCostMethod
	}
	levels, err := e.repo.ListStockLevels(ctx, storeID)
	if err != nil {
		return ValuationReport{}, err
	}
	report := ValuationReport{StoreID: storeID, Method: method}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(valuationWorkers)
	for _, level := range levels {
		if level.Qty <= 0 {
			continue
		}
		level := level
		g.Go(func() error {
			iv, err := e.valueItem(gctx, level, method)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Items = append(report.Items, iv)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ValuationReport{}, err
	}
	sort.Slice(report.Items, func(i, j int) bool {
		return report.Items[i].ItemID < report.Items[j].ItemID
	})
	for _, iv := range report.Items {
		report.TotalValue += iv.Value
	}
	report.TotalValue = round2(report.TotalValue)
	return report, nil
}

func (e *ValuationEngine) valueItem(ctx context.Context, level StockLevel, method CostMethod) (ItemValuation, error) {
	item, err := e.catalog.GetInventoryItem(ctx, level.ItemID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return ItemValuation{}, fmt.Errorf("inventory: lookup item %d: %w", level.ItemID, err)
	}
	iv := ItemValuation{ItemID: level.ItemID, Name: item.Name, Qty: level.Qty}
	if method == CostWeightedAverage {
		iv.UnitCost = level.AvgCost
		iv.Value = round2(level.Qty * level.AvgCost)
		return iv, nil
	}
	movements, err := e.repo.ListCostBearingInbound(ctx, level.ItemID, level.StoreID)
	if err != nil {
		return ItemValuation{}, err
	}
	if len(movements) == 0 {
		// No cost-bearing history; fall back to the catalog default cost
		// rather than valuing at zero.
		iv.UnitCost = item.UnitCost
		iv.Value = round2(level.Qty * item.UnitCost)
		return iv, nil
	}
	if method == CostLIFO {
		reversed := make([]Movement, len(movements))
		for i, m := range movements {
			reversed[len(movements)-1-i] = m
		}
		movements = reversed
	}
	remaining := level.Qty
	var value float64
	for _, m := range movements {
		if remaining <= 0 {
			break
		}
		take := m.Qty
		if take > remaining {
			take = remaining
		}
		value += take * m.UnitCost
		remaining -= take
	}
	if remaining > qtyEpsilon {
		// More stock on hand than cost-bearing history explains; value the
		// shortfall at the catalog default cost.
		value += remaining * item.UnitCost
	}
	iv.Value = round2(value)
	if level.Qty > 0 {
		iv.UnitCost = iv.Value / level.Qty
	}
	return iv, nil
}
