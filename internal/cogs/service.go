package cogs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/abdulaziz27/xpresspos-inventory/internal/catalog"
	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
	"github.com/abdulaziz27/xpresspos-inventory/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, orderID int64) (Order, []OrderItem, error)
	HasCogsHistory(ctx context.Context, orderID int64) (bool, error)
	ListCogsHistories(ctx context.Context, orderID int64) ([]CogsHistory, error)
}

// TxRepository extends the inventory transaction scope with COGS writes so
// consumption movements, stock updates and history rows commit together.
type TxRepository interface {
	inventory.TxRepository
	CogsHistoryExists(ctx context.Context, orderID int64) (bool, error)
	InsertCogsHistory(ctx context.Context, h CogsHistory) (int64, error)
	InsertCogsDetail(ctx context.Context, d CogsDetail) error
}

// InventoryPort exposes the ledger operations used during processing.
type InventoryPort interface {
	PostMovementTx(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.Movement, inventory.StockLevel, error)
	PublishPostEffects(ctx context.Context, m inventory.Movement, level inventory.StockLevel)
}

// CatalogPort supplies the read-only recipe and product inputs.
type CatalogPort interface {
	GetProduct(ctx context.Context, productID int64) (catalog.Product, error)
	GetActiveRecipe(ctx context.Context, productID int64) (catalog.Recipe, error)
	GetInventoryItem(ctx context.Context, itemID int64) (catalog.InventoryItem, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service walks completed orders and books ingredient consumption plus COGS
// summaries. Processing is idempotent per order and all-or-nothing.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	stock   InventoryPort
	audit   AuditPort
	logger  *slog.Logger
}

// NewService constructs the COGS service.
func NewService(repo RepositoryPort, cat CatalogPort, stock InventoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: cat, stock: stock, audit: audit, logger: logger}
}

// productPlan is the computed consumption for one product in the order.
type productPlan struct {
	productID int64
	qtySold   float64
	totalCost float64
	// consumption aggregated per ingredient across all lines of the product.
	ingredients []ingredientPlan
	details     []CogsDetail
}

type ingredientPlan struct {
	itemID   int64
	name     string
	qty      float64
	cost     float64
	unitCost float64
}

// ProcessOrder books COGS for one completed order. Reprocessing an order
// that already has a history is a no-op.
func (s *Service) ProcessOrder(ctx context.Context, orderID int64) error {
	order, items, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusCompleted {
		return ErrOrderNotCompleted
	}
	if order.StoreID == 0 {
		return ErrOrderMissingStore
	}
	if done, err := s.repo.HasCogsHistory(ctx, orderID); err != nil {
		return err
	} else if done {
		s.logger.Info("cogs already processed", slog.Int64("order_id", orderID))
		return nil
	}

	plans, err := s.buildPlans(ctx, order, items)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		s.logger.Debug("no cogs-eligible products", slog.Int64("order_id", orderID))
		return nil
	}

	type posted struct {
		movement inventory.Movement
		level    inventory.StockLevel
	}
	var effects []posted
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Re-check under the transaction so a concurrent retry cannot
		// double-book.
		exists, err := tx.CogsHistoryExists(ctx, orderID)
		if err != nil {
			return err
		}
		if exists {
			effects = nil
			return nil
		}
		now := time.Now().UTC()
		for _, plan := range plans {
			breakdown := make([]CostComponent, 0, len(plan.ingredients))
			for _, ing := range plan.ingredients {
				movement, level, err := s.stock.PostMovementTx(ctx, tx, inventory.MovementInput{
					ItemID:   ing.itemID,
					StoreID:  order.StoreID,
					Type:     inventory.MovementSale,
					Qty:      ing.qty,
					UnitCost: ing.unitCost,
					Note:     fmt.Sprintf("COGS order %d product %d", order.ID, plan.productID),
					Source:   inventory.SourceRef{Kind: inventory.SourceOrder, ID: order.ID},
					ActorID:  order.UserID,
				})
				if err != nil {
					return err
				}
				effects = append(effects, posted{movement: movement, level: level})
				breakdown = append(breakdown, CostComponent{
					InventoryItemID: ing.itemID,
					Name:            ing.name,
					Qty:             ing.qty,
					UnitCost:        ing.unitCost,
					TotalCost:       ing.cost,
				})
			}
			history := CogsHistory{
				OrderID:   order.ID,
				ProductID: plan.productID,
				StoreID:   order.StoreID,
				QtySold:   plan.qtySold,
				UnitCost:  safeDiv(plan.totalCost, plan.qtySold),
				TotalCogs: plan.totalCost,
				Method:    CalculationMethodRecipe,
				Breakdown: breakdown,
				CreatedAt: now,
			}
			historyID, err := tx.InsertCogsHistory(ctx, history)
			if err != nil {
				return err
			}
			for _, detail := range plan.details {
				detail.CogsHistoryID = historyID
				if err := tx.InsertCogsDetail(ctx, detail); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range effects {
		s.stock.PublishPostEffects(ctx, e.movement, e.level)
	}
	if s.audit != nil && len(effects) > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  order.UserID,
			Action:   "cogs:process",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", order.ID),
			Meta:     map[string]any{"products": len(plans)},
		})
	}
	return nil
}

// buildPlans resolves recipes and computes aggregated consumption per
// product. Products without inventory tracking or without an active recipe
// are skipped, not errors.
func (s *Service) buildPlans(ctx context.Context, order Order, items []OrderItem) ([]productPlan, error) {
	byProduct := map[int64][]OrderItem{}
	productOrder := []int64{}
	for _, item := range items {
		if item.Qty <= 0 {
			continue
		}
		if _, seen := byProduct[item.ProductID]; !seen {
			productOrder = append(productOrder, item.ProductID)
		}
		byProduct[item.ProductID] = append(byProduct[item.ProductID], item)
	}
	sort.Slice(productOrder, func(i, j int) bool { return productOrder[i] < productOrder[j] })

	plans := []productPlan{}
	for _, productID := range productOrder {
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				s.logger.Debug("product missing, skipped", slog.Int64("product_id", productID))
				continue
			}
			return nil, err
		}
		if !product.TrackInventory {
			s.logger.Debug("product not tracking inventory, skipped", slog.Int64("product_id", productID))
			continue
		}
		recipe, err := s.catalog.GetActiveRecipe(ctx, productID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				s.logger.Debug("product has no active recipe, skipped", slog.Int64("product_id", productID))
				continue
			}
			return nil, err
		}
		if recipe.YieldQty <= 0 {
			return nil, fmt.Errorf("cogs: recipe %d has invalid yield", recipe.ID)
		}
		plan := productPlan{productID: productID}
		agg := map[int64]*ingredientPlan{}
		aggOrder := []int64{}
		for _, line := range byProduct[productID] {
			plan.qtySold += line.Qty
			multiplier := line.Qty / recipe.YieldQty
			for _, ing := range recipe.Items {
				consumed := ing.QtyPerYield * multiplier
				cost := consumed * ing.UnitCost
				entry, ok := agg[ing.InventoryItemID]
				if !ok {
					entry = &ingredientPlan{itemID: ing.InventoryItemID}
					agg[ing.InventoryItemID] = entry
					aggOrder = append(aggOrder, ing.InventoryItemID)
				}
				entry.qty += consumed
				entry.cost += cost
				plan.totalCost += cost
				plan.details = append(plan.details, CogsDetail{
					OrderItemID:     line.ID,
					InventoryItemID: ing.InventoryItemID,
					Qty:             consumed,
					UnitCost:        ing.UnitCost,
					TotalCost:       cost,
				})
			}
		}
		for _, itemID := range aggOrder {
			entry := agg[itemID]
			entry.unitCost = safeDiv(entry.cost, entry.qty)
			if item, err := s.catalog.GetInventoryItem(ctx, itemID); err == nil {
				entry.name = item.Name
			}
			plan.ingredients = append(plan.ingredients, *entry)
		}
		if len(plan.ingredients) > 0 {
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

// GetCogsHistories lists the persisted summaries for one order.
func (s *Service) GetCogsHistories(ctx context.Context, orderID int64) ([]CogsHistory, error) {
	return s.repo.ListCogsHistories(ctx, orderID)
}

func safeDiv(total, qty float64) float64 {
	if qty == 0 {
		return 0
	}
	return total / qty
}
